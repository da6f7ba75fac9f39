package modeling

import (
	"math"

	"qcmpulse/pkg/contracts/domain"
)

// KinematicViscosity is the Gordon-Kanazawa viscosity-density product for an
// overtone-normalized shift dfn at fundamental f0
func KinematicViscosity(dfn, f0 float64) float64 {
	return dfn * dfn * math.Pi * quartzThickness * quartzDensity / (f0 * f0 * f0)
}

// gordonKanazawa evaluates the Gordon-Kanazawa relation per overtone; nothing is fitted
func gordonKanazawa(ds *Dataset, opts Options) (*Fit, error) {
	if err := ds.CheckSelection(opts.Selection); err != nil {
		return nil, err
	}
	f0 := fundamental(opts)

	res := newResult(domain.ModelGordonKanazawa, ds)
	out := newOutput(domain.ModelGordonKanazawa, ds)
	var sum float64
	for i, o := range ds.Freq.Overtones {
		n := float64(o.Number())
		df := ds.Freq.Mean[i]
		dfn := df / n
		nu := KinematicViscosity(dfn, f0)
		sum += nu

		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        n,
			Y:        df,
			YErr:     ds.Freq.Err[i],
			Fit:      df,
			Derived:  map[string]float64{"df_n": dfn, "kinematic_viscosity": nu},
		})
		out.row(o.Number(), df, dfn, nu)
	}
	res.Parameters = []domain.Parameter{
		{Name: "mean_kinematic_viscosity", Value: sum / float64(len(ds.Freq.Overtones)), Unit: "kg^2/(m^4 s)"},
		{Name: "f0", Value: f0, Unit: "Hz"},
	}
	return &Fit{Result: res, Output: out.out}, nil
}
