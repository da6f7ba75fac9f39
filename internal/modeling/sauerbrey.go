package modeling

import (
	"math"

	"qcmpulse/pkg/contracts/domain"
)

// sauerbrey reports the areal mass two ways: the slope of Δf against n times C, and Δf*C/n
// per overtone together with its average
func sauerbrey(ds *Dataset, opts Options) (*Fit, error) {
	if err := ds.CheckSelection(opts.Selection); err != nil {
		return nil, err
	}

	n := ds.Freq.Numbers()
	line, err := FitLinear(n, ds.Freq.Mean)
	if err != nil {
		return nil, err
	}
	c := SauerbreyC(opts.MeasuredFundamental)

	res := newResult(domain.ModelSauerbrey, ds)
	out := newOutput(domain.ModelSauerbrey, ds)
	mass := make([]float64, len(n))
	massErr := make([]float64, len(n))
	for i, o := range ds.Freq.Overtones {
		df, sigma := ds.Freq.Mean[i], ds.Freq.Err[i]
		mass[i] = df * c / n[i]
		massErr[i] = math.Abs(sigma * c / n[i])
		fit := line.At(n[i])

		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        n[i],
			Y:        df,
			YErr:     sigma,
			Fit:      fit,
			Derived:  map[string]float64{"mass": mass[i], "mass_err": massErr[i]},
		})
		out.row(o.Number(), df, sigma, fit, mass[i], massErr[i], c)
	}

	var sum float64
	for _, m := range mass {
		sum += m
	}
	res.RSquared = line.RSquared
	res.Parameters = []domain.Parameter{
		{Name: "sauerbrey_mass", Value: line.Slope * c, Unit: "ng/cm^2"},
		{Name: "average_mass", Value: sum / float64(len(mass)), Error: MeanError(massErr), Unit: "ng/cm^2"},
		{Name: "C", Value: c, Unit: "ng/(cm^2 Hz)"},
		{Name: "slope", Value: line.Slope, Unit: "Hz"},
		{Name: "intercept", Value: line.Intercept, Unit: "Hz"},
	}
	return &Fit{Result: res, Output: out.out}, nil
}
