package modeling

import (
	"math"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

const (
	quartzShearModulus  = 2.93e10   // N/m^2
	quartzPiezoelectric = -9.24e-2  // C/m^2
	quartzDielectric    = 3.982e-11 // F/m
	quartzDensityFit    = 2649.7    // kg/m^3
)

// StiffenedModulus is the shear modulus of quartz at overtone n including piezoelectric
// stiffening
func StiffenedModulus(n float64) float64 {
	e2 := quartzPiezoelectric * quartzPiezoelectric
	return quartzShearModulus + e2/quartzDielectric - 8*e2/(math.Pi*math.Pi*n*n*quartzDielectric)
}

// ResonantFrequency is the frequency of overtone n of a crystal of thickness h (m)
func ResonantFrequency(n, h float64) float64 {
	return n / (2 * h) * math.Sqrt(StiffenedModulus(n)/quartzDensityFit)
}

// crystalThickness fits the crystal thickness to the reference frequencies of the selected
// overtones. The model is f_n = g_n/h, so the least squares k = 1/h has a closed form that
// starts the refinement.
func crystalThickness(opts Options) (*Fit, error) {
	overtones := opts.Selection.Selected()
	if len(overtones) == 0 {
		return nil, apperrors.NewMissingDataError("crystal thickness needs at least one selected overtone")
	}
	f, err := references(overtones, opts)
	if err != nil {
		return nil, err
	}

	n := make([]float64, len(overtones))
	g := make([]float64, len(overtones))
	var fg, gg, ff float64
	for i, o := range overtones {
		n[i] = float64(o.Number())
		g[i] = ResonantFrequency(n[i], 1)
		fg += f[i] * g[i]
		gg += g[i] * g[i]
		ff += f[i] * f[i]
	}
	start := gg / fg

	params, err := minimizeScaled(string(domain.ModelCrystalThickness), []float64{start}, func(p []float64) float64 {
		var ss float64
		for i := range f {
			r := f[i] - g[i]/p[0]
			ss += r * r
		}
		return ss / ff
	})
	if err != nil {
		return nil, err
	}
	h := params[0]

	res := newResult(domain.ModelCrystalThickness, nil)
	out := newOutput(domain.ModelCrystalThickness, nil)
	fit := make([]float64, len(f))
	for i, o := range overtones {
		fit[i] = g[i] / h
		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        n[i],
			Y:        f[i],
			Fit:      fit[i],
		})
		out.row(o.Number(), f[i], fit[i], h*1000)
	}
	res.RSquared = RSquared(f, fit)
	res.Parameters = []domain.Parameter{
		{Name: "crystal_thickness", Value: h, Unit: "m"},
		{Name: "crystal_thickness_mm", Value: h * 1000, Unit: "mm"},
	}
	return &Fit{Result: res, Output: out.out}, nil
}
