package modeling

import (
	"qcmpulse/pkg/contracts/domain"
)

// bandwidth holds the overtone-scaled frequency shifts and bandwidth shifts of a dataset
type bandwidth struct {
	overtones []domain.Overtone
	n         []float64
	nDf       []float64
	nDfErr    []float64
	gamma     []float64
	gammaErr  []float64
}

// bandwidthShifts computes nΔf and ΔΓ = ΔD*f_ref/2 per overtone. Overtones where either
// value is zero are removed from every vector together.
func bandwidthShifts(ds *Dataset, opts Options) (*bandwidth, error) {
	if err := ds.CheckSelection(opts.Selection); err != nil {
		return nil, err
	}
	if err := ds.requireDissipation(); err != nil {
		return nil, err
	}
	refs, err := references(ds.Freq.Overtones, opts)
	if err != nil {
		return nil, err
	}

	b := &bandwidth{}
	for i, o := range ds.Freq.Overtones {
		n := float64(o.Number())
		nDf := ds.Freq.Mean[i] * n
		gamma := ds.Dis.Mean[i] * refs[i] / 2
		if isZero(nDf) || isZero(gamma) {
			continue
		}
		b.overtones = append(b.overtones, o)
		b.n = append(b.n, n)
		b.nDf = append(b.nDf, nDf)
		b.nDfErr = append(b.nDfErr, ds.Freq.Err[i]*n)
		b.gamma = append(b.gamma, gamma)
		b.gammaErr = append(b.gammaErr, ProductError(gamma,
			Measurement{Value: ds.Dis.Mean[i], Sigma: ds.Dis.Err[i]},
			Measurement{Value: refs[i]}))
	}
	return b, nil
}

// thinFilmLiquid fits ΔΓ against nΔf; the slope is the shear dependent compliance
func thinFilmLiquid(ds *Dataset, opts Options) (*Fit, error) {
	b, err := bandwidthShifts(ds, opts)
	if err != nil {
		return nil, err
	}
	line, err := FitLinear(b.nDf, b.gamma)
	if err != nil {
		return nil, err
	}

	res := newResult(domain.ModelThinFilmLiquid, ds)
	out := newOutput(domain.ModelThinFilmLiquid, ds)
	for i, o := range b.overtones {
		fit := line.At(b.nDf[i])
		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        b.nDf[i],
			XErr:     b.nDfErr[i],
			Y:        b.gamma[i],
			YErr:     b.gammaErr[i],
			Fit:      fit,
		})
		out.valuesRow(b.nDf[i], b.gamma[i], fit)
	}
	res.RSquared = line.RSquared
	res.Parameters = []domain.Parameter{
		{Name: "shear_dependent_compliance", Value: line.Slope, Unit: "1/Pa"},
		{Name: "intercept", Value: line.Intercept, Unit: "Hz"},
	}
	return &Fit{Result: res, Output: out.out}, nil
}

// thinFilmAir fits ΔΓ/n and Δf/n² against n² independently
func thinFilmAir(ds *Dataset, opts Options) (*Fit, error) {
	b, err := bandwidthShifts(ds, opts)
	if err != nil {
		return nil, err
	}

	sq := make([]float64, len(b.n))
	gammaNorm := make([]float64, len(b.n))
	freqNorm := make([]float64, len(b.n))
	for i, n := range b.n {
		sq[i] = n * n
		gammaNorm[i] = b.gamma[i] / n
		freqNorm[i] = b.nDf[i] / n / n
	}
	gammaLine, err := FitLinear(sq, gammaNorm)
	if err != nil {
		return nil, err
	}
	freqLine, err := FitLinear(sq, freqNorm)
	if err != nil {
		return nil, err
	}

	res := newResult(domain.ModelThinFilmAir, ds)
	out := newOutput(domain.ModelThinFilmAir, ds)
	for i, o := range b.overtones {
		gammaFit, freqFit := gammaLine.At(sq[i]), freqLine.At(sq[i])
		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        sq[i],
			Y:        gammaNorm[i],
			YErr:     b.gammaErr[i] / b.n[i],
			Fit:      gammaFit,
			Derived: map[string]float64{
				"delta_freq_norm":     freqNorm[i],
				"delta_freq_norm_err": b.nDfErr[i] / b.n[i] / b.n[i],
				"delta_freq_norm_fit": freqFit,
			},
		})
		out.row(int(sq[i]), gammaNorm[i], gammaFit, freqNorm[i], freqFit)
	}
	res.RSquared = gammaLine.RSquared
	res.Parameters = []domain.Parameter{
		{Name: "gamma_slope", Value: gammaLine.Slope, Unit: "Hz"},
		{Name: "gamma_intercept", Value: gammaLine.Intercept, Unit: "Hz"},
		{Name: "freq_slope", Value: freqLine.Slope, Unit: "Hz"},
		{Name: "freq_intercept", Value: freqLine.Intercept, Unit: "Hz"},
		{Name: "freq_r_squared", Value: freqLine.RSquared},
	}
	return &Fit{Result: res, Output: out.out}, nil
}
