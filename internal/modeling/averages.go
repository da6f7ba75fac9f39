package modeling

import (
	"qcmpulse/pkg/contracts/domain"
)

// averageShifts reports the mean frequency and dissipation shift of every overtone
func averageShifts(ds *Dataset, opts Options) (*Fit, error) {
	if err := ds.CheckSelection(opts.Selection); err != nil {
		return nil, err
	}
	if err := ds.requireDissipation(); err != nil {
		return nil, err
	}

	res := newResult(domain.ModelAverageShifts, ds)
	out := newOutput(domain.ModelAverageShifts, ds)
	for i, o := range ds.Freq.Overtones {
		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        float64(o.Number()),
			Y:        ds.Freq.Mean[i],
			YErr:     ds.Freq.Err[i],
			Fit:      ds.Freq.Mean[i],
			Derived:  map[string]float64{"dis": ds.Dis.Mean[i], "dis_err": ds.Dis.Err[i]},
		})
		out.row(o.Number(), ds.Freq.Mean[i], ds.Freq.Err[i], ds.Dis.Mean[i], ds.Dis.Err[i])
	}
	res.Parameters = []domain.Parameter{}
	return &Fit{Result: res, Output: out.out}, nil
}
