package modeling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// VoinovaOptions are the fixed properties of the viscoelastic model and the starting point
// of its free parameters
type VoinovaOptions struct {
	CrystalThickness float64 // h0, m
	BulkViscosity    float64 // eta3, Pa s
	FilmDensity      float64 // rho1, kg/m^3
	FilmViscosity    float64 // eta1, Pa s
	// InitialGuess is delta3 (m), mu1 (Pa) and h1 (m)
	InitialGuess [3]float64
}

// DefaultVoinovaOptions returns the properties of a film in water on a standard crystal
func DefaultVoinovaOptions() VoinovaOptions {
	return VoinovaOptions{
		CrystalThickness: quartzThickness,
		BulkViscosity:    1e-3,
		FilmDensity:      1000,
		FilmViscosity:    1e-3,
		InitialGuess:     [3]float64{2.5e-7, 1e5, 1e-8},
	}
}

// VoinovaParams are the free parameters of the model
type VoinovaParams struct {
	Delta3 float64 // coupled thickness of the bulk liquid, m
	Mu1    float64 // shear modulus of the film, Pa
	H1     float64 // thickness of the film, m
}

// VoinovaShift is the frequency shift of a single viscoelastic film under a bulk liquid at
// angular frequency w
func VoinovaShift(w float64, p VoinovaParams, opts VoinovaOptions) float64 {
	bulk := opts.BulkViscosity / p.Delta3
	film := p.H1 * opts.FilmDensity * w
	loss := 2 * p.H1 * bulk * bulk * opts.FilmViscosity * w * w /
		(p.Mu1*p.Mu1 + w*w*opts.FilmViscosity*opts.FilmViscosity)
	return -(bulk + film - loss) / (2 * math.Pi * quartzDensity * opts.CrystalThickness)
}

// voinova fits delta3, mu1 and h1 to the mean frequency shifts
func voinova(ds *Dataset, opts Options) (*Fit, error) {
	if err := ds.CheckSelection(opts.Selection); err != nil {
		return nil, err
	}
	if len(ds.Freq.Overtones) < 3 {
		return nil, apperrors.NewMissingDataError(
			fmt.Sprintf("voinova fit needs at least 3 overtones, got %d", len(ds.Freq.Overtones)))
	}
	refs, err := references(ds.Freq.Overtones, opts)
	if err != nil {
		return nil, err
	}
	vo := opts.Voinova
	for i, g := range vo.InitialGuess {
		if g <= 0 {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("initial guess %d must be positive", i))
		}
	}

	y := ds.Freq.Mean
	w := make([]float64, len(refs))
	for i, f := range refs {
		w[i] = 2 * math.Pi * f
	}
	mean := stat.Mean(y, nil)
	var ssTot float64
	for _, v := range y {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		ssTot = 1
	}

	toParams := func(p []float64) VoinovaParams {
		return VoinovaParams{Delta3: math.Abs(p[0]), Mu1: math.Abs(p[1]), H1: math.Abs(p[2])}
	}
	best, err := minimizeScaled(string(domain.ModelVoinova), vo.InitialGuess[:], func(p []float64) float64 {
		vp := toParams(p)
		var ss float64
		for i := range y {
			r := y[i] - VoinovaShift(w[i], vp, vo)
			ss += r * r
		}
		return ss / ssTot
	})
	if err != nil {
		return nil, err
	}
	params := toParams(best)

	res := newResult(domain.ModelVoinova, ds)
	out := newOutput(domain.ModelVoinova, ds)
	fit := make([]float64, len(y))
	for i, o := range ds.Freq.Overtones {
		fit[i] = VoinovaShift(w[i], params, vo)
		res.Points = append(res.Points, domain.FitPoint{
			Overtone: o.Number(),
			X:        float64(o.Number()),
			Y:        y[i],
			YErr:     ds.Freq.Err[i],
			Fit:      fit[i],
		})
		out.row(o.Number(), y[i], ds.Freq.Err[i], fit[i], params.Delta3, params.Mu1, params.H1)
	}
	res.RSquared = RSquared(y, fit)
	res.Parameters = []domain.Parameter{
		{Name: "delta3", Value: params.Delta3, Unit: "m"},
		{Name: "mu1", Value: params.Mu1, Unit: "Pa"},
		{Name: "h1", Value: params.H1, Unit: "m"},
	}
	return &Fit{Result: res, Output: out.out}, nil
}
