package modeling

import (
	"fmt"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// Physical constants shared by the models
const (
	// TheoreticalSauerbreyC is the mass sensitivity of a 5 MHz crystal in ng/(cm^2 Hz)
	TheoreticalSauerbreyC = -17.7
	// TheoreticalFundamental is the fundamental reference frequency in Hz
	TheoreticalFundamental = 4998264.628859391

	quartzDensity        = 2650.0    // kg/m^3
	quartzWaveVelocity   = 3340.0    // m/s
	quartzThickness      = 3.3698e-4 // m
	sauerbreyUnitScaling = 1e8
)

// Options are the inputs of a model besides the dataset
type Options struct {
	// Selection are the overtones the user selected; they must match the analyzed ones
	Selection domain.OvertoneSelection
	// References are the reference frequencies of the selected overtones
	References [domain.NumOvertones]domain.Offset
	// MeasuredFundamental is the measured fundamental frequency. Zero selects the
	// theoretical constants.
	MeasuredFundamental float64
	Voinova             VoinovaOptions
}

// Fit is a model result together with the rows of its output file
type Fit struct {
	Result *domain.ModelFitResult
	Output Output
}

type modelFunc func(ds *Dataset, opts Options) (*Fit, error)

var models = map[domain.ModelName]modelFunc{
	domain.ModelSauerbrey:        sauerbrey,
	domain.ModelThinFilmLiquid:   thinFilmLiquid,
	domain.ModelThinFilmAir:      thinFilmAir,
	domain.ModelCrystalThickness: func(_ *Dataset, opts Options) (*Fit, error) { return crystalThickness(opts) },
	domain.ModelGordonKanazawa:   gordonKanazawa,
	domain.ModelVoinova:          voinova,
	domain.ModelAverageShifts:    averageShifts,
}

// NeedsStatistics reports whether a model works on range statistics. Crystal thickness
// only uses the reference frequencies.
func NeedsStatistics(model domain.ModelName) bool {
	return model != domain.ModelCrystalThickness
}

// Run applies model to ds. ds may be nil for models that do not need statistics.
func Run(model domain.ModelName, ds *Dataset, opts Options) (*Fit, error) {
	fn, ok := models[model]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown model %q", model))
	}
	if ds == nil && NeedsStatistics(model) {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("%s needs range statistics", model))
	}
	return fn(ds, opts)
}

// SauerbreyC returns the mass sensitivity constant, from the measured fundamental when one
// is given
func SauerbreyC(measuredFundamental float64) float64 {
	if measuredFundamental <= 0 {
		return TheoreticalSauerbreyC
	}
	return -(quartzWaveVelocity * quartzDensity) / (2 * measuredFundamental * measuredFundamental) * sauerbreyUnitScaling
}

func fundamental(opts Options) float64 {
	if opts.MeasuredFundamental > 0 {
		return opts.MeasuredFundamental
	}
	return TheoreticalFundamental
}

func references(overtones []domain.Overtone, opts Options) ([]float64, error) {
	out := make([]float64, len(overtones))
	for i, o := range overtones {
		ref := opts.References[o]
		if !ref.Set || ref.Value == 0 {
			return nil, apperrors.NewMissingCalibrationError(
				fmt.Sprintf("no reference frequency for the %s overtone", o.Label()), nil).
				WithContext("overtone", o.Number())
		}
		out[i] = ref.Value
	}
	return out, nil
}

func newResult(model domain.ModelName, ds *Dataset) *domain.ModelFitResult {
	r := &domain.ModelFitResult{ModelName: model}
	if ds != nil {
		r.RangeLabel = ds.Label
		r.DataSource = ds.Source()
	}
	return r
}
