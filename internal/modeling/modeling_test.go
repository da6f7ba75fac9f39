package modeling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

func selection(t *testing.T, numbers ...int) domain.OvertoneSelection {
	t.Helper()
	sel, err := domain.SelectOvertones(numbers...)
	require.NoError(t, err)
	return sel
}

func statRow(t *testing.T, kind domain.MeasurementKind, n int, label, source string, mean, sigma float64) domain.RangeStatistics {
	t.Helper()
	o, err := domain.OvertoneFromNumber(n)
	require.NoError(t, err)
	return domain.RangeStatistics{
		Overtone:   o,
		Kind:       kind,
		Column:     o.Column(kind),
		Mean:       mean,
		StdDev:     sigma,
		Median:     mean,
		RangeLabel: label,
		DataSource: source,
		Analyzed:   true,
	}
}

// theoreticalReferences returns n times the theoretical fundamental for the selection
func theoreticalReferences(sel domain.OvertoneSelection) [domain.NumOvertones]domain.Offset {
	var refs [domain.NumOvertones]domain.Offset
	for _, o := range sel.Selected() {
		refs[o] = domain.Offset{Value: float64(o.Number()) * TheoreticalFundamental, Set: true}
	}
	return refs
}

func TestProductError(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		operands []Measurement
		expected float64
	}{
		{"two operands", 50, []Measurement{{10, 1}, {5, 0.5}}, 50 * math.Sqrt(0.02)},
		{"zero operand contributes nothing", 0, []Measurement{{0, 1}, {5, 0.5}}, 0},
		{"exact operand", 20, []Measurement{{10, 1}, {2, 0}}, 2},
		{"negative value", -50, []Measurement{{-10, 1}, {5, 0.5}}, 50 * math.Sqrt(0.02)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ProductError(tt.v, tt.operands...), 1e-12)
		})
	}
	assert.InDelta(t, 7.0710678, ProductError(50, Measurement{10, 1}, Measurement{5, 0.5}), 1e-6)
}

func TestMeanError(t *testing.T) {
	assert.InDelta(t, math.Sqrt(4.5), MeanError([]float64{1, 2, 2}), 1e-12)
	assert.InDelta(t, 2.121, MeanError([]float64{1, 2, 2}), 1e-3)
	assert.Equal(t, 3.0, MeanError([]float64{3}))
	assert.Equal(t, 0.0, MeanError(nil))
}

func TestVectorPropagation(t *testing.T) {
	errs, err := MeanErrors([][]float64{{1, 3}, {2, 4}, {2, 0}})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(4.5), errs[0], 1e-12)
	assert.InDelta(t, math.Sqrt(12.5), errs[1], 1e-12)

	_, err = MeanErrors([][]float64{{1, 2}, {1}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))

	prod, err := ProductErrors([]float64{50, 0}, []Measurement{{10, 1}, {0, 1}}, []Measurement{{5, 0.5}, {3, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 7.0710678, prod[0], 1e-6)
	assert.Equal(t, 0.0, prod[1])

	_, err = ProductErrors([]float64{1, 2, 3}, []Measurement{{1, 0}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestFitLinear(t *testing.T) {
	fit, err := FitLinear([]float64{1, 3, 5}, []float64{-10, -30, -50})
	require.NoError(t, err)
	assert.InDelta(t, -10, fit.Slope, 1e-12)
	assert.InDelta(t, 0, fit.Intercept, 1e-12)
	assert.InDelta(t, 1, fit.RSquared, 1e-12)

	fit, err = FitLinear([]float64{0, 1, 2, 3}, []float64{1, 3, 2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, fit.Slope, 1e-12)
	assert.InDelta(t, 1.3, fit.Intercept, 1e-12)
	assert.InDelta(t, 0.64, fit.RSquared, 1e-12)

	_, err = FitLinear([]float64{1}, []float64{1})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))

	_, err = FitLinear([]float64{2, 2}, []float64{1, 3})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))

	_, err = FitLinear([]float64{1, 2}, []float64{1})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
}

func TestRSquared(t *testing.T) {
	assert.Equal(t, 1.0, RSquared([]float64{2, 2}, []float64{2, 2}))
	assert.Equal(t, 0.0, RSquared([]float64{2, 2}, []float64{1, 3}))
	assert.InDelta(t, 0.75, RSquared([]float64{0, 2}, []float64{0.5, 1.5}), 1e-12)
}

func TestAggregate(t *testing.T) {
	freq := []domain.RangeStatistics{
		statRow(t, domain.KindFrequency, 1, "water", "a.csv", -10, 1),
		statRow(t, domain.KindFrequency, 3, "water", "a.csv", -30, 2),
		statRow(t, domain.KindFrequency, 1, "water", "b.csv", -12, 2),
		statRow(t, domain.KindFrequency, 3, "water", "b.csv", -34, 2),
		statRow(t, domain.KindFrequency, 1, "protein", "a.csv", -100, 1),
		domain.NotAnalyzed(domain.Fifth, domain.KindFrequency, "water", "a.csv"),
	}
	dis := []domain.RangeStatistics{
		statRow(t, domain.KindDissipation, 1, "water", "a.csv", 1e-6, 1e-8),
		statRow(t, domain.KindDissipation, 3, "water", "a.csv", 2e-6, 1e-8),
	}

	ds, err := Aggregate("water", freq, dis)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv"}, ds.Sources)
	assert.Equal(t, "a.csv", ds.Source())
	assert.Equal(t, []domain.Overtone{domain.Fundamental, domain.Third}, ds.Freq.Overtones)
	assert.InDeltaSlice(t, []float64{-11, -32}, ds.Freq.Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{math.Sqrt(5), math.Sqrt(8)}, ds.Freq.Err, 1e-12)
	assert.InDeltaSlice(t, []float64{1e-6, 2e-6}, ds.Dis.Mean, 1e-18)
	assert.Equal(t, []float64{1, 3}, ds.Freq.Numbers())

	_, err = Aggregate("missing", freq, dis)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.Equal(t, []string{"water", "protein"}, Labels(freq))
}

func TestCheckSelection(t *testing.T) {
	ds := &Dataset{Freq: Series{Overtones: []domain.Overtone{domain.Fundamental, domain.Third}}}

	require.NoError(t, ds.CheckSelection(selection(t, 1, 3)))

	err := ds.CheckSelection(selection(t, 1, 3, 5))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
	assert.Contains(t, err.Error(), "found 3 and 2")

	err = ds.CheckSelection(selection(t, 1, 5))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
}

func sauerbreyDataset(t *testing.T) *Dataset {
	freq := []domain.RangeStatistics{
		statRow(t, domain.KindFrequency, 1, "film", "run.csv", -10, 1),
		statRow(t, domain.KindFrequency, 3, "film", "run.csv", -30, 1.5),
		statRow(t, domain.KindFrequency, 5, "film", "run.csv", -50, 2),
	}
	dis := []domain.RangeStatistics{
		statRow(t, domain.KindDissipation, 1, "film", "run.csv", 1e-6, 1e-8),
		statRow(t, domain.KindDissipation, 3, "film", "run.csv", 2e-6, 2e-8),
		statRow(t, domain.KindDissipation, 5, "film", "run.csv", 3e-6, 3e-8),
	}
	ds, err := Aggregate("film", freq, dis)
	require.NoError(t, err)
	return ds
}

func TestSauerbrey(t *testing.T) {
	ds := sauerbreyDataset(t)
	fit, err := Run(domain.ModelSauerbrey, ds, Options{Selection: selection(t, 1, 3, 5)})
	require.NoError(t, err)

	mass, ok := fit.Result.Param("sauerbrey_mass")
	require.True(t, ok)
	assert.InDelta(t, 177, mass.Value, 1e-9)
	slope, _ := fit.Result.Param("slope")
	assert.InDelta(t, -10, slope.Value, 1e-12)
	avg, _ := fit.Result.Param("average_mass")
	assert.InDelta(t, 177, avg.Value, 1e-9)
	assert.InDelta(t, 1, fit.Result.RSquared, 1e-12)

	require.Len(t, fit.Result.Points, 3)
	assert.InDelta(t, 177, fit.Result.Points[1].Derived["mass"], 1e-9)
	assert.InDelta(t, 1.5*17.7/3, fit.Result.Points[1].Derived["mass_err"], 1e-12)

	assert.Equal(t, "sauerbrey_output.csv", fit.Output.File)
	assert.True(t, fit.Output.Keyed)
	require.Len(t, fit.Output.Records, 3)
	assert.Equal(t, []string{
		"1", "-1.00000000E+01", "1.00000000E+00", "-1.00000000E+01",
		"1.77000000E+02", "1.77000000E+01", "-1.77000000E+01", "film", "run.csv",
	}, fit.Output.Records[0])
	assert.Len(t, fit.Output.Header, len(fit.Output.Records[0]))
}

func TestSauerbreyMeasuredC(t *testing.T) {
	f0 := 5e6
	assert.InDelta(t, -(3340.0*2650)/(2*f0*f0)*1e8, SauerbreyC(f0), 1e-12)
	assert.InDelta(t, -17.7, SauerbreyC(f0), 0.1)
	assert.Equal(t, TheoreticalSauerbreyC, SauerbreyC(0))
}

func TestModels_SelectionMismatch(t *testing.T) {
	ds := sauerbreyDataset(t)
	opts := Options{Selection: selection(t, 1, 3)}
	opts.References = theoreticalReferences(selection(t, 1, 3, 5))

	for _, model := range domain.ModelNames {
		if !NeedsStatistics(model) {
			continue
		}
		t.Run(string(model), func(t *testing.T) {
			_, err := Run(model, ds, opts)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
		})
	}
}

func TestRun_Errors(t *testing.T) {
	_, err := Run("unknown", nil, Options{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = Run(domain.ModelSauerbrey, nil, Options{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))
}

func TestThinFilmLiquid(t *testing.T) {
	ds := sauerbreyDataset(t)
	sel := selection(t, 1, 3, 5)
	fit, err := Run(domain.ModelThinFilmLiquid, ds, Options{Selection: sel, References: theoreticalReferences(sel)})
	require.NoError(t, err)

	require.Len(t, fit.Result.Points, 3)
	p := fit.Result.Points[1]
	assert.InDelta(t, -90, p.X, 1e-12)
	assert.InDelta(t, 4.5, p.XErr, 1e-12)
	gamma := 2e-6 * 3 * TheoreticalFundamental / 2
	assert.InDelta(t, gamma, p.Y, 1e-9)
	assert.InDelta(t, gamma*0.01, p.YErr, 1e-9)

	// ΔΓ = n² f0 ΔD1/2 is not linear in nΔf = -10 n², so check against an explicit fit
	xs := []float64{-10, -90, -250}
	ys := []float64{1e-6 * TheoreticalFundamental / 2, gamma, 3e-6 * 5 * TheoreticalFundamental / 2}
	want, err := FitLinear(xs, ys)
	require.NoError(t, err)
	compliance, _ := fit.Result.Param("shear_dependent_compliance")
	assert.InDelta(t, want.Slope, compliance.Value, 1e-9)
	assert.InDelta(t, want.RSquared, fit.Result.RSquared, 1e-12)

	assert.Equal(t, []string{"n*Df", "bandwidth_shift", "bandwidth_shift_FIT", "range_name", "data_source"}, fit.Output.Header)
	assert.Len(t, fit.Output.Records[0], 5)
}

func TestThinFilm_MissingInputs(t *testing.T) {
	ds := sauerbreyDataset(t)
	sel := selection(t, 1, 3, 5)

	_, err := Run(domain.ModelThinFilmLiquid, ds, Options{Selection: sel})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingCalibration))

	ds.Dis = Series{}
	_, err = Run(domain.ModelThinFilmAir, ds, Options{Selection: sel, References: theoreticalReferences(sel)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
}

func TestThinFilm_ZerosRemovedJointly(t *testing.T) {
	ds := sauerbreyDataset(t)
	ds.Dis.Mean[1] = 0
	sel := selection(t, 1, 3, 5)

	fit, err := Run(domain.ModelThinFilmLiquid, ds, Options{Selection: sel, References: theoreticalReferences(sel)})
	require.NoError(t, err)
	require.Len(t, fit.Result.Points, 2)
	assert.Equal(t, 1, fit.Result.Points[0].Overtone)
	assert.Equal(t, 5, fit.Result.Points[1].Overtone)
}

func TestThinFilmAir(t *testing.T) {
	ds := sauerbreyDataset(t)
	sel := selection(t, 1, 3, 5)
	fit, err := Run(domain.ModelThinFilmAir, ds, Options{Selection: sel, References: theoreticalReferences(sel)})
	require.NoError(t, err)

	require.Len(t, fit.Result.Points, 3)
	for i, n := range []float64{1, 3, 5} {
		p := fit.Result.Points[i]
		assert.Equal(t, n*n, p.X)
		assert.InDelta(t, ds.Dis.Mean[i]*n*TheoreticalFundamental/2/n, p.Y, 1e-9)
		assert.InDelta(t, -10, p.Derived["delta_freq_norm"], 1e-12)
	}

	// nΔf/n² is flat here while ΔΓ/n grows, so the two columns must come from separate fits
	slope, _ := fit.Result.Param("freq_slope")
	assert.InDelta(t, 0, slope.Value, 1e-12)
	gammaSlope, _ := fit.Result.Param("gamma_slope")
	assert.Greater(t, gammaSlope.Value, 0.0)

	rec := fit.Output.Records[1]
	assert.Equal(t, "9", rec[0])
	assert.Equal(t, formatValue(-10), rec[3])
	assert.Equal(t, formatValue(-10), rec[4])
}

func TestCrystalThickness(t *testing.T) {
	h := 3.3698e-4
	sel := selection(t, 1, 3, 5, 7)
	var refs [domain.NumOvertones]domain.Offset
	for _, o := range sel.Selected() {
		refs[o] = domain.Offset{Value: ResonantFrequency(float64(o.Number()), h), Set: true}
	}

	fit, err := Run(domain.ModelCrystalThickness, nil, Options{Selection: sel, References: refs})
	require.NoError(t, err)

	got, ok := fit.Result.Param("crystal_thickness")
	require.True(t, ok)
	assert.InEpsilon(t, h, got.Value, 1e-6)
	mm, _ := fit.Result.Param("crystal_thickness_mm")
	assert.InEpsilon(t, h*1000, mm.Value, 1e-6)
	assert.InDelta(t, 1, fit.Result.RSquared, 1e-9)

	assert.False(t, fit.Output.Keyed)
	assert.Equal(t, "crystal_thickness_output.csv", fit.Output.File)
	require.Len(t, fit.Output.Records, 4)
	assert.Len(t, fit.Output.Records[0], 4)
	assert.Equal(t, "7", fit.Output.Records[3][0])
}

func TestCrystalThickness_TheoreticalFrequencies(t *testing.T) {
	sel := selection(t, 1, 3, 5, 7, 9, 11, 13)
	fit, err := Run(domain.ModelCrystalThickness, nil, Options{Selection: sel, References: theoreticalReferences(sel)})
	require.NoError(t, err)

	// a 5 MHz AT-cut crystal is about a third of a millimetre thick
	mm, _ := fit.Result.Param("crystal_thickness_mm")
	assert.InDelta(t, 0.33, mm.Value, 0.01)
	assert.Greater(t, fit.Result.RSquared, 0.99)
}

func TestCrystalThickness_Errors(t *testing.T) {
	_, err := Run(domain.ModelCrystalThickness, nil, Options{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))

	_, err = Run(domain.ModelCrystalThickness, nil, Options{Selection: selection(t, 1, 3)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingCalibration))
}

func TestGordonKanazawa(t *testing.T) {
	ds := sauerbreyDataset(t)
	fit, err := Run(domain.ModelGordonKanazawa, ds, Options{Selection: selection(t, 1, 3, 5)})
	require.NoError(t, err)

	f0 := TheoreticalFundamental
	want := 100 * math.Pi * 3.3698e-4 * 2650 / (f0 * f0 * f0)
	for _, p := range fit.Result.Points {
		assert.InDelta(t, -10, p.Derived["df_n"], 1e-12)
		assert.InEpsilon(t, want, p.Derived["kinematic_viscosity"], 1e-12)
	}
	f, _ := fit.Result.Param("f0")
	assert.Equal(t, f0, f.Value)

	measured, err := Run(domain.ModelGordonKanazawa, ds, Options{Selection: selection(t, 1, 3, 5), MeasuredFundamental: f0 / 2})
	require.NoError(t, err)
	assert.InEpsilon(t, want*8, measured.Result.Points[0].Derived["kinematic_viscosity"], 1e-12)
	assert.Equal(t, []string{"overtone", "average_Df", "average_Df_n", "kinematic_viscosity", "range_name", "data_source"}, measured.Output.Header)
}

func TestVoinova(t *testing.T) {
	opts := DefaultVoinovaOptions()
	truth := VoinovaParams{
		Delta3: opts.InitialGuess[0] * 1.2,
		Mu1:    opts.InitialGuess[1] * 0.8,
		H1:     opts.InitialGuess[2] * 1.5,
	}

	sel := selection(t, 3, 5, 7, 9, 11)
	refs := theoreticalReferences(sel)
	var freq []domain.RangeStatistics
	for _, o := range sel.Selected() {
		w := 2 * math.Pi * refs[o].Value
		freq = append(freq, statRow(t, domain.KindFrequency, o.Number(), "film", "run.csv", VoinovaShift(w, truth, opts), 1))
	}
	ds, err := Aggregate("film", freq, nil)
	require.NoError(t, err)

	fit, err := Run(domain.ModelVoinova, ds, Options{Selection: sel, References: refs, Voinova: opts})
	require.NoError(t, err)
	assert.Greater(t, fit.Result.RSquared, 0.99)
	require.Len(t, fit.Result.Parameters, 3)
	for _, p := range fit.Result.Parameters {
		assert.Greater(t, p.Value, 0.0, p.Name)
	}
	assert.Len(t, fit.Output.Records, 5)
	assert.Len(t, fit.Output.Records[0], len(fit.Output.Header))
}

func TestVoinova_NeedsThreeOvertones(t *testing.T) {
	sel := selection(t, 3, 5)
	ds, err := Aggregate("film", []domain.RangeStatistics{
		statRow(t, domain.KindFrequency, 3, "film", "run.csv", -700, 1),
		statRow(t, domain.KindFrequency, 5, "film", "run.csv", -900, 1),
	}, nil)
	require.NoError(t, err)

	_, err = Run(domain.ModelVoinova, ds, Options{Selection: sel, References: theoreticalReferences(sel), Voinova: DefaultVoinovaOptions()})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))
}

func TestAverageShifts(t *testing.T) {
	ds := sauerbreyDataset(t)
	fit, err := Run(domain.ModelAverageShifts, ds, Options{Selection: selection(t, 1, 3, 5)})
	require.NoError(t, err)

	require.Len(t, fit.Output.Records, 3)
	assert.Equal(t, []string{"5", "-5.00000000E+01", "2.00000000E+00", "3.00000000E-06", "3.00000000E-08", "film", "run.csv"}, fit.Output.Records[2])
	assert.Equal(t, 3e-6, fit.Result.Points[2].Derived["dis"])
}
