package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// PPM converts absolute dissipation into units of 1e-6
const PPM = 1e6

// Options controls baseline correction
type Options struct {
	// NormalizeFrequency divides every frequency shift of the display table by the overtone number
	NormalizeFrequency bool
	TimeScale          domain.TimeScale
}

// Corrected is the outcome of ApplyBaseline
type Corrected struct {
	// Table holds the rows from t0 onwards, shifted to a zero baseline, with frequency
	// shifts divided by n when normalization is on. It is meant for display.
	Table *domain.CanonicalTable
	// Shifted is Table without the frequency normalization. Range statistics and the
	// models work on it. It is Table itself when normalization is off.
	Shifted *domain.CanonicalTable
	// Baseline is rows [0, tf) after t0 as they were before any correction
	Baseline *domain.CanonicalTable
	// Means are the per-overtone baseline means that were subtracted, in the units of the input
	Means domain.CalibrationOffsetSet
}

// ApplyBaseline drops rows before the window start, subtracts the baseline mean of each
// measured series, re-zeroes and rescales time and expresses dissipation in units of 1e-6.
// The input table is not modified.
func ApplyBaseline(t *domain.CanonicalTable, w domain.BaselineWindow, opts Options) (*Corrected, error) {
	if w.T0Index < 0 || w.T0Index >= t.Len() {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("baseline start %d outside table of %d rows", w.T0Index, t.Len()))
	}
	out := t.Slice(w.T0Index, t.Len())
	if w.TfIndex <= 0 || w.TfIndex > out.Len() {
		return nil, apperrors.NewMissingDataError(
			fmt.Sprintf("baseline window [0, %d) is empty or exceeds %d rows", w.TfIndex, out.Len()))
	}
	res := &Corrected{Table: out, Shifted: out, Baseline: out.Slice(0, w.TfIndex)}

	for _, o := range domain.AllOvertones {
		for _, kind := range []domain.MeasurementKind{domain.KindFrequency, domain.KindDissipation} {
			col, ok := out.Series(o, kind)
			if !ok {
				continue
			}
			mean, ok := nanMean(col[:w.TfIndex])
			if !ok {
				mean = math.NaN()
			}
			for i := range col {
				col[i] -= mean
			}
			if ok {
				if kind == domain.KindDissipation {
					res.Means.Dis[o] = domain.Offset{Value: mean, Set: true}
				} else {
					res.Means.Freq[o] = domain.Offset{Value: mean, Set: true}
				}
			}
		}
	}

	if !out.DissipationPPM {
		for _, o := range domain.AllOvertones {
			for i := range out.Dis[o] {
				out.Dis[o][i] *= PPM
			}
		}
		out.DissipationPPM = true
	}

	start, ok := firstValue(out.Time)
	if !ok {
		return nil, apperrors.NewMissingDataError("time column holds no values")
	}
	div := opts.TimeScale.Divisor()
	for i := range out.Time {
		out.Time[i] = (out.Time[i] - start) / div
	}

	if opts.NormalizeFrequency {
		res.Table = normalizeFrequency(out)
	}
	return res, nil
}

// normalizeFrequency returns a copy of t with every frequency series divided by its
// overtone number
func normalizeFrequency(t *domain.CanonicalTable) *domain.CanonicalTable {
	out := t.Clone()
	for _, o := range domain.AllOvertones {
		n := float64(o.Number())
		for i := range out.Freq[o] {
			out.Freq[o][i] /= n
		}
	}
	return out
}

// HasPartialMissingData reports rows where some, but not nearly all, values are missing.
// Rows missing everything but a couple of columns are expected, e.g. where one instrument
// logs temperature more often than frequency.
func HasPartialMissingData(t *domain.CanonicalTable) bool {
	var cols [][]float64
	cols = append(cols, t.Time)
	for _, o := range domain.AllOvertones {
		if t.Freq[o] != nil {
			cols = append(cols, t.Freq[o])
		}
		if t.Dis[o] != nil {
			cols = append(cols, t.Dis[o])
		}
	}
	if t.Temp != nil {
		cols = append(cols, t.Temp)
	}
	if t.TempTime != nil {
		cols = append(cols, t.TempTime)
	}
	width := len(cols)
	if t.AbsTime != nil {
		width++
	}
	threshold := width - 2

	for r := 0; r < t.Len(); r++ {
		missing := 0
		for _, c := range cols {
			if math.IsNaN(c[r]) {
				missing++
			}
		}
		if t.AbsTime != nil && t.AbsTime[r] == "" {
			missing++
		}
		if missing > 0 && missing < threshold {
			return true
		}
	}
	return false
}

func nanMean(values []float64) (float64, bool) {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return 0, false
	}
	return stat.Mean(clean, nil), true
}

func dropNaN(values []float64) []float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	return clean
}

func firstValue(values []float64) (float64, bool) {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v, true
		}
	}
	return 0, false
}
