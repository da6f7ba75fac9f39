package analysis

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// RangeStatistics summarizes rows [IMin, IMax) of every overtone series. Selected overtones
// get mean, population standard deviation and median; the others get zero sentinel rows.
// Dissipation held in units of 1e-6 is converted back to absolute units.
//
// A selected series without a single value in the range also gets a sentinel row. The
// returned error then joins one MISSING_DATA error per such series while the rows for all
// other series are still returned.
func RangeStatistics(t *domain.CanonicalTable, sel domain.RangeSelection, overtones domain.OvertoneSelection) ([]domain.RangeStatistics, error) {
	if sel.IMin < 0 || sel.IMax > t.Len() || sel.IMin >= sel.IMax {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("range [%d, %d) is not within %d rows", sel.IMin, sel.IMax, t.Len())).
			WithContext("range_label", sel.RangeLabel)
	}

	times := dropNaN(t.Time[sel.IMin:sel.IMax])
	var xLower, xUpper float64
	if len(times) > 0 {
		xLower, xUpper = floats.Min(times), floats.Max(times)
	}

	scale := 1.0
	if t.DissipationPPM {
		scale = 1 / PPM
	}

	out := make([]domain.RangeStatistics, 0, 2*domain.NumOvertones)
	var missing []error
	for _, kind := range []domain.MeasurementKind{domain.KindFrequency, domain.KindDissipation} {
		for _, o := range domain.AllOvertones {
			row := domain.NotAnalyzed(o, kind, sel.RangeLabel, sel.DataSource)
			if !overtones[o] {
				out = append(out, row)
				continue
			}

			col, _ := t.Series(o, kind)
			var values []float64
			if col != nil {
				values = dropNaN(col[sel.IMin:sel.IMax])
			}
			if len(values) == 0 {
				missing = append(missing, apperrors.NewMissingDataError(
					fmt.Sprintf("no data for %s in range %q", o.Column(kind), sel.RangeLabel)).
					WithContext("overtone", o.Number()))
				out = append(out, row)
				continue
			}
			if kind == domain.KindDissipation && scale != 1 {
				floats.Scale(scale, values)
			}

			mean, std := stat.PopMeanStdDev(values, nil)
			row.Mean = mean
			row.StdDev = std
			row.Median = median(values)
			row.XLower = xLower
			row.XUpper = xUpper
			row.Analyzed = true
			out = append(out, row)
		}
	}
	return out, errors.Join(missing...)
}

// median sorts values in place
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// SplitByKind separates frequency rows from dissipation rows
func SplitByKind(rows []domain.RangeStatistics) (freq, dis []domain.RangeStatistics) {
	for _, r := range rows {
		if r.Kind == domain.KindDissipation {
			dis = append(dis, r)
		} else {
			freq = append(freq, r)
		}
	}
	return freq, dis
}
