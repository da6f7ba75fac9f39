package modeling

import (
	"fmt"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// Series is the per-overtone mean of one measurement kind with its propagated error
type Series struct {
	Overtones []domain.Overtone
	Mean      []float64
	Err       []float64
}

// Numbers returns the overtone numbers as floats
func (s Series) Numbers() []float64 {
	out := make([]float64, len(s.Overtones))
	for i, o := range s.Overtones {
		out[i] = float64(o.Number())
	}
	return out
}

func (s Series) selection() domain.OvertoneSelection {
	var sel domain.OvertoneSelection
	for _, o := range s.Overtones {
		sel[o] = true
	}
	return sel
}

// Dataset is everything the models know about one range label
type Dataset struct {
	Label string
	// Sources lists the data sources of the label in order of first appearance
	Sources []string
	Freq    Series
	// Dis has no overtones when no dissipation statistics were saved for the label
	Dis Series
}

// Source is the data source model outputs are filed under
func (d *Dataset) Source() string {
	if len(d.Sources) == 0 {
		return ""
	}
	return d.Sources[0]
}

// CheckSelection fails when the selected overtones are not exactly the analyzed ones
func (d *Dataset) CheckSelection(sel domain.OvertoneSelection) error {
	if sel == d.Freq.selection() {
		return nil
	}
	return apperrors.NewShapeMismatchError(
		"different number of overtones selected than found in the statistics file",
		sel.Count(), len(d.Freq.Overtones)).
		WithContext("selected", sel.Numbers()).
		WithContext("analyzed", d.Freq.selection().Numbers())
}

// requireDissipation fails unless dissipation was analyzed for exactly the frequency overtones
func (d *Dataset) requireDissipation() error {
	if d.Dis.selection() == d.Freq.selection() {
		return nil
	}
	return apperrors.NewShapeMismatchError("dissipation statistics do not match frequency statistics",
		len(d.Dis.Overtones), len(d.Freq.Overtones)).
		WithContext("frequency", d.Freq.selection().Numbers()).
		WithContext("dissipation", d.Dis.selection().Numbers())
}

// Labels returns the range labels of rows in order of first appearance
func Labels(rows []domain.RangeStatistics) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.RangeLabel == "" || seen[r.RangeLabel] {
			continue
		}
		seen[r.RangeLabel] = true
		out = append(out, r.RangeLabel)
	}
	return out
}

// Aggregate averages the analyzed statistics of label across its data sources. Each
// overtone is averaged over the sources that analyzed it.
func Aggregate(label string, freq, dis []domain.RangeStatistics) (*Dataset, error) {
	d := &Dataset{Label: label}

	seen := map[string]bool{}
	for _, rows := range [][]domain.RangeStatistics{freq, dis} {
		for _, r := range rows {
			if r.RangeLabel != label || !r.Analyzed || seen[r.DataSource] {
				continue
			}
			seen[r.DataSource] = true
			d.Sources = append(d.Sources, r.DataSource)
		}
	}

	var err error
	if d.Freq, err = aggregateKind(label, freq, domain.KindFrequency); err != nil {
		return nil, err
	}
	if len(d.Freq.Overtones) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("frequency statistics for range %q", label))
	}
	if d.Dis, err = aggregateKind(label, dis, domain.KindDissipation); err != nil {
		return nil, err
	}
	return d, nil
}

func aggregateKind(label string, rows []domain.RangeStatistics, kind domain.MeasurementKind) (Series, error) {
	var means, sigmas [domain.NumOvertones][]float64
	for _, r := range rows {
		if r.RangeLabel != label || !r.Analyzed {
			continue
		}
		if r.Kind != kind {
			return Series{}, apperrors.NewAppValidationError(
				fmt.Sprintf("%s row %s in %s statistics", r.Kind, r.Column, kind))
		}
		means[r.Overtone] = append(means[r.Overtone], r.Mean)
		sigmas[r.Overtone] = append(sigmas[r.Overtone], r.StdDev)
	}

	var s Series
	for _, o := range domain.AllOvertones {
		if len(means[o]) == 0 {
			continue
		}
		var sum float64
		for _, m := range means[o] {
			sum += m
		}
		s.Overtones = append(s.Overtones, o)
		s.Mean = append(s.Mean, sum/float64(len(means[o])))
		s.Err = append(s.Err, MeanError(sigmas[o]))
	}
	return s, nil
}
