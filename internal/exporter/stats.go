package exporter

import (
	"fmt"
	"strings"

	"qcmpulse/internal/config"
	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// StatsHeader is the header of both range statistics files
var StatsHeader = []string{"overtone", "mean", "std_dev", "median", "range_label", "x_lower", "x_upper", "data_source"}

const (
	statsColOvertone = iota
	statsColMean
	statsColStdDev
	statsColMedian
	statsColLabel
	statsColXLower
	statsColXUpper
	statsColSource
)

// StatsStore persists range statistics, one frequency and one dissipation file per data format
type StatsStore struct {
	csvWriter *CSVWriter
	paths     *config.Paths
}

// NewStatsStore creates a new range statistics store
func NewStatsStore(paths *config.Paths) *StatsStore {
	return &StatsStore{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
	}
}

// Save writes rows to the files of format. For every (range_label, data_source, overtone)
// being written the previous row is replaced; rows with an empty range label are dropped.
func (s *StatsStore) Save(format string, rows []domain.RangeStatistics) error {
	byKind := map[domain.MeasurementKind][]domain.RangeStatistics{}
	for _, r := range rows {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	for _, kind := range []domain.MeasurementKind{domain.KindFrequency, domain.KindDissipation} {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}

		replaced := make(map[string]bool, len(group))
		records := make([][]string, 0, len(group))
		for _, r := range group {
			replaced[r.Key()] = true
			records = append(records, statsRecord(r))
		}

		drop := func(rec []string) bool {
			if len(rec) != len(StatsHeader) || strings.TrimSpace(rec[statsColLabel]) == "" {
				return true
			}
			key := domain.RangeStatistics{
				Column:     rec[statsColOvertone],
				RangeLabel: rec[statsColLabel],
				DataSource: rec[statsColSource],
			}.Key()
			return replaced[key]
		}

		path := s.paths.GetStatsPath(format, kind == domain.KindDissipation)
		if err := s.csvWriter.ReplaceRows(path, StatsHeader, drop, records); err != nil {
			return apperrors.NewStorageError("failed to save range statistics", err).
				WithContext("path", path)
		}
	}
	return nil
}

// Load reads every persisted row of one kind. Rows holding only zeros are the sentinels of
// overtones that were not analyzed.
func (s *StatsStore) Load(format string, kind domain.MeasurementKind) ([]domain.RangeStatistics, error) {
	path := s.paths.GetStatsPath(format, kind == domain.KindDissipation)
	_, records, err := s.csvWriter.ReadCSV(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read range statistics", err).
			WithContext("path", path)
	}

	out := make([]domain.RangeStatistics, 0, len(records))
	for i, rec := range records {
		r, err := parseStatsRecord(rec)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeFormat,
				fmt.Sprintf("invalid statistics row %d in %s", i+2, path), err)
		}
		if r.Kind != kind {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Path returns the file for a format and kind
func (s *StatsStore) Path(format string, kind domain.MeasurementKind) string {
	return s.paths.GetStatsPath(format, kind == domain.KindDissipation)
}

func statsRecord(r domain.RangeStatistics) []string {
	return []string{
		r.Column,
		formatFloat(r.Mean),
		formatFloat(r.StdDev),
		formatFloat(r.Median),
		r.RangeLabel,
		formatFloat(r.XLower),
		formatFloat(r.XUpper),
		r.DataSource,
	}
}

func parseStatsRecord(rec []string) (domain.RangeStatistics, error) {
	if len(rec) != len(StatsHeader) {
		return domain.RangeStatistics{}, fmt.Errorf("expected %d fields, got %d", len(StatsHeader), len(rec))
	}
	o, kind, err := domain.ParseOvertoneColumn(strings.TrimSpace(rec[statsColOvertone]))
	if err != nil {
		return domain.RangeStatistics{}, err
	}

	r := domain.RangeStatistics{
		Overtone:   o,
		Kind:       kind,
		Column:     o.Column(kind),
		RangeLabel: rec[statsColLabel],
		DataSource: rec[statsColSource],
	}
	fields := []struct {
		dst *float64
		col int
	}{
		{&r.Mean, statsColMean},
		{&r.StdDev, statsColStdDev},
		{&r.Median, statsColMedian},
		{&r.XLower, statsColXLower},
		{&r.XUpper, statsColXUpper},
	}
	for _, f := range fields {
		v, err := parseFloat(rec[f.col])
		if err != nil {
			return domain.RangeStatistics{}, fmt.Errorf("column %s: %w", StatsHeader[f.col], err)
		}
		*f.dst = v
	}
	r.Analyzed = r.Mean != 0 || r.StdDev != 0 || r.Median != 0 || r.XLower != 0 || r.XUpper != 0
	return r, nil
}
