package exporter

import (
	"qcmpulse/internal/config"
	apperrors "qcmpulse/internal/errors"
)

// Columns that key the rows of a model output file
const (
	ModelColumnRangeName  = "range_name"
	ModelColumnDataSource = "data_source"
)

// ModelOutputStore persists model outputs. Files whose header carries range_name and
// data_source keep one block of rows per (range_name, data_source); saving a block replaces
// the previous one. Any other file is rewritten as a whole.
type ModelOutputStore struct {
	csvWriter *CSVWriter
	paths     *config.Paths
}

// NewModelOutputStore creates a new model output store
func NewModelOutputStore(paths *config.Paths) *ModelOutputStore {
	return &ModelOutputStore{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
	}
}

// Save writes the records of one model run to file
func (s *ModelOutputStore) Save(file string, header []string, label, source string, records [][]string) error {
	labelCol, sourceCol := indexOf(header, ModelColumnRangeName), indexOf(header, ModelColumnDataSource)

	drop := func(rec []string) bool { return true }
	if labelCol >= 0 && sourceCol >= 0 {
		drop = func(rec []string) bool {
			if len(rec) != len(header) {
				return true
			}
			return rec[labelCol] == label && rec[sourceCol] == source
		}
	}

	path := s.paths.GetModelOutputPath(file)
	if err := s.csvWriter.ReplaceRows(path, header, drop, records); err != nil {
		return apperrors.NewStorageError("failed to save model output", err).
			WithContext("path", path)
	}
	return nil
}

// Load returns the header and rows of a model output file. A missing file has neither.
func (s *ModelOutputStore) Load(file string) ([]string, [][]string, error) {
	path := s.paths.GetModelOutputPath(file)
	header, records, err := s.csvWriter.ReadCSV(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to read model output", err).
			WithContext("path", path)
	}
	return header, records, nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}
