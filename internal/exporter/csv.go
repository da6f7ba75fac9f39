package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"qcmpulse/internal/config"
)

// CSVWriter reads and writes the CSV files of the data directory. Relative names are
// placed by resolvePath: formatted tables next to the raw exports, statistics and model
// outputs in the selected ranges directory.
type CSVWriter struct {
	paths *config.Paths

	// mu serializes read-modify-write cycles on shared result files
	mu sync.Mutex
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// ReadCSV reads a result file written by this writer. A missing file yields no header and
// no records.
func (w *CSVWriter) ReadCSV(filePath string) ([]string, [][]string, error) {
	fullPath := w.resolvePath(filePath)
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", fullPath, err)
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}
	return header, records, nil
}

// ReplaceRows rewrites a result file: existing rows for which drop returns true are removed
// and records are appended. An existing file with a different header is started afresh.
// The new content replaces the old file atomically.
func (w *CSVWriter) ReplaceRows(filePath string, headers []string, drop func(record []string) bool, records [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fullPath := w.resolvePath(filePath)
	existingHeader, existing, err := w.ReadCSV(fullPath)
	if err != nil {
		return err
	}

	var kept [][]string
	if existingHeader != nil && !sameHeader(existingHeader, headers) {
		slog.Warn("Result file header changed, starting a new file",
			slog.String("full_path", fullPath),
			slog.String("old_header", strings.Join(existingHeader, ",")))
	} else {
		for _, rec := range existing {
			if drop != nil && drop(rec) {
				continue
			}
			kept = append(kept, rec)
		}
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := cw.WriteAll(append(kept, records...)); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	slog.Debug("Replacing CSV rows",
		slog.String("full_path", fullPath),
		slog.Int("kept", len(kept)),
		slog.Int("written", len(records)))
	return writeFileAtomic(fullPath, buf.Bytes())
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	slog.Debug("Streaming CSV file",
		slog.String("full_path", fullPath),
		slog.Int("columns", len(headers)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer := csv.NewWriter(file)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{
		file:   file,
		writer: writer,
	}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// resolvePath resolves a path to the appropriate directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}

	switch {
	case strings.HasPrefix(filePath, "archive/"):
		return filepath.Join(w.paths.ArchiveDir, strings.TrimPrefix(filePath, "archive/"))
	case strings.HasSuffix(filePath, config.StatsFreqSuffix),
		strings.HasSuffix(filePath, config.StatsDissipationSuffix),
		strings.HasSuffix(filePath, "_output.csv"):
		return w.paths.GetModelOutputPath(filePath)
	default:
		// Everything else is a formatted table next to the raw exports
		return w.paths.GetFormattedPath(filePath)
	}
}
