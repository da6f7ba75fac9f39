package calibration

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

//go:embed theoretical_frequencies.csv
var theoreticalCSV []byte

// indexColumn labels the single row of an offset file
const indexColumn = "index"

// Theoretical returns the embedded reference frequencies, one per overtone slot
func Theoretical() ([domain.NumOvertones]float64, error) {
	return parseTheoretical(bytes.NewReader(theoreticalCSV))
}

// LoadTheoretical reads a reference table from path, or the embedded one when path is empty
func LoadTheoretical(path string) ([domain.NumOvertones]float64, error) {
	if path == "" {
		return Theoretical()
	}
	f, err := os.Open(path)
	if err != nil {
		return [domain.NumOvertones]float64{}, apperrors.NewMissingCalibrationError("failed to open theoretical table", err)
	}
	defer f.Close()
	return parseTheoretical(f)
}

func parseTheoretical(r io.Reader) ([domain.NumOvertones]float64, error) {
	var out [domain.NumOvertones]float64
	set, err := readOffsetRow(r)
	if err != nil {
		return out, err
	}
	for _, o := range domain.AllOvertones {
		if !set.Freq[o].Set {
			return out, apperrors.NewFormatError("theoretical table misses column "+o.FreqColumn(), -1)
		}
		out[o] = set.Freq[o].Value
	}
	return out, nil
}

// readOffsetRow parses the first data row of a table whose columns are canonical overtone
// names. Index and unrelated columns are skipped; empty and zero cells leave the offset unset.
func readOffsetRow(r io.Reader) (domain.CalibrationOffsetSet, error) {
	var set domain.CalibrationOffsetSet

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return set, apperrors.NewAppError(apperrors.ErrTypeFormat, "failed to read offset header", err)
	}
	row, err := cr.Read()
	if err == io.EOF {
		return set, nil
	}
	if err != nil {
		return set, apperrors.NewAppError(apperrors.ErrTypeFormat, "failed to read offset row", err)
	}

	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		o, kind, err := domain.ParseOvertoneColumn(name)
		if err != nil || i >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || v == 0 {
			continue
		}
		off := domain.Offset{Value: v, Set: true}
		if kind == domain.KindDissipation {
			set.Dis[o] = off
		} else {
			set.Freq[o] = off
		}
	}
	return set, nil
}

// OffsetStore persists measured offsets in the one-row offset file
type OffsetStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewOffsetStore creates a store backed by path
func NewOffsetStore(path string, logger *slog.Logger) *OffsetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OffsetStore{path: path, logger: logger.With(slog.String("component", "offset_store"))}
}

// Path returns the backing file
func (s *OffsetStore) Path() string {
	return s.path
}

// LoadOffsets reads the offset file. A missing file is a MISSING_CALIBRATION error.
func (s *OffsetStore) LoadOffsets() (domain.CalibrationOffsetSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return domain.CalibrationOffsetSet{}, apperrors.NewMissingCalibrationError("failed to open offset file", err).
			WithContext("path", s.path)
	}
	defer f.Close()
	return readOffsetRow(f)
}

// SaveOffsets replaces the offset file atomically. Unset offsets are written as 0.
func (s *OffsetStore) SaveOffsets(set domain.CalibrationOffsetSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := []string{""}
	row := []string{indexColumn}
	for _, o := range domain.AllOvertones {
		for _, kind := range []domain.MeasurementKind{domain.KindFrequency, domain.KindDissipation} {
			header = append(header, o.Column(kind))
			off := set.Get(o, kind)
			if off.Set {
				row = append(row, strconv.FormatFloat(off.Value, 'g', -1, 64))
			} else {
				row = append(row, "0")
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll([][]string{header, row}); err != nil {
		return apperrors.NewStorageError("failed to encode offsets", err)
	}
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return apperrors.NewStorageError("failed to write offset file", err)
	}

	s.logger.Info("Saved calibration offsets", slog.String("path", s.path))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".offsets-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DeriveOffsets computes offsets from a baseline for instruments that record absolute values:
// the mean of every measured column, ignoring missing samples.
func DeriveOffsets(baseline *domain.CanonicalTable) domain.CalibrationOffsetSet {
	var set domain.CalibrationOffsetSet
	for _, o := range domain.AllOvertones {
		if col := baseline.Freq[o]; col != nil {
			if m, ok := nanMean(col); ok {
				set.Freq[o] = domain.Offset{Value: m, Set: true}
			}
		}
		if col := baseline.Dis[o]; col != nil {
			if m, ok := nanMean(col); ok {
				set.Dis[o] = domain.Offset{Value: m, Set: true}
			}
		}
	}
	return set
}

func nanMean(values []float64) (float64, bool) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, false
	}
	return stat.Mean(clean, nil), true
}

// Resolver picks reference frequencies for the models according to the calibration mode
type Resolver struct {
	Mode        domain.CalibrationMode
	Theoretical [domain.NumOvertones]float64
	Store       *OffsetStore
}

// ReferenceFrequencies returns the reference frequency of every selected overtone. Unselected
// overtones are left unset. In measured mode a selected overtone without an offset is a
// MISSING_CALIBRATION error so callers can fall back to the theoretical table.
func (r Resolver) ReferenceFrequencies(sel domain.OvertoneSelection) ([domain.NumOvertones]domain.Offset, error) {
	var out [domain.NumOvertones]domain.Offset

	if r.Mode != domain.CalibrationMeasured {
		for _, o := range sel.Selected() {
			out[o] = domain.Offset{Value: r.Theoretical[o], Set: true}
		}
		return out, nil
	}

	if r.Store == nil {
		return out, apperrors.NewMissingCalibrationError("no offset file configured", nil)
	}
	offsets, err := r.Store.LoadOffsets()
	if err != nil {
		return out, err
	}
	for _, o := range sel.Selected() {
		off := offsets.Freq[o]
		if !off.Set {
			return out, apperrors.NewMissingCalibrationError(
				fmt.Sprintf("offset file has no value for %s", o.FreqColumn()), nil).
				WithContext("overtone", o.Number())
		}
		out[o] = off
	}
	return out, nil
}
