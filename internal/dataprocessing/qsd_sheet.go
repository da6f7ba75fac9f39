package dataprocessing

import (
	"fmt"
	"os"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/internal/qsd"
	"qcmpulse/pkg/contracts/domain"
)

// DefaultNoiseFloor drops rows holding uninitialized or zero padded samples
const DefaultNoiseFloor = 1e-8

// ReadQSDFile decodes a binary container from disk and extracts sensor 1
func ReadQSDFile(path string, noiseFloor float64) (*domain.CanonicalTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	rec, err := qsd.Decode(data)
	if err != nil {
		return nil, err
	}
	return SensorTable(rec, noiseFloor)
}

// SensorTable assigns one frequency/dissipation column pair per overtone of the first
// sensor. A row survives only if every column, Time included, is at or above noiseFloor.
// Containers store dissipation in units of 1e-6; it is converted to absolute values so every
// normalized table shares one unit.
func SensorTable(rec *qsd.Recording, noiseFloor float64) (*domain.CanonicalTable, error) {
	overtones := rec.OvertonesPerSensor()
	if overtones == 0 || len(rec.Time) == 0 {
		return nil, apperrors.NewFormatError("container holds no runs", -1)
	}
	if overtones > domain.NumOvertones {
		return nil, apperrors.NewFormatError(
			fmt.Sprintf("container holds %d overtones per sensor, at most %d are supported", overtones, domain.NumOvertones), -1)
	}

	times := rec.Time[0]
	width := len(rec.Freq[0])
	// the first time run is one sample short of its frequency run
	if len(times) < width && len(times) < len(rec.Dis[0]) {
		times = append([]float64{0}, times...)
	}
	if len(times) != width || len(rec.Dis[0]) != width {
		return nil, apperrors.NewShapeMismatchError("time and frequency runs of sensor 1", len(times), width).
			WithContext("stage", "qsd")
	}

	keep := make([]bool, width)
	kept := 0
	for i := 0; i < width; i++ {
		ok := times[i] >= noiseFloor
		for o := 0; o < overtones && ok; o++ {
			ok = rec.Freq[o][i] >= noiseFloor && rec.Dis[o][i] >= noiseFloor
		}
		keep[i] = ok
		if ok {
			kept++
		}
	}

	t := &domain.CanonicalTable{Time: filter(times, keep, kept)}
	for o := 0; o < overtones; o++ {
		t.Freq[o] = filter(rec.Freq[o], keep, kept)
		t.Dis[o] = filter(rec.Dis[o], keep, kept)
	}
	ScaleDissipation(t, DissipationScale)
	if err := t.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeFormat, "decoded runs do not form a table", err)
	}
	return t, nil
}

func filter(values []float64, keep []bool, n int) []float64 {
	out := make([]float64, 0, n)
	for i, ok := range keep {
		if ok {
			out = append(out, values[i])
		}
	}
	return out
}
