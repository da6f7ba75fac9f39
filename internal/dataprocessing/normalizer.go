package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// FormattedPrefix marks files written by this pipeline
const FormattedPrefix = "Formatted-"

// OffsetLoader supplies measured calibration offsets for delta instruments
type OffsetLoader interface {
	LoadOffsets() (domain.CalibrationOffsetSet, error)
}

// NormalizerConfig configures a Normalizer
type NormalizerConfig struct {
	Mode       domain.CalibrationMode
	NoiseFloor float64
	Offsets    OffsetLoader
}

// Normalized is the outcome of normalizing one raw export
type Normalized struct {
	Table               *domain.CanonicalTable
	Source              string
	Device              domain.DeviceKind
	Mode                domain.CalibrationMode
	PreviouslyFormatted bool
}

// Normalizer turns raw vendor exports into canonical tables. Results are cached per file
// version (size and modification time), device and calibration mode, and concurrent calls
// for the same file share one pass, so offsets and un-normalization are applied exactly once
// however often a file is requested.
type Normalizer struct {
	cfg    NormalizerConfig
	logger *slog.Logger

	mu      sync.RWMutex
	cache   map[string]*Normalized
	devices map[string]domain.DeviceKind
	group   singleflight.Group
}

// NewNormalizer creates a Normalizer
func NewNormalizer(cfg NormalizerConfig, logger *slog.Logger) *Normalizer {
	if cfg.NoiseFloor <= 0 {
		cfg.NoiseFloor = DefaultNoiseFloor
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.CalibrationTheoretical
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "normalizer")),
		cache:   make(map[string]*Normalized),
		devices: make(map[string]domain.DeviceKind),
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// cacheKey starts with the absolute path followed by "|" so Forget can match every
// version of a file by prefix
func (n *Normalizer) cacheKey(path string, device domain.DeviceKind) string {
	key := absPath(path) + "|" + string(device) + "|" + string(n.cfg.Mode)
	if info, err := os.Stat(path); err == nil {
		key += fmt.Sprintf("|%d|%d", info.Size(), info.ModTime().UnixNano())
	}
	return key
}

// Normalize reads and adapts the file at path. Callers get their own copy of the table.
func (n *Normalizer) Normalize(ctx context.Context, path string, device domain.DeviceKind) (*Normalized, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := n.cacheKey(path, device)

	n.mu.RLock()
	cached, ok := n.cache[key]
	n.mu.RUnlock()
	if ok {
		return cached.copy(), nil
	}

	v, err, _ := n.group.Do(key, func() (interface{}, error) {
		n.mu.RLock()
		cached, ok := n.cache[key]
		n.mu.RUnlock()
		if ok {
			return cached, nil
		}

		res, err := n.normalizeFile(ctx, path, device)
		if err != nil {
			return nil, err
		}
		n.mu.Lock()
		n.cache[key] = res
		n.devices[absPath(path)] = device
		n.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Normalized).copy(), nil
}

// DeviceOf returns the device a file was last normalized with
func (n *Normalizer) DeviceOf(path string) (domain.DeviceKind, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.devices[absPath(path)]
	return d, ok
}

// Forget drops cached results for every version of a file, e.g. after it was replaced on disk
func (n *Normalizer) Forget(path string) {
	prefix := absPath(path) + "|"
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.cache {
		if strings.HasPrefix(k, prefix) {
			delete(n.cache, k)
		}
	}
}

// Reset drops every cached result. Offsets saved after a file was normalized only apply
// once its cached table is gone.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	n.cache = make(map[string]*Normalized)
	n.mu.Unlock()
}

func (r *Normalized) copy() *Normalized {
	out := *r
	out.Table = r.Table.Clone()
	return &out
}

func (n *Normalizer) normalizeFile(ctx context.Context, path string, device domain.DeviceKind) (*Normalized, error) {
	if _, ok := deviceFormats[device]; !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown device %q", device))
	}

	name := filepath.Base(path)
	res := &Normalized{Source: name, Device: device, Mode: n.cfg.Mode}

	if strings.EqualFold(filepath.Ext(name), ExtQSD) {
		t, err := ReadQSDFile(path, n.cfg.NoiseFloor)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		n.logger.InfoContext(ctx, "Decoded binary container",
			slog.String("file", name),
			slog.Int("rows", t.Len()))
		res.Table = t
		res.PreviouslyFormatted = true
		return res, nil
	}

	raw, err := ReadRawFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if strings.HasPrefix(name, FormattedPrefix) || IsCanonical(raw) {
		n.logger.InfoContext(ctx, "File has been formatted previously, using it as is",
			slog.String("file", name))
		t, err := ToCanonical(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		res.Table = t
		res.PreviouslyFormatted = true
		return res, nil
	}

	var opts AdaptOptions
	if device.ReportsDeltas() && n.cfg.Mode == domain.CalibrationMeasured {
		offsets, err := n.loadOffsets()
		if err != nil {
			n.logger.WarnContext(ctx, "Calibration offsets unavailable, using theoretical values; offsets will NOT be added",
				slog.String("file", name),
				slog.String("error", err.Error()))
			res.Mode = domain.CalibrationTheoretical
		} else {
			opts.Offsets = &offsets
		}
	}

	t, err := Adapt(raw, device, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", name, err)
	}
	n.logger.InfoContext(ctx, "Formatted raw export",
		slog.String("file", name),
		slog.String("device", string(device)),
		slog.String("calibration_mode", string(res.Mode)),
		slog.Int("rows", t.Len()))

	res.Table = t
	return res, nil
}

func (n *Normalizer) loadOffsets() (domain.CalibrationOffsetSet, error) {
	if n.cfg.Offsets == nil {
		return domain.CalibrationOffsetSet{}, apperrors.NewMissingCalibrationError("no offset source configured", nil)
	}
	offsets, err := n.cfg.Offsets.LoadOffsets()
	if err != nil {
		return offsets, err
	}
	if offsets.Empty() {
		return offsets, apperrors.NewMissingCalibrationError("offset file holds no values", nil)
	}
	return offsets, nil
}

// ReadCanonicalFile reads a table previously written in the canonical CSV layout
func ReadCanonicalFile(path string) (*domain.CanonicalTable, error) {
	raw, err := ReadRawFile(path)
	if err != nil {
		return nil, err
	}
	return ToCanonical(raw)
}

// FormattedName returns the output file name for a raw export
func FormattedName(source string) string {
	base := filepath.Base(source)
	if strings.HasPrefix(base, FormattedPrefix) {
		return strings.TrimSuffix(base, filepath.Ext(base)) + ExtCSV
	}
	return FormattedPrefix + strings.TrimSuffix(base, filepath.Ext(base)) + ExtCSV
}
