package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"qcmpulse/internal/analysis"
	"qcmpulse/internal/calibration"
	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
	apperrors "qcmpulse/internal/errors"
	"qcmpulse/internal/exporter"
	"qcmpulse/internal/infrastructure"
	"qcmpulse/internal/modeling"
	"qcmpulse/pkg/contracts/domain"
	"qcmpulse/pkg/contracts/events"
)

// EventPublisher receives result events; the WebSocket hub is the production implementation
type EventPublisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.MessageType, interface{}) {}

// NormalizeResult is a normalized raw export and where its canonical table was written
type NormalizeResult struct {
	*dataprocessing.Normalized
	// Output is the formatted CSV; empty when the input already was that file
	Output             string
	PartialMissingData bool
}

// FitOptions are the per-request inputs of a model run
type FitOptions struct {
	Overtones []int
	Format    string
	// InitialGuess overrides the configured Voinova starting point when it has three values
	InitialGuess []float64
}

// FitResult is a model result and the file its rows were written to
type FitResult struct {
	Result *domain.ModelFitResult
	Output string
}

// AnalysisService is the core API: it normalizes raw exports, corrects baselines, persists
// range statistics and runs the physical models on them. Tables passed in are never modified.
type AnalysisService struct {
	cfg   config.AnalysisConfig
	paths *config.Paths

	normalizer  *dataprocessing.Normalizer
	offsets     *calibration.OffsetStore
	theoretical [domain.NumOvertones]float64
	tables      *exporter.TableExporter
	stats       *exporter.StatsStore
	outputs     *exporter.ModelOutputStore

	metrics   *infrastructure.BusinessMetrics
	publisher EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewAnalysisService wires the pipeline stages for cfg below paths
func NewAnalysisService(cfg config.AnalysisConfig, paths *config.Paths, logger *slog.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "analysis_service"))

	theoretical, err := loadTheoretical(cfg, paths)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to load theoretical frequencies", err)
	}

	offsets := calibration.NewOffsetStore(paths.OffsetFile, logger)
	normalizer := dataprocessing.NewNormalizer(dataprocessing.NormalizerConfig{
		Mode:       cfg.Mode(),
		NoiseFloor: cfg.NoiseFloor,
		Offsets:    offsets,
	}, logger)

	logger.Info("Analysis service initialized",
		slog.String("device", string(cfg.DeviceKind())),
		slog.String("calibration_mode", string(cfg.Mode())),
		slog.String("time_scale", string(cfg.Scale())),
		slog.String("data_dir", paths.RootDir))

	return &AnalysisService{
		cfg:         cfg,
		paths:       paths,
		normalizer:  normalizer,
		offsets:     offsets,
		theoretical: theoretical,
		tables:      exporter.NewTableExporter(paths),
		stats:       exporter.NewStatsStore(paths),
		outputs:     exporter.NewModelOutputStore(paths),
		publisher:   noopPublisher{},
		tracer:      infrastructure.Tracer(),
		logger:      logger,
	}, nil
}

func loadTheoretical(cfg config.AnalysisConfig, paths *config.Paths) ([domain.NumOvertones]float64, error) {
	if cfg.TheoreticalTable != "" {
		return calibration.LoadTheoretical(cfg.TheoreticalTable)
	}
	if config.FileExists(paths.TheoreticalFile) {
		return calibration.LoadTheoretical(paths.TheoreticalFile)
	}
	return calibration.Theoretical()
}

// SetMetrics installs the pipeline counters
func (s *AnalysisService) SetMetrics(m *infrastructure.BusinessMetrics) {
	s.metrics = m
}

// SetPublisher installs the receiver of result events
func (s *AnalysisService) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	s.publisher = p
}

// Paths returns the directory layout the service reads and writes
func (s *AnalysisService) Paths() *config.Paths {
	return s.paths
}

// Config returns the analysis options of the service
func (s *AnalysisService) Config() config.AnalysisConfig {
	return s.cfg
}

func (s *AnalysisService) fail(ctx context.Context, operation string, err error) {
	infrastructure.RecordError(ctx, err)
	var code string
	if t, ok := apperrors.TypeOf(err); ok {
		code = string(t)
	}
	s.publisher.Publish(ctx, events.MessageTypeError, events.ErrorEvent{
		Code:        code,
		Message:     err.Error(),
		Operation:   operation,
		Recoverable: apperrors.IsRecoverable(err),
	})
}

// Normalize adapts the raw export at path into the canonical table and writes it as
// Formatted-<name>.csv next to the raw exports. A zero device uses the configured one.
func (s *AnalysisService) Normalize(ctx context.Context, path string, device domain.DeviceKind) (*NormalizeResult, error) {
	if device == "" {
		device = s.cfg.DeviceKind()
	}
	ctx, span := s.tracer.Start(ctx, "analysis.normalize", trace.WithAttributes(
		attribute.String("file", filepath.Base(path)),
		attribute.String("device", string(device)),
	))
	defer span.End()
	ctx = infrastructure.SpanTraceID(ctx)

	start := time.Now()
	res, err := s.normalize(ctx, path, device)
	infrastructure.RecordNormalize(ctx, s.metrics, string(device), time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Normalization failed",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()))
		s.fail(ctx, "normalize", err)
		return nil, err
	}

	s.publisher.Publish(ctx, events.MessageTypeTableNormalized, events.TableNormalizedEvent{
		Source:              res.Source,
		Output:              filepath.Base(res.Output),
		Device:              res.Device,
		Rows:                res.Table.Len(),
		Overtones:           res.Table.Measured().Numbers(),
		PreviouslyFormatted: res.PreviouslyFormatted,
	})
	return res, nil
}

func (s *AnalysisService) normalize(ctx context.Context, path string, device domain.DeviceKind) (*NormalizeResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(filepath.Base(path))
		}
		return nil, apperrors.NewStorageError("failed to stat raw export", err)
	}

	n, err := s.normalizer.Normalize(ctx, path, device)
	if err != nil {
		return nil, err
	}
	res := &NormalizeResult{Normalized: n}

	if analysis.HasPartialMissingData(n.Table) {
		res.PartialMissingData = true
		s.logger.WarnContext(ctx, "Table has rows with partially missing data",
			slog.String("file", n.Source))
	}

	out := s.paths.GetFormattedPath(dataprocessing.FormattedName(n.Source))
	if samePath(out, path) {
		return res, nil
	}
	written, err := s.tables.WriteCanonical(out, n.Table)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to write formatted table", err).
			WithContext("path", out)
	}
	res.Output = written
	s.normalizer.Forget(written)

	s.logger.InfoContext(ctx, "Formatted table written",
		slog.String("file", n.Source),
		slog.String("output", filepath.Base(written)),
		slog.Int("rows", n.Table.Len()))
	return res, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// SaveUpload stores an uploaded raw export in the raw data directory, replacing a file of
// the same name, and returns its path
func (s *AnalysisService) SaveUpload(ctx context.Context, name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || strings.HasPrefix(base, ".") {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid file name %q", name))
	}
	path := s.paths.GetRawPath(base)

	tmp, err := os.CreateTemp(s.paths.RawDataDir, ".upload-*")
	if err != nil {
		return "", apperrors.NewStorageError("failed to create upload file", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to store upload %s: %w", base, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperrors.NewStorageError("failed to store upload", err).WithContext("path", path)
	}
	s.normalizer.Forget(path)

	s.logger.InfoContext(ctx, "Upload stored",
		slog.String("file", base),
		slog.Int64("bytes", n))
	return path, nil
}

// Forget drops the cached table of a raw export that is about to be replaced
func (s *AnalysisService) Forget(path string) {
	s.normalizer.Forget(path)
}

// Archive writes a parquet copy of a table to the archive directory
func (s *AnalysisService) Archive(ctx context.Context, name string, t *domain.CanonicalTable) (string, error) {
	path := s.paths.GetArchivePath(name)
	if err := exporter.WriteParquet(path, t); err != nil {
		return "", apperrors.NewStorageError("failed to archive table", err).WithContext("path", path)
	}
	s.logger.InfoContext(ctx, "Table archived",
		slog.String("file", name),
		slog.String("archive", filepath.Base(path)))
	return path, nil
}

// LoadTable returns the canonical table of a file in the raw data directory. Formatted
// tables are read as they are. Raw exports are normalized with device; a zero device means
// the one the file was last normalized with, or the configured one.
func (s *AnalysisService) LoadTable(ctx context.Context, file string, device domain.DeviceKind) (*domain.CanonicalTable, error) {
	path := s.paths.GetFormattedPath(file)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(filepath.Base(file))
		}
		return nil, apperrors.NewStorageError("failed to stat table", err)
	}
	if device == "" {
		if d, ok := s.normalizer.DeviceOf(path); ok {
			device = d
		} else {
			device = s.cfg.DeviceKind()
		}
	}
	n, err := s.normalizer.Normalize(ctx, path, device)
	if err != nil {
		return nil, err
	}
	return n.Table, nil
}

// LocateBaseline finds the baseline window of t. With relative set, t0 and tf are seconds;
// otherwise they are clock times matched against abs_time.
func (s *AnalysisService) LocateBaseline(ctx context.Context, t *domain.CanonicalTable, t0, tf string, relative bool) (domain.BaselineWindow, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.locate_baseline", trace.WithAttributes(
		attribute.String("t0", t0),
		attribute.String("tf", tf),
		attribute.Bool("relative", relative),
	))
	defer span.End()

	if !relative && t.AbsTime == nil {
		err := apperrors.NewAppValidationError("table has no absolute time column")
		s.fail(ctx, "baseline", err)
		return domain.BaselineWindow{}, err
	}

	w, err := analysis.LocateBaseline(t, t0, tf, relative, s.cfg.MaxTimeProbes)
	if err != nil {
		s.logger.WarnContext(ctx, "Baseline not found",
			slog.String("t0", t0),
			slog.String("tf", tf),
			slog.String("error", err.Error()))
		s.fail(ctx, "baseline", err)
		return domain.BaselineWindow{}, err
	}

	s.logger.InfoContext(ctx, "Baseline located",
		slog.Int("t0_index", w.T0Index),
		slog.Int("tf_index", w.TfIndex))
	s.publisher.Publish(ctx, events.MessageTypeBaseline, events.BaselineEvent{Window: w})
	return w, nil
}

// CorrectBaseline applies the window to a copy of t with the configured time scale and
// frequency normalization
func (s *AnalysisService) CorrectBaseline(ctx context.Context, t *domain.CanonicalTable, w domain.BaselineWindow) (*analysis.Corrected, error) {
	c, err := analysis.ApplyBaseline(t, w, analysis.Options{
		NormalizeFrequency: s.cfg.NormalizeFrequency,
		TimeScale:          s.cfg.Scale(),
	})
	if err != nil {
		return nil, err
	}
	if analysis.HasPartialMissingData(c.Table) {
		s.logger.WarnContext(ctx, "Corrected table has rows with partially missing data",
			slog.Int("rows", c.Table.Len()))
	}
	return c, nil
}

// DeriveOffsets takes the baseline means of t as calibration offsets and saves them to the
// offset file. Instruments that record absolute values use them in measured mode.
func (s *AnalysisService) DeriveOffsets(ctx context.Context, t *domain.CanonicalTable, w domain.BaselineWindow) (domain.CalibrationOffsetSet, error) {
	c, err := analysis.ApplyBaseline(t, w, analysis.Options{TimeScale: domain.TimeScaleSeconds})
	if err != nil {
		return domain.CalibrationOffsetSet{}, err
	}

	set := calibration.DeriveOffsets(c.Baseline)
	if set.Empty() {
		return set, apperrors.NewMissingDataError("baseline holds no measured values")
	}
	if err := s.offsets.SaveOffsets(set); err != nil {
		return set, err
	}
	s.normalizer.Reset()

	s.logger.InfoContext(ctx, "Calibration offsets derived from baseline",
		slog.String("path", s.offsets.Path()),
		slog.Int("baseline_rows", c.Baseline.Len()))
	return set, nil
}

// OffsetFile is where calibration offsets are read from and saved to
func (s *AnalysisService) OffsetFile() string {
	return s.offsets.Path()
}

func (s *AnalysisService) format(format string) string {
	if format == "" {
		return s.cfg.DataFormat
	}
	return format
}

// ComputeRangeStats summarizes a range of a corrected table and persists the rows under
// format, replacing earlier rows of the same label, source and overtone. Selected series
// without data are reported through a MISSING_DATA error next to the rows, which are saved
// regardless.
func (s *AnalysisService) ComputeRangeStats(ctx context.Context, t *domain.CanonicalTable, sel domain.RangeSelection, overtones domain.OvertoneSelection, format string) ([]domain.RangeStatistics, error) {
	format = s.format(format)
	ctx, span := s.tracer.Start(ctx, "analysis.range_statistics", trace.WithAttributes(
		attribute.String("range_label", sel.RangeLabel),
		attribute.String("data_source", sel.DataSource),
		attribute.String("format", format),
	))
	defer span.End()

	rows, missing := analysis.RangeStatistics(t, sel, overtones)
	if rows == nil {
		s.fail(ctx, "statistics", missing)
		return nil, missing
	}
	if missing != nil {
		s.logger.WarnContext(ctx, "Selected overtones without data in range",
			slog.String("range_label", sel.RangeLabel),
			slog.String("error", missing.Error()))
	}

	if err := s.stats.Save(format, rows); err != nil {
		s.fail(ctx, "statistics", err)
		return nil, err
	}
	infrastructure.RecordStatsWritten(ctx, s.metrics, format, len(rows))

	missingCols := MissingColumns(rows, overtones)
	s.logger.InfoContext(ctx, "Range statistics saved",
		slog.String("range_label", sel.RangeLabel),
		slog.String("data_source", sel.DataSource),
		slog.String("format", format),
		slog.Int("rows", len(rows)),
		slog.Int("missing", len(missingCols)))
	s.publisher.Publish(ctx, events.MessageTypeStatistics, events.StatisticsEvent{
		RangeLabel: sel.RangeLabel,
		DataSource: sel.DataSource,
		Format:     format,
		Rows:       len(rows),
		Missing:    len(missingCols),
	})
	return rows, missing
}

// MissingColumns lists the selected series that ended up with sentinel rows
func MissingColumns(rows []domain.RangeStatistics, overtones domain.OvertoneSelection) []string {
	var out []string
	for _, r := range rows {
		if overtones[r.Overtone] && !r.Analyzed {
			out = append(out, r.Column)
		}
	}
	return out
}

// Statistics returns the persisted rows of one kind and format
func (s *AnalysisService) Statistics(ctx context.Context, kind domain.MeasurementKind, format string) ([]domain.RangeStatistics, error) {
	rows, err := s.loadStats(s.format(format), kind)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Range statistics loaded",
		slog.String("kind", string(kind)),
		slog.Int("rows", len(rows)))
	return rows, nil
}

func (s *AnalysisService) loadStats(format string, kind domain.MeasurementKind) ([]domain.RangeStatistics, error) {
	path := s.stats.Path(format, kind)
	if !config.FileExists(path) {
		return nil, apperrors.NewNotFoundError(filepath.Base(path))
	}
	return s.stats.Load(format, kind)
}

// FitModel runs model on the persisted statistics of label and saves its output file
func (s *AnalysisService) FitModel(ctx context.Context, model domain.ModelName, label string, opts FitOptions) (*FitResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.fit_model", trace.WithAttributes(
		attribute.String("model", string(model)),
		attribute.String("range_label", label),
	))
	defer span.End()

	start := time.Now()
	res, err := s.fitModel(ctx, model, label, opts)
	infrastructure.RecordModelFit(ctx, s.metrics, string(model), time.Since(start), err)
	if err != nil {
		level := slog.LevelError
		if apperrors.IsRecoverable(err) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "Model fit failed",
			slog.String("model", string(model)),
			slog.String("range_label", label),
			slog.String("error", err.Error()))
		s.fail(ctx, "model", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Model fitted",
		slog.String("model", string(model)),
		slog.String("range_label", label),
		slog.Float64("r_squared", res.Result.RSquared),
		slog.Duration("duration", time.Since(start)))
	s.publisher.Publish(ctx, events.MessageTypeModelFit, events.ModelFitEvent{
		Result: res.Result,
		Output: filepath.Base(res.Output),
	})
	return res, nil
}

func (s *AnalysisService) fitModel(ctx context.Context, model domain.ModelName, label string, opts FitOptions) (*FitResult, error) {
	sel, err := domain.SelectOvertones(opts.Overtones...)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	if sel.Count() == 0 {
		return nil, apperrors.NewAppValidationError("no overtones selected")
	}

	var ds *modeling.Dataset
	if modeling.NeedsStatistics(model) {
		if strings.TrimSpace(label) == "" {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s needs a range label", model))
		}
		format := s.format(opts.Format)
		freq, err := s.loadStats(format, domain.KindFrequency)
		if err != nil {
			return nil, err
		}
		dis, err := s.loadStats(format, domain.KindDissipation)
		if err != nil {
			return nil, err
		}
		if ds, err = modeling.Aggregate(label, freq, dis); err != nil {
			return nil, err
		}
	}

	refs, err := s.references(ctx, sel)
	if err != nil {
		return nil, err
	}

	voinova, err := s.voinovaOptions(opts.InitialGuess)
	if err != nil {
		return nil, err
	}

	fit, err := modeling.Run(model, ds, modeling.Options{
		Selection:           sel,
		References:          refs,
		MeasuredFundamental: s.measuredFundamental(ctx),
		Voinova:             voinova,
	})
	if err != nil {
		return nil, err
	}

	var source string
	if ds != nil {
		source = ds.Source()
	}
	if err := s.outputs.Save(fit.Output.File, fit.Output.Header, label, source, fit.Output.Records); err != nil {
		return nil, err
	}
	return &FitResult{
		Result: fit.Result,
		Output: s.paths.GetModelOutputPath(fit.Output.File),
	}, nil
}

// references resolves the calibration frequencies, falling back to the theoretical table
// when measured offsets are unavailable
func (s *AnalysisService) references(ctx context.Context, sel domain.OvertoneSelection) ([domain.NumOvertones]domain.Offset, error) {
	resolver := calibration.Resolver{Mode: s.cfg.Mode(), Theoretical: s.theoretical, Store: s.offsets}
	refs, err := resolver.ReferenceFrequencies(sel)
	if err == nil || !apperrors.IsType(err, apperrors.ErrTypeMissingCalibration) {
		return refs, err
	}

	s.logger.WarnContext(ctx, "Measured calibration unavailable, using theoretical frequencies",
		slog.String("error", err.Error()))
	resolver.Mode = domain.CalibrationTheoretical
	return resolver.ReferenceFrequencies(sel)
}

// measuredFundamental is zero, selecting the theoretical constants, unless theoretical C
// is switched off. The fundamental offset of the offset file wins over the configured value.
func (s *AnalysisService) measuredFundamental(ctx context.Context) float64 {
	if s.cfg.TheoreticalC {
		return 0
	}
	if s.cfg.Mode() == domain.CalibrationMeasured {
		if set, err := s.offsets.LoadOffsets(); err == nil {
			if f := set.Freq[domain.Fundamental]; f.Set && f.Value > 0 {
				return f.Value
			}
		} else {
			s.logger.DebugContext(ctx, "No measured fundamental in offset file",
				slog.String("error", err.Error()))
		}
	}
	return s.cfg.FundamentalFrequency
}

func (s *AnalysisService) voinovaOptions(guess []float64) (modeling.VoinovaOptions, error) {
	v := s.cfg.Voinova
	opts := modeling.VoinovaOptions{
		CrystalThickness: v.CrystalThickness,
		BulkViscosity:    v.BulkViscosity,
		FilmDensity:      v.FilmDensity,
		FilmViscosity:    v.FilmViscosity,
	}

	if len(guess) == 0 {
		guess = v.InitialGuess
	}
	if len(guess) == 0 {
		opts.InitialGuess = modeling.DefaultVoinovaOptions().InitialGuess
		return opts, nil
	}
	if len(guess) != 3 {
		return opts, apperrors.NewAppValidationError(
			fmt.Sprintf("voinova initial guess needs 3 values, got %d", len(guess)))
	}
	copy(opts.InitialGuess[:], guess)
	return opts, nil
}
