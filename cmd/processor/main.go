package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
	"qcmpulse/internal/files"
	"qcmpulse/internal/infrastructure"
	"qcmpulse/internal/services"
	"qcmpulse/internal/validation"
	"qcmpulse/pkg/contracts"
	"qcmpulse/pkg/contracts/domain"
)

// options are the command line settings of one batch
type options struct {
	dataDir string
	device  domain.DeviceKind
	workers int
	all     bool
	parquet bool
}

// outcome is the result of normalizing one export
type outcome struct {
	Source  string
	Output  string
	Archive string
	Rows    int
	Err     error
}

// summary collects the outcomes of a batch
type summary struct {
	mu       sync.Mutex
	Outcomes []outcome
	Failed   int
}

func (s *summary) add(o outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outcomes = append(s.Outcomes, o)
	if o.Err != nil {
		s.Failed++
	}
}

func main() {
	dataDir := flag.String("data", "", "data root holding raw_data/ (defaults to QCM_PATHS_DATA_DIR or the executable directory)")
	device := flag.String("device", "", "instrument that wrote the exports: next, qcm-i, qsense or awsensors (defaults to the configured device)")
	workers := flag.Int("workers", runtime.NumCPU(), "number of exports normalized concurrently")
	all := flag.Bool("all", false, "normalize every export, not only those without an up to date Formatted- table")
	parquet := flag.Bool("parquet", false, "also archive each canonical table as parquet")
	version := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Println("qcm-processor", contracts.GetVersionInfo())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	opts := options{
		dataDir: *dataDir,
		workers: *workers,
		all:     *all,
		parquet: *parquet,
	}
	if *device != "" {
		if opts.device, err = domain.ParseDeviceKind(*device); err != nil {
			logger.Error("Invalid device", slog.String("error", err.Error()))
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sum, err := run(ctx, cfg, opts, logger)
	if err != nil {
		logger.Error("Batch normalization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, o := range sum.Outcomes {
		if o.Err != nil {
			fmt.Printf("FAIL  %s: %v\n", o.Source, o.Err)
			continue
		}
		fmt.Printf("OK    %s -> %s (%d rows)\n", o.Source, o.Output, o.Rows)
	}
	logger.Info("Batch normalization complete",
		slog.Int("files", len(sum.Outcomes)),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", time.Since(start)))

	if sum.Failed > 0 {
		os.Exit(1)
	}
}

// run normalizes the pending exports of the raw data directory. A failing export is
// recorded in the summary and does not stop the others; only setup errors and
// cancellation are returned.
func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) (*summary, error) {
	if opts.dataDir != "" {
		cfg.Paths.DataDir = opts.dataDir
	}
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateInputDirectory(paths.RawDataDir); err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	outputs := []string{paths.RawDataDir}
	if opts.parquet {
		outputs = append(outputs, paths.ArchiveDir)
	}
	for _, dir := range outputs {
		if err := validator.ValidateOutputDirectory(dir); err != nil {
			return nil, err
		}
	}

	svc, err := services.NewAnalysisService(cfg.Analysis, paths, logger)
	if err != nil {
		return nil, err
	}

	discovery := files.NewDiscovery(paths.RootDir)
	var exports []files.FileInfo
	if opts.all {
		exports, err = discovery.FindRawExports(paths.RawDataDir)
	} else {
		exports, err = discovery.Pending(paths.RawDataDir)
	}
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Starting batch normalization",
		slog.String("raw_data_dir", paths.RawDataDir),
		slog.Int("files", len(exports)),
		slog.Int("workers", opts.workers),
		slog.Bool("parquet", opts.parquet))

	sum := &summary{}
	g, gctx := errgroup.WithContext(ctx)
	if opts.workers > 0 {
		g.SetLimit(opts.workers)
	}

	for _, export := range exports {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum.add(normalizeOne(gctx, svc, validator, export, opts))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}

func normalizeOne(ctx context.Context, svc *services.AnalysisService, validator *validation.FileValidator, export files.FileInfo, opts options) outcome {
	o := outcome{Source: export.Name}
	if err := validator.ValidateExport(export.Path); err != nil {
		o.Err = err
		return o
	}

	res, err := svc.Normalize(ctx, export.Path, opts.device)
	if err != nil {
		o.Err = err
		return o
	}
	o.Output = res.Output
	o.Rows = res.Table.Len()

	if opts.parquet {
		archive, err := svc.Archive(ctx, dataprocessing.FormattedName(res.Source), res.Table)
		if err != nil {
			o.Err = err
			return o
		}
		o.Archive = archive
	}
	return o
}
