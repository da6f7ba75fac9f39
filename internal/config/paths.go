package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Well-known file names
const (
	OffsetFileName         = "COPY-PASTE_OFFSET_VALUES_HERE.csv"
	TheoreticalFileName    = "theoretical_frequencies.csv"
	StatsFreqSuffix        = "_all_stats_rf.csv"
	StatsDissipationSuffix = "_all_stats_dis.csv"
	DefaultStatsFormat     = "clean"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	RootDir           string
	RawDataDir        string
	SelectedRangesDir string
	OffsetDir         string
	ArchiveDir        string
	LogsDir           string

	OffsetFile      string
	TheoreticalFile string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out every directory below root:
//
//	root/
//	  ├── raw_data/         (vendor exports and Formatted-*.csv)
//	  ├── selected_ranges/  (range statistics and model outputs)
//	  ├── offset_data/      (calibration offsets)
//	  ├── archive/          (parquet copies of formatted tables)
//	  └── logs/
func NewPaths(root string) *Paths {
	offsetDir := filepath.Join(root, "offset_data")
	return &Paths{
		RootDir:           root,
		RawDataDir:        filepath.Join(root, "raw_data"),
		SelectedRangesDir: filepath.Join(root, "selected_ranges"),
		OffsetDir:         offsetDir,
		ArchiveDir:        filepath.Join(root, "archive"),
		LogsDir:           filepath.Join(root, "logs"),
		OffsetFile:        filepath.Join(offsetDir, OffsetFileName),
		TheoreticalFile:   filepath.Join(offsetDir, TheoreticalFileName),
	}
}

// ResolvePaths returns the paths for a configuration, falling back to the executable
// directory when no data directory is configured
func (c *Config) ResolvePaths() (*Paths, error) {
	if c.Paths.DataDir == "" {
		return GetPaths()
	}
	root, err := filepath.Abs(c.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	return NewPaths(root), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.RawDataDir,
		p.SelectedRangesDir,
		p.OffsetDir,
		p.ArchiveDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetRawPath returns the path of a raw export
func (p *Paths) GetRawPath(filename string) string {
	return filepath.Join(p.RawDataDir, filepath.Base(filename))
}

// GetFormattedPath returns the path of a formatted table
func (p *Paths) GetFormattedPath(filename string) string {
	return filepath.Join(p.RawDataDir, filepath.Base(filename))
}

// GetStatsPath returns the range statistics file for a data format and measurement kind,
// e.g. selected_ranges/clean_all_stats_rf.csv
func (p *Paths) GetStatsPath(format string, dissipation bool) string {
	if format == "" {
		format = DefaultStatsFormat
	}
	suffix := StatsFreqSuffix
	if dissipation {
		suffix = StatsDissipationSuffix
	}
	return filepath.Join(p.SelectedRangesDir, format+suffix)
}

// GetModelOutputPath returns the output file of a model
func (p *Paths) GetModelOutputPath(filename string) string {
	return filepath.Join(p.SelectedRangesDir, filename)
}

// GetArchivePath returns the parquet archive path for a formatted table
func (p *Paths) GetArchivePath(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(p.ArchiveDir, base+".parquet")
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("root", p.RootDir),
			slog.String("raw_data", p.RawDataDir),
			slog.String("selected_ranges", p.SelectedRangesDir),
			slog.String("offset_data", p.OffsetDir),
			slog.String("archive", p.ArchiveDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("offsets", p.OffsetFile),
			slog.Bool("offsets_exist", FileExists(p.OffsetFile)),
			slog.String("theoretical", p.TheoreticalFile),
		))
}
