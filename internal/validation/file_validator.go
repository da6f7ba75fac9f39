package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"qcmpulse/internal/config"
)

// FileValidator checks the directories and exports the batch processor works on.
// Every rejection is logged before it is returned.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a validator logging to logger, or to the slog default
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger.With(slog.String("component", "file_validator"))}
}

// ValidateInputDirectory validates that dir exists and is a directory
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return v.reject("Input directory missing", "input directory %s does not exist", dir)
	case err != nil:
		return v.reject("Input directory unreadable", "cannot read input directory %s: %v", dir, err)
	case !info.IsDir():
		return v.reject("Input path is not a directory", "%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory creates dir when needed and probes that it accepts new files
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return v.reject("Output directory cannot be created", "cannot create output directory %s: %v", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".qcm-probe-*")
	if err != nil {
		return v.reject("Output directory is read only", "output directory %s is not writable: %v", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// ValidateExport checks that path is a readable, non-empty instrument export of a
// supported type. Spreadsheet lock files ("~$run.xlsx") are refused.
func (v *FileValidator) ValidateExport(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return v.reject("Export missing", "export %s does not exist", path)
	case err != nil:
		return v.reject("Export unreadable", "cannot read export %s: %v", path, err)
	case info.IsDir():
		return v.reject("Export is a directory", "%s is a directory, not an export", path)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case !slices.Contains(config.AllowedUploadExtensions, ext):
		return v.reject("Unsupported export type", "%s is not a supported export (extension %q)", name, ext)
	case strings.HasPrefix(name, "~$"):
		return v.reject("Lock file skipped", "%s is a spreadsheet lock file", name)
	case info.Size() == 0:
		return v.reject("Empty export", "export %s is empty", name)
	}

	f, err := os.Open(path)
	if err != nil {
		return v.reject("Export unreadable", "cannot open export %s: %v", name, err)
	}
	return f.Close()
}

func (v *FileValidator) reject(msg, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	v.logger.Warn(msg, slog.String("error", err.Error()))
	return err
}
