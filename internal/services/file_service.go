package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
	apperrors "qcmpulse/internal/errors"
)

// File groups served by the file endpoints
const (
	FileGroupRaw       = "raw"
	FileGroupFormatted = "formatted"
	FileGroupResults   = "results"
	FileGroupArchive   = "archive"
)

// FileInfo describes one file in a data directory
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// FileListing groups the files of the data directories
type FileListing struct {
	Raw          []FileInfo `json:"raw"`
	Formatted    []FileInfo `json:"formatted"`
	Results      []FileInfo `json:"results"`
	Archive      []FileInfo `json:"archive"`
	TotalSize    int64      `json:"total_size"`
	LastModified time.Time  `json:"last_modified"`
}

// FileService lists and serves the files below the data root
type FileService struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewFileService creates a FileService
func NewFileService(paths *config.Paths, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{paths: paths, logger: logger.With(slog.String("component", "file_service"))}
}

// ListFiles returns every file grouped by kind, newest first
func (fs *FileService) ListFiles(ctx context.Context) (*FileListing, error) {
	listing := &FileListing{
		Raw:       []FileInfo{},
		Formatted: []FileInfo{},
		Results:   []FileInfo{},
		Archive:   []FileInfo{},
	}

	raw, err := fs.listDir(fs.paths.RawDataDir, "")
	if err != nil {
		return nil, err
	}
	for _, f := range raw {
		if strings.HasPrefix(f.Name, dataprocessing.FormattedPrefix) {
			listing.Formatted = append(listing.Formatted, f)
		} else {
			listing.Raw = append(listing.Raw, f)
		}
	}

	if listing.Results, err = fs.listDir(fs.paths.SelectedRangesDir, ".csv"); err != nil {
		return nil, err
	}
	if listing.Archive, err = fs.listDir(fs.paths.ArchiveDir, ".parquet"); err != nil {
		return nil, err
	}

	for _, group := range [][]FileInfo{listing.Raw, listing.Formatted, listing.Results, listing.Archive} {
		for _, f := range group {
			listing.TotalSize += f.Size
			if f.Modified.After(listing.LastModified) {
				listing.LastModified = f.Modified
			}
		}
	}

	fs.logger.DebugContext(ctx, "Listed data files",
		slog.Int("raw", len(listing.Raw)),
		slog.Int("formatted", len(listing.Formatted)),
		slog.Int("results", len(listing.Results)),
		slog.Int("archive", len(listing.Archive)))
	return listing, nil
}

func (fs *FileService) listDir(dir, extension string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, apperrors.NewStorageError("failed to list directory", err).WithContext("dir", dir)
	}

	files := []FileInfo{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if extension != "" && !strings.EqualFold(filepath.Ext(e.Name()), extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// Resolve returns the path of a file in a group. Names that leave the group's directory
// are rejected.
func (fs *FileService) Resolve(group, name string) (string, error) {
	var dir string
	switch group {
	case FileGroupRaw, FileGroupFormatted:
		dir = fs.paths.RawDataDir
	case FileGroupResults:
		dir = fs.paths.SelectedRangesDir
	case FileGroupArchive:
		dir = fs.paths.ArchiveDir
	default:
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid file group: %s", group))
	}

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." {
		fs.logger.Warn("Attempted directory traversal",
			slog.String("requested_path", name),
			slog.String("group", group))
		return "", apperrors.NewAppValidationError("invalid file path")
	}

	path := filepath.Join(dir, cleaned)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", apperrors.NewNotFoundError(cleaned)
	}
	return path, nil
}

// DownloadFile serves a file as an attachment
func (fs *FileService) DownloadFile(w http.ResponseWriter, r *http.Request, group, name string) error {
	path, err := fs.Resolve(group, name)
	if err != nil {
		return err
	}

	fs.logger.DebugContext(r.Context(), "Serving file",
		slog.String("group", group),
		slog.String("file", filepath.Base(path)))

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
	return nil
}
