package files

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Formatted reports whether the file was written by the normalizer
func (f FileInfo) Formatted() bool {
	return strings.HasPrefix(f.Name, dataprocessing.FormattedPrefix)
}

// Discovery finds instrument exports below a base path
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// list returns the regular files of dir accepted by keep, oldest first.
// Hidden files and spreadsheet lock files (~$) are never returned.
func (d *Discovery) list(dir string, keep func(name string) bool) ([]FileInfo, error) {
	fullPath := d.resolve(dir)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !keep(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// FindRawExports finds the vendor exports in dir that have not been normalized yet.
// Files named Formatted-* are skipped.
func (d *Discovery) FindRawExports(dir string) ([]FileInfo, error) {
	return d.list(dir, func(name string) bool {
		if strings.HasPrefix(name, dataprocessing.FormattedPrefix) {
			return false
		}
		return slices.Contains(config.AllowedUploadExtensions, strings.ToLower(filepath.Ext(name)))
	})
}

// FindFormatted finds the canonical tables written by the normalizer
func (d *Discovery) FindFormatted(dir string) ([]FileInfo, error) {
	return d.list(dir, func(name string) bool {
		return strings.HasPrefix(name, dataprocessing.FormattedPrefix) &&
			strings.EqualFold(filepath.Ext(name), dataprocessing.ExtCSV)
	})
}

// Pending returns the raw exports whose formatted table is missing or older than the export
func (d *Discovery) Pending(dir string) ([]FileInfo, error) {
	raw, err := d.FindRawExports(dir)
	if err != nil {
		return nil, err
	}
	formatted, err := d.FindFormatted(dir)
	if err != nil {
		return nil, err
	}

	written := make(map[string]time.Time, len(formatted))
	for _, f := range formatted {
		written[f.Name] = f.ModTime
	}

	var pending []FileInfo
	for _, f := range raw {
		mod, ok := written[dataprocessing.FormattedName(f.Name)]
		if !ok || mod.Before(f.ModTime) {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}
