package exporter

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcmpulse/internal/config"
)

// setupTestEnv creates a writer rooted in a temporary data directory
func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()

	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())
	return NewCSVWriter(paths), paths
}

func TestCSVWriter_ReadCSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	header, records, err := writer.ReadCSV("missing.csv")
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, records)

	path := filepath.Join(paths.RawDataDir, "bom.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFa,b\n1,2\n"), 0644))

	header, records, err = writer.ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Equal(t, [][]string{{"1", "2"}}, records)
}

func TestCSVWriter_ReplaceRows(t *testing.T) {
	writer, paths := setupTestEnv(t)
	file := "rows_output.csv"
	header := []string{"key", "value"}

	require.NoError(t, writer.ReplaceRows(file, header, nil, [][]string{{"a", "1"}, {"b", "2"}}))

	dropA := func(rec []string) bool { return rec[0] == "a" }
	require.NoError(t, writer.ReplaceRows(file, header, dropA, [][]string{{"a", "3"}}))

	got, records, err := writer.ReadCSV(paths.GetModelOutputPath(file))
	require.NoError(t, err)
	assert.Equal(t, header, got)
	assert.Equal(t, [][]string{{"b", "2"}, {"a", "3"}}, records)

	// a different header starts a fresh file
	require.NoError(t, writer.ReplaceRows(file, []string{"key"}, nil, [][]string{{"c"}}))
	_, records, err = writer.ReadCSV(paths.GetModelOutputPath(file))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"c"}}, records)

	entries, err := os.ReadDir(paths.SelectedRangesDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temp file %s left behind", e.Name())
	}
}

func TestCSVWriter_ReplaceRowsConcurrent(t *testing.T) {
	writer, paths := setupTestEnv(t)
	file := "concurrent_output.csv"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := formatInt(i)
			drop := func(rec []string) bool { return rec[0] == key }
			assert.NoError(t, writer.ReplaceRows(file, []string{"key"}, drop, [][]string{{key}}))
		}(i)
	}
	wg.Wait()

	_, records, err := writer.ReadCSV(paths.GetModelOutputPath(file))
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestCSVWriter_StreamWriter(t *testing.T) {
	writer, paths := setupTestEnv(t)

	sw, err := writer.CreateStreamWriter("stream.csv", []string{"x", "y"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sw.WriteRecord([]string{formatInt(i), formatInt(i * i)}))
	}
	require.NoError(t, sw.Close())

	content, err := os.ReadFile(paths.GetFormattedPath("stream.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x,y\n0,0\n1,1\n2,4\n", string(content))
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, paths := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		expected string
	}{
		{"absolute", "/tmp/x.csv", "/tmp/x.csv"},
		{"archive", "archive/run.parquet", filepath.Join(paths.ArchiveDir, "run.parquet")},
		{"frequency statistics", "clean" + config.StatsFreqSuffix, filepath.Join(paths.SelectedRangesDir, "clean"+config.StatsFreqSuffix)},
		{"dissipation statistics", "raw" + config.StatsDissipationSuffix, filepath.Join(paths.SelectedRangesDir, "raw"+config.StatsDissipationSuffix)},
		{"model output", "sauerbrey_output.csv", filepath.Join(paths.SelectedRangesDir, "sauerbrey_output.csv")},
		{"formatted table", "Formatted-run.csv", filepath.Join(paths.RawDataDir, "Formatted-run.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, writer.resolvePath(tt.filePath))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1.5000000000000000E+00", formatFloat(1.5))
	assert.Equal(t, "", formatCell(nil, 0))

	v, err := parseFloat(" ")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = parseFloat("abc")
	assert.Error(t, err)
}
