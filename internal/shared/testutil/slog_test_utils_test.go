package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_Captures(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Debug("reading header")
	logger.Info("Formatted table written", slog.String("file", "run.csv"), slog.Int("rows", 8))
	logger.Warn("Selected overtones without data in range", slog.String("range_label", "film"))

	assert.Equal(t, 3, handler.Count())
	assert.True(t, handler.ContainsMessage("table written"))
	assert.False(t, handler.ContainsMessage("Baseline located"))
	assert.True(t, handler.ContainsAttr("file", "run.csv"))
	assert.True(t, handler.ContainsAttr("rows", int64(8)), "slog stores ints as int64")
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelWarn), 1)

	AssertLogContains(t, handler, slog.LevelInfo, "Formatted table")
	AssertLogAttr(t, handler, "range_label", "film")
	AssertNoErrors(t, handler)

	handler.Clear()
	assert.Zero(t, handler.Count())
}

func TestBufferedSlogHandler_DerivedHandlersShareRecords(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.With("component", "hub").Info("client registered")
	logger.WithGroup("fit").With("model", "voinova").Info("converged", slog.Int("iterations", 40))

	records := handler.GetRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "hub", records[0].Attrs["component"])
	assert.Equal(t, "voinova", records[1].Attrs["fit.model"])
	assert.Equal(t, int64(40), records[1].Attrs["fit.iterations"])
}

func TestBufferedSlogHandler_Concurrent(t *testing.T) {
	logger, handler := NewTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("normalized", slog.Int("worker", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, handler.Count())
}
