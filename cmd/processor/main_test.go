package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcmpulse/internal/config"
	"qcmpulse/internal/shared/testutil"
	"qcmpulse/pkg/contracts/domain"
)

const qsenseRun = "Time_1,F_1:1,D_1:1,F_1:3,D_1:3\n" +
	"0,-1,1,-10,2\n" +
	"1,-1,1,-10,2\n" +
	"2,-5,2,-20,3\n"

func setupRoot(t *testing.T, exports map[string]string) (string, *config.Paths) {
	t.Helper()
	root := t.TempDir()
	paths := config.NewPaths(root)
	require.NoError(t, paths.EnsureDirectories())
	for name, content := range exports {
		require.NoError(t, os.WriteFile(filepath.Join(paths.RawDataDir, name), []byte(content), 0644))
	}
	return root, paths
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Analysis.Device = string(domain.DeviceQSense)
	return cfg
}

func TestRun(t *testing.T) {
	root, paths := setupRoot(t, map[string]string{
		"run1.csv": qsenseRun,
		"run2.csv": qsenseRun,
		"bad.csv":  "nothing,useful\n1,2\n",
	})
	logger, _ := testutil.NewTestLogger(t)

	sum, err := run(context.Background(), testConfig(), options{dataDir: root, workers: 2, parquet: true}, logger)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 3)
	assert.Equal(t, 1, sum.Failed)

	for _, o := range sum.Outcomes {
		if o.Source == "bad.csv" {
			assert.Error(t, o.Err)
			continue
		}
		require.NoError(t, o.Err, o.Source)
		assert.Equal(t, 3, o.Rows)
		assert.FileExists(t, o.Output)
		assert.FileExists(t, o.Archive)
	}
	assert.FileExists(t, paths.GetFormattedPath("Formatted-run1.csv"))
	assert.FileExists(t, paths.GetArchivePath("Formatted-run2.csv"))
}

func TestRun_SkipsUpToDateExports(t *testing.T) {
	root, _ := setupRoot(t, map[string]string{"run1.csv": qsenseRun})
	logger, _ := testutil.NewTestLogger(t)

	sum, err := run(context.Background(), testConfig(), options{dataDir: root, workers: 1}, logger)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 1)

	sum, err = run(context.Background(), testConfig(), options{dataDir: root, workers: 1}, logger)
	require.NoError(t, err)
	assert.Empty(t, sum.Outcomes)

	sum, err = run(context.Background(), testConfig(), options{dataDir: root, workers: 1, all: true}, logger)
	require.NoError(t, err)
	assert.Len(t, sum.Outcomes, 1)
}

func TestRun_DeviceOverride(t *testing.T) {
	root, _ := setupRoot(t, map[string]string{"run1.csv": qsenseRun})
	logger, _ := testutil.NewTestLogger(t)

	sum, err := run(context.Background(), testConfig(), options{dataDir: root, device: domain.DeviceAWSensors}, logger)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 1)
	assert.Error(t, sum.Outcomes[0].Err)
	assert.Equal(t, 1, sum.Failed)
}

func TestRun_MissingRawDirectory(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	_, err := run(context.Background(), testConfig(), options{dataDir: filepath.Join(t.TempDir(), "absent")}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
