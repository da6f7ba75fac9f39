package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qcmpulse/internal/config"
	apperrors "qcmpulse/internal/errors"
	"qcmpulse/internal/shared/testutil"
	"qcmpulse/pkg/contracts/domain"
	"qcmpulse/pkg/contracts/events"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	m.Called(ctx, msgType, data)
}

// qsenseRun is a delta export with a flat baseline over the first three seconds
const qsenseRun = "Time_1,F_1:1,D_1:1,F_1:3,D_1:3\n" +
	"0,-1,1,-10,2\n" +
	"1,-1,1,-10,2\n" +
	"2,-1,1,-10,2\n" +
	"3,-5,2,-20,3\n" +
	"4,-6,3,-21,4\n" +
	"5,-7,4,-22,5\n" +
	"6,-8,5,-23,6\n" +
	"7,-9,6,-24,7\n"

type serviceEnv struct {
	svc     *AnalysisService
	paths   *config.Paths
	pub     *mockPublisher
	handler *testutil.BufferedSlogHandler
}

func newServiceEnv(t *testing.T, mutate func(*config.AnalysisConfig)) *serviceEnv {
	t.Helper()

	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	cfg := config.Default().Analysis
	cfg.Device = string(domain.DeviceQSense)
	if mutate != nil {
		mutate(&cfg)
	}

	logger, handler := testutil.NewTestLogger(t)
	svc, err := NewAnalysisService(cfg, paths, logger)
	require.NoError(t, err)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()
	svc.SetPublisher(pub)

	return &serviceEnv{svc: svc, paths: paths, pub: pub, handler: handler}
}

func (e *serviceEnv) writeRaw(t *testing.T, name, content string) string {
	t.Helper()
	path := e.paths.GetRawPath(name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAnalysisService_Normalize(t *testing.T) {
	env := newServiceEnv(t, nil)
	path := env.writeRaw(t, "run.csv", qsenseRun)

	res, err := env.svc.Normalize(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, "run.csv", res.Source)
	assert.Equal(t, domain.DeviceQSense, res.Device)
	assert.False(t, res.PreviouslyFormatted)
	assert.Equal(t, filepath.Join(env.paths.RawDataDir, "Formatted-run.csv"), res.Output)
	assert.FileExists(t, res.Output)
	assert.Equal(t, 8, res.Table.Len())
	assert.Equal(t, []int{1, 3}, res.Table.Measured().Numbers())

	env.pub.AssertCalled(t, "Publish", mock.Anything, events.MessageTypeTableNormalized, mock.Anything)
	assert.True(t, env.handler.ContainsMessage("Formatted table written"))
	testutil.AssertLogAttr(t, env.handler, "output", "Formatted-run.csv")
	testutil.AssertNoErrors(t, env.handler)

	again, err := env.svc.Normalize(context.Background(), res.Output, "")
	require.NoError(t, err)
	assert.True(t, again.PreviouslyFormatted)
	assert.Empty(t, again.Output, "a formatted table is not written over itself")
}

func TestAnalysisService_NormalizeMissingFile(t *testing.T) {
	env := newServiceEnv(t, nil)

	_, err := env.svc.Normalize(context.Background(), env.paths.GetRawPath("absent.csv"), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	env.pub.AssertCalled(t, "Publish", mock.Anything, events.MessageTypeError, mock.Anything)
}

func TestAnalysisService_NormalizeWrongDevice(t *testing.T) {
	env := newServiceEnv(t, nil)
	path := env.writeRaw(t, "run.csv", qsenseRun)

	_, err := env.svc.Normalize(context.Background(), path, domain.DeviceAWSensors)
	require.Error(t, err)
	env.pub.AssertNotCalled(t, "Publish", mock.Anything, events.MessageTypeTableNormalized, mock.Anything)
}

func TestAnalysisService_Archive(t *testing.T) {
	env := newServiceEnv(t, nil)
	path := env.writeRaw(t, "run.csv", qsenseRun)
	res, err := env.svc.Normalize(context.Background(), path, "")
	require.NoError(t, err)

	archive, err := env.svc.Archive(context.Background(), res.Output, res.Table)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.paths.ArchiveDir, "Formatted-run.parquet"), archive)
	assert.FileExists(t, archive)
}

// pipeline normalizes qsenseRun and saves range statistics of the whole corrected table
func pipeline(t *testing.T, env *serviceEnv, label string) []domain.RangeStatistics {
	t.Helper()
	ctx := context.Background()

	_, err := env.svc.Normalize(ctx, env.writeRaw(t, "run.csv", qsenseRun), "")
	require.NoError(t, err)

	table, err := env.svc.LoadTable(ctx, "Formatted-run.csv", "")
	require.NoError(t, err)

	w, err := env.svc.LocateBaseline(ctx, table, "0", "2", true)
	require.NoError(t, err)

	corrected, err := env.svc.CorrectBaseline(ctx, table, w)
	require.NoError(t, err)

	sel, err := domain.SelectOvertones(1, 3)
	require.NoError(t, err)
	rows, err := env.svc.ComputeRangeStats(ctx, corrected.Shifted, domain.RangeSelection{
		RangeLabel: label,
		DataSource: "run.csv",
		IMin:       0,
		IMax:       corrected.Shifted.Len(),
	}, sel, "")
	require.NoError(t, err)
	return rows
}

func TestAnalysisService_RangeStatisticsPersisted(t *testing.T) {
	env := newServiceEnv(t, nil)
	rows := pipeline(t, env, "film")

	require.Len(t, rows, 2*domain.NumOvertones)
	assert.FileExists(t, env.paths.GetStatsPath("clean", false))
	assert.FileExists(t, env.paths.GetStatsPath("clean", true))

	freq, err := env.svc.Statistics(context.Background(), domain.KindFrequency, "")
	require.NoError(t, err)
	require.Len(t, freq, domain.NumOvertones)

	analyzed := 0
	for _, r := range freq {
		if r.Analyzed {
			analyzed++
			assert.Equal(t, "film", r.RangeLabel)
			assert.Equal(t, "run.csv", r.DataSource)
			assert.Less(t, r.Mean, 0.0)
		}
	}
	assert.Equal(t, 2, analyzed)

	env.pub.AssertCalled(t, "Publish", mock.Anything, events.MessageTypeBaseline, mock.Anything)
	env.pub.AssertCalled(t, "Publish", mock.Anything, events.MessageTypeStatistics, mock.Anything)
}

func TestAnalysisService_RangeStatisticsIgnoreFrequencyNormalization(t *testing.T) {
	// 3rd overtone after un-normalization: -30 over the baseline, -60..-72 in rows 3..7
	for _, normalize := range []bool{false, true} {
		t.Run(fmt.Sprintf("normalize=%t", normalize), func(t *testing.T) {
			env := newServiceEnv(t, func(c *config.AnalysisConfig) { c.NormalizeFrequency = normalize })
			ctx := context.Background()

			_, err := env.svc.Normalize(ctx, env.writeRaw(t, "run.csv", qsenseRun), "")
			require.NoError(t, err)
			table, err := env.svc.LoadTable(ctx, "Formatted-run.csv", "")
			require.NoError(t, err)
			w, err := env.svc.LocateBaseline(ctx, table, "0", "2", true)
			require.NoError(t, err)
			corrected, err := env.svc.CorrectBaseline(ctx, table, w)
			require.NoError(t, err)

			sel, err := domain.SelectOvertones(1, 3)
			require.NoError(t, err)
			_, err = env.svc.ComputeRangeStats(ctx, corrected.Shifted, domain.RangeSelection{
				RangeLabel: "film", DataSource: "run.csv", IMin: 3, IMax: 8,
			}, sel, "")
			require.NoError(t, err)

			freq, err := env.svc.Statistics(ctx, domain.KindFrequency, "")
			require.NoError(t, err)
			var third *domain.RangeStatistics
			for i := range freq {
				if freq[i].Overtone == domain.Third {
					third = &freq[i]
				}
			}
			require.NotNil(t, third)
			assert.InDelta(t, -36, third.Mean, 1e-9)

			wantDisplay := -36.0
			if normalize {
				wantDisplay = -12
			}
			assert.InDelta(t, wantDisplay, corrected.Table.Freq[domain.Third][5], 1e-9)
		})
	}
}

func TestAnalysisService_RangeStatisticsMissingData(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Normalize(ctx, env.writeRaw(t, "run.csv", qsenseRun), "")
	require.NoError(t, err)
	table, err := env.svc.LoadTable(ctx, "Formatted-run.csv", "")
	require.NoError(t, err)

	sel, err := domain.SelectOvertones(1, 5)
	require.NoError(t, err)
	rows, err := env.svc.ComputeRangeStats(ctx, table, domain.RangeSelection{
		RangeLabel: "film", DataSource: "run.csv", IMin: 0, IMax: table.Len(),
	}, sel, "raw")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMissingData))

	require.NotEmpty(t, rows, "rows are returned next to the missing data error")
	assert.ElementsMatch(t, []string{"5th_freq", "5th_dis"}, MissingColumns(rows, sel))
	assert.FileExists(t, env.paths.GetStatsPath("raw", false), "rows are saved regardless")
}

func TestAnalysisService_RangeStatisticsInvalidRange(t *testing.T) {
	env := newServiceEnv(t, nil)
	table := domain.NewCanonicalTable(4)

	_, err := env.svc.ComputeRangeStats(context.Background(), table, domain.RangeSelection{
		RangeLabel: "film", IMin: 3, IMax: 2,
	}, domain.OvertoneSelection{}, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.NoFileExists(t, env.paths.GetStatsPath("clean", false))
}

func TestAnalysisService_ReuploadRefreshesTable(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	upload := func(content string) {
		t.Helper()
		path, err := env.svc.SaveUpload(ctx, "run.csv", strings.NewReader(content))
		require.NoError(t, err)
		_, err = env.svc.Normalize(ctx, path, "")
		require.NoError(t, err)
	}

	upload(qsenseRun)
	table, err := env.svc.LoadTable(ctx, "Formatted-run.csv", "")
	require.NoError(t, err)
	assert.Equal(t, -1.0, table.Freq[domain.Fundamental][0])

	upload(strings.Replace(qsenseRun, "0,-1,1,-10,2", "0,-100,1,-10,2", 1))
	table, err = env.svc.LoadTable(ctx, "Formatted-run.csv", "")
	require.NoError(t, err)
	assert.Equal(t, -100.0, table.Freq[domain.Fundamental][0], "the rewritten formatted table is read again")
}

func TestAnalysisService_LoadTableUsesNormalizeDevice(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()
	aws := `Time_(s),Delta_F/n_n=3_(Hz),Delta_D_n=3_()
0,-10,2
1,-20,3
`
	path := env.writeRaw(t, "aws.csv", aws)

	_, err := env.svc.Normalize(ctx, path, domain.DeviceAWSensors)
	require.NoError(t, err)

	table, err := env.svc.LoadTable(ctx, "aws.csv", "")
	require.NoError(t, err, "the device of the normalize call is reused")
	assert.Equal(t, []float64{-30, -60}, table.Freq[domain.Third])

	other := env.writeRaw(t, "other.csv", aws)
	_, err = env.svc.LoadTable(ctx, filepath.Base(other), "")
	assert.Error(t, err, "an unseen file falls back to the configured qsense layout")

	table, err = env.svc.LoadTable(ctx, "other.csv", domain.DeviceAWSensors)
	require.NoError(t, err)
	assert.Equal(t, []float64{-30, -60}, table.Freq[domain.Third])
}

func TestAnalysisService_LoadTableNotFound(t *testing.T) {
	env := newServiceEnv(t, nil)

	_, err := env.svc.LoadTable(context.Background(), "Formatted-absent.csv", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestAnalysisService_LocateBaselineNeedsAbsoluteTime(t *testing.T) {
	env := newServiceEnv(t, nil)
	table := domain.NewCanonicalTable(3)

	_, err := env.svc.LocateBaseline(context.Background(), table, "10:00:00", "10:00:02", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestAnalysisService_FitModel(t *testing.T) {
	env := newServiceEnv(t, nil)
	pipeline(t, env, "film")

	res, err := env.svc.FitModel(context.Background(), domain.ModelSauerbrey, "film", FitOptions{Overtones: []int{1, 3}})
	require.NoError(t, err)

	assert.Equal(t, domain.ModelSauerbrey, res.Result.ModelName)
	assert.Equal(t, "film", res.Result.RangeLabel)
	assert.InDelta(t, 1, res.Result.RSquared, 1e-9, "two overtones are fitted exactly")
	assert.Len(t, res.Result.Points, 2)
	assert.Equal(t, env.paths.GetModelOutputPath("sauerbrey_output.csv"), res.Output)
	assert.FileExists(t, res.Output)

	env.pub.AssertCalled(t, "Publish", mock.Anything, events.MessageTypeModelFit, mock.Anything)
}

func TestAnalysisService_FitModelErrors(t *testing.T) {
	env := newServiceEnv(t, nil)

	tests := []struct {
		name     string
		model    domain.ModelName
		label    string
		opts     FitOptions
		wantType apperrors.ErrorType
	}{
		{"no overtones", domain.ModelSauerbrey, "film", FitOptions{}, apperrors.ErrTypeValidation},
		{"even overtone", domain.ModelSauerbrey, "film", FitOptions{Overtones: []int{2}}, apperrors.ErrTypeValidation},
		{"no label", domain.ModelSauerbrey, "", FitOptions{Overtones: []int{1, 3}}, apperrors.ErrTypeValidation},
		{"no statistics saved", domain.ModelSauerbrey, "film", FitOptions{Overtones: []int{1, 3}}, apperrors.ErrTypeNotFound},
		{"bad initial guess", domain.ModelCrystalThickness, "", FitOptions{Overtones: []int{1, 3}, InitialGuess: []float64{1}}, apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.FitModel(context.Background(), tt.model, tt.label, tt.opts)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestAnalysisService_FitModelSelectionMismatch(t *testing.T) {
	env := newServiceEnv(t, nil)
	pipeline(t, env, "film")

	_, err := env.svc.FitModel(context.Background(), domain.ModelSauerbrey, "film", FitOptions{Overtones: []int{1, 3, 5}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeShapeMismatch))
	assert.True(t, env.handler.ContainsMessage("Model fit failed"))
}

func TestAnalysisService_MeasuredCalibrationFallsBack(t *testing.T) {
	env := newServiceEnv(t, func(c *config.AnalysisConfig) {
		c.CalibrationMode = string(domain.CalibrationMeasured)
	})
	pipeline(t, env, "film")

	_, err := env.svc.FitModel(context.Background(), domain.ModelSauerbrey, "film", FitOptions{Overtones: []int{1, 3}})
	require.NoError(t, err)
	testutil.AssertLogContains(t, env.handler, slog.LevelWarn, "Measured calibration unavailable, using theoretical frequencies")
}

func TestAnalysisService_DeriveOffsets(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Normalize(ctx, env.writeRaw(t, "run.csv", qsenseRun), "")
	require.NoError(t, err)
	table, err := env.svc.LoadTable(ctx, "Formatted-run.csv", "")
	require.NoError(t, err)
	w, err := env.svc.LocateBaseline(ctx, table, "0", "2", true)
	require.NoError(t, err)

	set, err := env.svc.DeriveOffsets(ctx, table, w)
	require.NoError(t, err)
	assert.True(t, set.Freq[domain.Fundamental].Set)
	assert.True(t, set.Freq[domain.Third].Set)
	assert.False(t, set.Freq[domain.Fifth].Set)
	assert.FileExists(t, env.svc.OffsetFile())

	loaded, err := env.svc.offsets.LoadOffsets()
	require.NoError(t, err)
	assert.Equal(t, set.Freq[domain.Third], loaded.Freq[domain.Third])
}

func TestAnalysisService_MeasuredFundamental(t *testing.T) {
	tests := []struct {
		name         string
		theoreticalC bool
		mode         domain.CalibrationMode
		offset       *domain.Offset
		want         float64
	}{
		{"theoretical constants", true, domain.CalibrationMeasured, &domain.Offset{Value: 4.99e6, Set: true}, 0},
		{"configured fundamental", false, domain.CalibrationTheoretical, nil, 4998264.628859391},
		{"offset file wins", false, domain.CalibrationMeasured, &domain.Offset{Value: 4.99e6, Set: true}, 4.99e6},
		{"no offset file", false, domain.CalibrationMeasured, nil, 4998264.628859391},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newServiceEnv(t, func(c *config.AnalysisConfig) {
				c.TheoreticalC = tt.theoreticalC
				c.CalibrationMode = string(tt.mode)
				c.FundamentalFrequency = 4998264.628859391
			})
			if tt.offset != nil {
				var set domain.CalibrationOffsetSet
				set.Freq[domain.Fundamental] = *tt.offset
				require.NoError(t, env.svc.offsets.SaveOffsets(set))
			}
			assert.Equal(t, tt.want, env.svc.measuredFundamental(context.Background()))
		})
	}
}

func TestAnalysisService_TheoreticalTableOverride(t *testing.T) {
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	cfg := config.Default().Analysis
	cfg.TheoreticalTable = filepath.Join(paths.OffsetDir, "missing.csv")

	_, err := NewAnalysisService(cfg, paths, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
