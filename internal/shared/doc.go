// Package shared holds helpers used by more than one package of the module.
//
// The testutil subpackage provides a capturing slog handler so tests can assert on
// structured log output (warnings for skipped overtones, theoretical fallbacks, request
// logs) without parsing JSON:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc, err := services.NewAnalysisService(cfg.Analysis, paths, logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "falling back to theoretical")
package shared
