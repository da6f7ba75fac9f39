// Package config provides centralized configuration management for QCM Pulse.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (config.yaml, or QCM_CONFIG_FILE)
//	3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern QCM_<SECTION>_<FIELD>:
//
//	QCM_SERVER_PORT=8080
//	QCM_PATHS_DATA_DIR=/srv/qcm
//	QCM_ANALYSIS_DEVICE=qsense
//	QCM_ANALYSIS_CALIBRATION_MODE=measured
//	QCM_ANALYSIS_TIME_SCALE=min
//
// The analysis section is loaded once per run and passed explicitly to the pipeline;
// nothing reads it again mid-run.
//
// # Path Management
//
// Paths is the single source of truth for file locations:
//
//	paths, err := cfg.ResolvePaths()
//	raw := paths.GetRawPath("experiment.csv")
//	stats := paths.GetStatsPath("clean", false)
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
