// Package services implements the business logic layer of the QCM-D analysis service.
// It sits between the HTTP handlers and the pipeline packages (dataprocessing, analysis,
// calibration, modeling, exporter) so that handlers stay thin and the pipeline packages
// stay free of logging, tracing and persistence policy.
//
// # Services
//
//	- AnalysisService: normalizes raw exports, locates and applies baselines, persists
//	  range statistics and runs the regression models on them
//	- FileService: lists and serves the files below the data root
//	- HealthService: liveness, readiness and runtime statistics
//
// # Error Handling
//
// Services return *errors.AppError values from the pipeline unchanged; the HTTP layer maps
// their type to a status code. A MISSING_DATA error from ComputeRangeStats comes together
// with the rows, which are saved regardless.
//
// # Events
//
// Every finished operation is published through an EventPublisher, normally the WebSocket
// hub. Failures are published as error events.
package services
