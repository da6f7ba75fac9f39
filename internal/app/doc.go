// Package app wires the QCM-D analysis server together: configuration, logging,
// OpenTelemetry, the analysis, file and health services, the WebSocket hub and
// the chi router.
//
// # Initialization Flow
//
//	1. Load configuration from QCM_* environment variables and an optional YAML file
//	2. Initialize the slog logger and the OpenTelemetry providers
//	3. Resolve and create the data directories
//	4. Build the services; the analysis service publishes events to the hub
//	5. Mount the handlers behind the middleware chain
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM and then shuts the server, the hub and the
// telemetry providers down. Initialization errors are returned, never fatal.
package app
