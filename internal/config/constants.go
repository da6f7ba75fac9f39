package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "QCM Pulse"
	AppVersion = "1.0.0"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints (internal)
	APIBasePath        = "/api/v1"
	NormalizeEndpoint  = "/api/v1/normalize"
	BaselineEndpoint   = "/api/v1/baseline"
	StatisticsEndpoint = "/api/v1/statistics"
	ModelsEndpoint     = "/api/v1/models"
	HealthEndpoint     = "/api/v1/health"
	FilesEndpoint      = "/api/v1/files"
	MetricsEndpoint    = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)

// AllowedUploadExtensions lists the raw export types accepted by the upload endpoint
var AllowedUploadExtensions = []string{".csv", ".xls", ".xlsx", ".xlsm", ".txt", ".qsd"}
