package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"

	"qcmpulse/internal/config"
	"qcmpulse/internal/errors"
	"qcmpulse/internal/infrastructure"
	customMiddleware "qcmpulse/internal/middleware"
	"qcmpulse/internal/services"
	handlers "qcmpulse/internal/transport/http"
	ws "qcmpulse/internal/websocket"
	"qcmpulse/pkg/contracts"
)

// AppName is reported at startup and by the health endpoints
const AppName = "QCM Pulse"

// systemMetricsInterval is how often runtime metrics are recorded
const systemMetricsInterval = 15 * time.Second

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	Analysis      *services.AnalysisService
	Files         *services.FileService
	Health        *services.HealthService
	ErrorHandler  *errors.ErrorHandler
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	collector   *infrastructure.SystemMetricsCollector
	stopCollect context.CancelFunc
}

// NewApplication loads the configuration from the environment and an optional config
// file, then builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger, infrastructure.OTelConfigFrom(cfg.Telemetry))
}

// New wires every component for cfg. A nil otelCfg disables tracing and metrics export.
func New(cfg *config.Config, logger *slog.Logger, otelCfg *infrastructure.OTelConfig) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	if otelCfg == nil {
		otelCfg = &infrastructure.OTelConfig{
			ServiceName:    infrastructure.ServiceName,
			ServiceVersion: infrastructure.ServiceVersion,
			Environment:    "test",
		}
	}
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	// Disabled signals fall back to the global no-op providers
	if providers.Tracer == nil {
		providers.Tracer = infrastructure.Tracer()
	}
	if providers.Meter == nil {
		providers.Meter = otel.Meter(infrastructure.MeterName)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	collector, err := infrastructure.NewSystemMetricsCollector(providers.Meter, systemMetricsInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  errors.NewErrorHandler(logger, cfg.Logging.Development),
		collector:     collector,
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to setup router: %w", err)
	}
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	a.WebSocketHub = ws.NewHub(a.Logger)

	analysis, err := services.NewAnalysisService(a.Config.Analysis, a.Paths, a.Logger)
	if err != nil {
		return err
	}
	analysis.SetMetrics(a.Metrics)
	analysis.SetPublisher(a.WebSocketHub)
	a.Analysis = analysis

	a.Files = services.NewFileService(a.Paths, a.Logger)
	a.Health = services.NewHealthService(a.Paths, a.WebSocketHub, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// These don't wrap the ResponseWriter, so the WebSocket upgrade still works behind them
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		Get("/ws", ws.UpgradeHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	r.Mount("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.WebSocketHub).Routes())

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, a.Config.Server.MaxUploadBytes).ValidateRequest)

		a.setupAPIRoutes(r)
	})

	a.Router = r
	return nil
}

// setupAPIRoutes configures the /api/v1 endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Mount("/health", handlers.NewHealthHandler(a.Health, a.Logger, a.ErrorHandler).Routes())
		r.Mount("/files", handlers.NewFileHandler(a.Files, a.Logger, a.ErrorHandler).Routes())
		r.Post("/client-log", handlers.NewClientLogHandler(a.Logger, a.ErrorHandler).Handle)
		r.Mount("/", handlers.NewAnalysisHandler(a.Analysis, a.Config.Server.MaxUploadBytes, a.Logger, a.ErrorHandler).Routes())
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. A listener failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("data_dir", a.Paths.RootDir),
		slog.String("device", a.Config.Analysis.Device),
		slog.String("calibration_mode", a.Config.Analysis.CalibrationMode))

	a.WebSocketHub.Start()

	collectCtx, stop := context.WithCancel(context.Background())
	a.stopCollect = stop
	go a.collector.Start(collectCtx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if status := a.Health.ReadinessCheck(ctx); status.Status != "ready" {
		a.Logger.WarnContext(ctx, "Startup readiness check reported problems",
			slog.Any("services", status.Services))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.stopCollect != nil {
		a.stopCollect()
	}
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
