package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
	"qcmpulse/internal/infrastructure"
	ws "qcmpulse/internal/websocket"
	"qcmpulse/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	paths        *config.Paths
	webSocketHub *ws.Hub
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats summarizes the data directories and live connections
type SystemStats struct {
	UptimeSeconds    float64                     `json:"uptime_seconds"`
	RawFiles         int                         `json:"raw_files"`
	FormattedFiles   int                         `json:"formatted_files"`
	TotalSizeBytes   int64                       `json:"total_size_bytes"`
	WebSocketClients int                         `json:"websocket_clients"`
	WebSocket        *ws.Snapshot                `json:"websocket,omitempty"`
	Runtime          *infrastructure.SystemStats `json:"runtime"`
	OS               string                      `json:"os"`
	Arch             string                      `json:"arch"`
}

// NewHealthService creates a health service. hub may be nil when no WebSocket endpoint is served.
func NewHealthService(paths *config.Paths, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	info := contracts.GetVersionInfo()
	logger.Info("HealthService initialized",
		slog.String("version", info.Version),
		slog.String("build_time", info.BuildTime),
		slog.String("data_dir", paths.RootDir))

	return &HealthService{
		paths:        paths,
		webSocketHub: hub,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.String("uptime", time.Since(hs.startTime).String()))
	return status
}

// ReadinessCheck reports ready once every data directory exists and is writable
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]interface{}{
			"websocket":   hs.checkWebSocketHealth(),
			"raw_data":    checkDirectory("raw data", hs.paths.RawDataDir),
			"statistics":  checkDirectory("selected ranges", hs.paths.SelectedRangesDir),
			"calibration": checkDirectory("offset", hs.paths.OffsetDir),
			"archive":     checkDirectory("archive", hs.paths.ArchiveDir),
		},
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	result := map[string]interface{}{
		"version":      info.Version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if info.BuildTime != "" {
		result["build_time"] = info.BuildTime
	}
	if info.GitCommit != "" {
		result["git_commit"] = info.GitCommit
	}
	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Runtime:       infrastructure.Snapshot(hs.startTime),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	err := filepath.WalkDir(hs.paths.RawDataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if strings.HasPrefix(d.Name(), dataprocessing.FormattedPrefix) {
			stats.FormattedFiles++
		} else {
			stats.RawFiles++
		}
		stats.TotalSizeBytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return stats, fmt.Errorf("failed to scan raw data directory: %w", err)
	}

	if hs.webSocketHub != nil {
		stats.WebSocketClients = hs.webSocketHub.ClientCount()
		snap := hs.webSocketHub.Metrics().GetSnapshot()
		stats.WebSocket = &snap
	}
	return stats, nil
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.webSocketHub == nil {
		return ServiceHealth{Status: "ready", Message: "WebSocket service disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.webSocketHub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func checkDirectory(name, dir string) ServiceHealth {
	info, err := os.Stat(dir)
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("%s directory not found: %s", name, dir),
		}
	}
	if !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("%s path is not a directory: %s", name, dir),
		}
	}

	probe, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("cannot write to %s directory: %v", name, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ServiceHealth{Status: "ready"}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, err := hs.SystemStats(ctx)
	if err != nil {
		hs.logger.WarnContext(ctx, "Failed to collect system stats", slog.String("error", err.Error()))
	}

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}
