package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the application
	Version = "1.0.0"

	// DataFormatVersion is the version of the canonical table and statistics file layouts
	DataFormatVersion = "v1"

	// APIVersion is the version of the HTTP API and WebSocket events
	APIVersion = "v1"
)

var (
	// BuildTime and GitCommit are stamped with -ldflags "-X qcmpulse/pkg/contracts.BuildTime=..."
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

// String renders the version line printed by the -version flag of the binaries
func (v VersionInfo) String() string {
	return fmt.Sprintf("v%s (data format %s, api %s, commit %s, built %s, %s %s/%s)",
		v.Version, v.DataFormat, v.APIVersion, v.GitCommit, v.BuildTime, v.GoVersion, v.OS, v.Architecture)
}
