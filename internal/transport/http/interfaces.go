package http

import (
	"context"
	"io"
	"net/http"

	"qcmpulse/internal/analysis"
	"qcmpulse/internal/config"
	"qcmpulse/internal/services"
	"qcmpulse/pkg/contracts/domain"
)

// AnalysisService is the pipeline surface the analysis handler needs
type AnalysisService interface {
	Config() config.AnalysisConfig
	SaveUpload(ctx context.Context, name string, r io.Reader) (string, error)
	Normalize(ctx context.Context, path string, device domain.DeviceKind) (*services.NormalizeResult, error)
	Archive(ctx context.Context, name string, t *domain.CanonicalTable) (string, error)
	LoadTable(ctx context.Context, file string, device domain.DeviceKind) (*domain.CanonicalTable, error)
	LocateBaseline(ctx context.Context, t *domain.CanonicalTable, t0, tf string, relative bool) (domain.BaselineWindow, error)
	CorrectBaseline(ctx context.Context, t *domain.CanonicalTable, w domain.BaselineWindow) (*analysis.Corrected, error)
	DeriveOffsets(ctx context.Context, t *domain.CanonicalTable, w domain.BaselineWindow) (domain.CalibrationOffsetSet, error)
	OffsetFile() string
	ComputeRangeStats(ctx context.Context, t *domain.CanonicalTable, sel domain.RangeSelection, overtones domain.OvertoneSelection, format string) ([]domain.RangeStatistics, error)
	Statistics(ctx context.Context, kind domain.MeasurementKind, format string) ([]domain.RangeStatistics, error)
	FitModel(ctx context.Context, model domain.ModelName, label string, opts services.FitOptions) (*services.FitResult, error)
}

// FileService lists and serves data files
type FileService interface {
	ListFiles(ctx context.Context) (*services.FileListing, error)
	DownloadFile(w http.ResponseWriter, r *http.Request, group, name string) error
}

var (
	_ AnalysisService = (*services.AnalysisService)(nil)
	_ FileService     = (*services.FileService)(nil)
)
