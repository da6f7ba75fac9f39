package api

import (
	"qcmpulse/pkg/contracts/domain"
)

// NormalizeResponse summarizes a normalized raw export
type NormalizeResponse struct {
	Source              string                 `json:"source"`
	Output              string                 `json:"output"`
	Archive             string                 `json:"archive,omitempty"`
	Device              domain.DeviceKind      `json:"device"`
	CalibrationMode     domain.CalibrationMode `json:"calibration_mode"`
	Rows                int                    `json:"rows"`
	Overtones           []int                  `json:"overtones"`
	HasAbsoluteTime     bool                   `json:"has_absolute_time"`
	HasTemperature      bool                   `json:"has_temperature"`
	PreviouslyFormatted bool                   `json:"previously_formatted"`
	PartialMissingData  bool                   `json:"partial_missing_data"`
}

// BaselineResponse is a located baseline window
type BaselineResponse struct {
	File           string                `json:"file"`
	Window         domain.BaselineWindow `json:"window"`
	OffsetsDerived bool                  `json:"offsets_derived"`
	OffsetFile     string                `json:"offset_file,omitempty"`
}

// StatisticsResponse holds the rows persisted for one range selection. Missing lists the
// selected overtone columns that had no valid samples.
type StatisticsResponse struct {
	RangeLabel string                   `json:"range_label"`
	DataSource string                   `json:"data_source"`
	Format     string                   `json:"format"`
	Rows       []domain.RangeStatistics `json:"rows"`
	Missing    []string                 `json:"missing,omitempty"`
}

// StatisticsListResponse holds every persisted row of one kind and format
type StatisticsListResponse struct {
	Kind   domain.MeasurementKind   `json:"kind"`
	Format string                   `json:"format"`
	Rows   []domain.RangeStatistics `json:"rows"`
}

// ModelFitResponse is a model result and the output file it was written to
type ModelFitResponse struct {
	Result *domain.ModelFitResult `json:"result"`
	Output string                 `json:"output"`
}
