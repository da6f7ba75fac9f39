// Package api contains the HTTP contract of the QCM-D analysis service.
// Version v1 represents the current stable API version.
package api

import (
	"qcmpulse/pkg/contracts/domain"
)

// Data formats namespace the persisted statistics files
const (
	FormatClean = "clean"
	FormatRaw   = "raw"
)

// BaselineSpec names the baseline window of a formatted table. T0 and Tf are relative
// seconds unless Absolute is set, in which case they are clock times matched against abs_time.
// Device is only read when the file is a raw export.
type BaselineSpec struct {
	T0       string `json:"t0" validate:"required"`
	Tf       string `json:"tf" validate:"required"`
	Absolute bool   `json:"absolute,omitempty"`
	Device   string `json:"device,omitempty"`
}

// BaselineRequest locates a baseline window in a formatted table. With DeriveOffsets the
// per-overtone baseline means are written to the calibration offset file.
type BaselineRequest struct {
	File string `json:"file" validate:"required,filename"`
	BaselineSpec
	DeriveOffsets bool `json:"derive_offsets,omitempty"`
}

// StatisticsRequest computes range statistics over the baseline corrected table of File.
// IMin and IMax index the corrected table; the range is half open.
type StatisticsRequest struct {
	File string `json:"file" validate:"required,filename"`
	BaselineSpec
	RangeLabel string `json:"range_label" validate:"required"`
	IMin       int    `json:"i_min" validate:"min=0"`
	IMax       int    `json:"i_max" validate:"gtfield=IMin"`
	Overtones  []int  `json:"overtones" validate:"required,min=1,dive,overtone"`
	Format     string `json:"format,omitempty" validate:"omitempty,oneof=clean raw"`
}

// Selection returns the range selection of the request
func (r StatisticsRequest) Selection() domain.RangeSelection {
	return domain.RangeSelection{
		RangeLabel: r.RangeLabel,
		DataSource: r.File,
		IMin:       r.IMin,
		IMax:       r.IMax,
	}
}

// VoinovaRequest overrides the starting point of the viscoelastic fit
type VoinovaRequest struct {
	InitialGuess []float64 `json:"initial_guess" validate:"len=3,dive,gt=0"`
}

// ModelFitRequest runs one model. RangeLabel is required by every model that works on
// range statistics; crystal thickness only needs the overtones.
type ModelFitRequest struct {
	RangeLabel string          `json:"range_label,omitempty"`
	Overtones  []int           `json:"overtones" validate:"required,min=1,dive,overtone"`
	Format     string          `json:"format,omitempty" validate:"omitempty,oneof=clean raw"`
	Voinova    *VoinovaRequest `json:"voinova,omitempty"`
}
