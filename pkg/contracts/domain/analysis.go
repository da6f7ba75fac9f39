package domain

import (
	"fmt"
	"strings"
)

// DeviceKind identifies the instrument family that produced a raw export
type DeviceKind string

const (
	DeviceNext      DeviceKind = "next"      // QCM-d "Next", absolute values with relative and absolute time
	DeviceIFormat   DeviceKind = "qcm-i"     // QCM-i, absolute values
	DeviceQSense    DeviceKind = "qsense"    // QSense, deltas with frequency pre-divided by n
	DeviceAWSensors DeviceKind = "awsensors" // AWSensors, deltas with frequency pre-divided by n
)

// DeviceKinds lists every supported device
var DeviceKinds = []DeviceKind{DeviceNext, DeviceIFormat, DeviceQSense, DeviceAWSensors}

// ParseDeviceKind accepts the device names used by the instruments' own software
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "qcm-d", "qcmd":
		return DeviceNext, nil
	case "qcm-i", "qcmi", "i":
		return DeviceIFormat, nil
	case "qsense":
		return DeviceQSense, nil
	case "awsensors", "aws":
		return DeviceAWSensors, nil
	}
	return "", fmt.Errorf("unknown device %q", s)
}

// ReportsDeltas reports whether the device exports shifts that need offsets added back
func (d DeviceKind) ReportsDeltas() bool {
	return d == DeviceQSense || d == DeviceAWSensors
}

// CalibrationMode selects where per-overtone reference frequencies come from
type CalibrationMode string

const (
	CalibrationTheoretical CalibrationMode = "theoretical"
	CalibrationMeasured    CalibrationMode = "measured"
)

// Offset is an optional per-overtone calibration value. Set is false for overtones that
// were not selected, which is distinct from a measured zero.
type Offset struct {
	Value float64 `json:"value"`
	Set   bool    `json:"set"`
}

// CalibrationOffsetSet holds frequency and dissipation offsets per overtone
type CalibrationOffsetSet struct {
	Freq [NumOvertones]Offset `json:"freq"`
	Dis  [NumOvertones]Offset `json:"dis"`
}

// Get returns the offset for an overtone and kind
func (c CalibrationOffsetSet) Get(o Overtone, kind MeasurementKind) Offset {
	if kind == KindDissipation {
		return c.Dis[o]
	}
	return c.Freq[o]
}

// Empty reports whether no offset is set
func (c CalibrationOffsetSet) Empty() bool {
	for _, o := range AllOvertones {
		if c.Freq[o].Set || c.Dis[o].Set {
			return false
		}
	}
	return true
}

// Restrict drops offsets of overtones outside the selection
func (c CalibrationOffsetSet) Restrict(sel OvertoneSelection) CalibrationOffsetSet {
	for _, o := range AllOvertones {
		if !sel[o] {
			c.Freq[o] = Offset{}
			c.Dis[o] = Offset{}
		}
	}
	return c
}

// BaselineWindow locates the baseline: rows before T0Index are dropped, and the baseline is
// rows [0, TfIndex) of what remains.
type BaselineWindow struct {
	T0Index int `json:"t0_index"`
	TfIndex int `json:"tf_index"`
}

// TimeScale selects the unit of the corrected time axis
type TimeScale string

const (
	TimeScaleSeconds TimeScale = "s"
	TimeScaleMinutes TimeScale = "min"
	TimeScaleHours   TimeScale = "hr"
)

// Divisor converts seconds into the scale's unit
func (s TimeScale) Divisor() float64 {
	switch s {
	case TimeScaleMinutes:
		return 60
	case TimeScaleHours:
		return 3600
	}
	return 1
}

// RangeSelection is a user chosen index range of a corrected table
type RangeSelection struct {
	RangeLabel string `json:"range_label" validate:"required"`
	DataSource string `json:"data_source" validate:"required"`
	IMin       int    `json:"i_min" validate:"min=0"`
	IMax       int    `json:"i_max" validate:"gtfield=IMin"`
}

// RangeStatistics summarizes one overtone series over a selected range
type RangeStatistics struct {
	Overtone   Overtone        `json:"-"`
	Kind       MeasurementKind `json:"kind"`
	Column     string          `json:"overtone"`
	Mean       float64         `json:"mean"`
	StdDev     float64         `json:"std_dev"`
	Median     float64         `json:"median"`
	XLower     float64         `json:"x_lower"`
	XUpper     float64         `json:"x_upper"`
	RangeLabel string          `json:"range_label"`
	DataSource string          `json:"data_source"`
	Analyzed   bool            `json:"analyzed"`
}

// NotAnalyzed builds the zero sentinel row for an overtone that was not selected
func NotAnalyzed(o Overtone, kind MeasurementKind, label, source string) RangeStatistics {
	return RangeStatistics{
		Overtone:   o,
		Kind:       kind,
		Column:     o.Column(kind),
		RangeLabel: label,
		DataSource: source,
	}
}

// Key identifies the row for last-write-wins persistence
func (r RangeStatistics) Key() string {
	return r.RangeLabel + "\x00" + r.DataSource + "\x00" + r.Column
}

// ModelName identifies a physical model
type ModelName string

const (
	ModelSauerbrey        ModelName = "sauerbrey"
	ModelThinFilmLiquid   ModelName = "thin_film_liquid"
	ModelThinFilmAir      ModelName = "thin_film_air"
	ModelCrystalThickness ModelName = "crystal_thickness"
	ModelGordonKanazawa   ModelName = "gordon_kanazawa"
	ModelVoinova          ModelName = "voinova"
	ModelAverageShifts    ModelName = "averages"
)

// ModelNames lists every supported model
var ModelNames = []ModelName{
	ModelSauerbrey, ModelThinFilmLiquid, ModelThinFilmAir, ModelCrystalThickness,
	ModelGordonKanazawa, ModelVoinova, ModelAverageShifts,
}

// ParseModelName resolves a model name as used in URLs and request bodies
func ParseModelName(s string) (ModelName, error) {
	name := ModelName(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range ModelNames {
		if m == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model %q", s)
}

// Parameter is a named model output
type Parameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Error float64 `json:"error,omitempty"`
	Unit  string  `json:"unit,omitempty"`
}

// FitPoint is one data point of a model together with its fitted value
type FitPoint struct {
	Overtone int     `json:"overtone"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	XErr     float64 `json:"x_err,omitempty"`
	YErr     float64 `json:"y_err,omitempty"`
	Fit      float64 `json:"fit"`
	// Derived holds per-point quantities specific to a model, e.g. the Sauerbrey mass
	Derived map[string]float64 `json:"derived,omitempty"`
}

// ModelFitResult is what a model reports for one range label
type ModelFitResult struct {
	ModelName  ModelName   `json:"model_name"`
	RangeLabel string      `json:"range_label"`
	DataSource string      `json:"data_source,omitempty"`
	Parameters []Parameter `json:"parameters"`
	RSquared   float64     `json:"r_squared"`
	Points     []FitPoint  `json:"points,omitempty"`
}

// Param returns the parameter with the given name
func (r *ModelFitResult) Param(name string) (Parameter, bool) {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
