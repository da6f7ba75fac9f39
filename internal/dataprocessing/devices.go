package dataprocessing

import (
	"fmt"
	"sort"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// DissipationScale converts dissipation exported by delta instruments into absolute units
const DissipationScale = 1e-6

// deviceFormat describes one vendor layout: how its columns map onto the canonical schema
// and whether it reports shifts that need the reference values added back.
type deviceFormat struct {
	kind    domain.DeviceKind
	renames map[string]string
	deltas  bool
}

var deviceFormats = map[domain.DeviceKind]deviceFormat{
	domain.DeviceNext:      {kind: domain.DeviceNext, renames: nextRenames()},
	domain.DeviceIFormat:   {kind: domain.DeviceIFormat, renames: iFormatRenames()},
	domain.DeviceQSense:    {kind: domain.DeviceQSense, renames: qsenseRenames(), deltas: true},
	domain.DeviceAWSensors: {kind: domain.DeviceAWSensors, renames: awSensorsRenames(), deltas: true},
}

func nextRenames() map[string]string {
	m := map[string]string{
		"Time":          domain.ColumnAbsTime,
		"Relative_time": domain.ColumnTime,
		"Temperature":   domain.ColumnTemp,
	}
	for _, o := range domain.AllOvertones {
		m[fmt.Sprintf("Frequency_%d", o.Index())] = o.FreqColumn()
		m[fmt.Sprintf("Dissipation_%d", o.Index())] = o.DisColumn()
	}
	return m
}

func iFormatRenames() map[string]string {
	m := map[string]string{
		"Channel A QCM Time [sec]":              domain.ColumnTime,
		"Channel A Fundamental Frequency [Hz]":  domain.Fundamental.FreqColumn(),
		"Channel A Fundamental Dissipation [ ]": domain.Fundamental.DisColumn(),
		"Channel A Temp [Celsius]":              domain.ColumnTemp,
	}
	for _, o := range domain.AllOvertones[1:] {
		m[fmt.Sprintf("Channel A %d. Overtone [Hz]", o.Number())] = o.FreqColumn()
		m[fmt.Sprintf("Channel A %d. Dissipation  [ ]", o.Number())] = o.DisColumn()
	}
	return m
}

func qsenseRenames() map[string]string {
	m := map[string]string{
		"Time_1":           domain.ColumnTime,
		"Meas. Temp. Time": domain.ColumnTempTime,
		"Tact":             domain.ColumnTemp,
	}
	for _, o := range domain.AllOvertones {
		m[fmt.Sprintf("F_1:%d", o.Number())] = o.FreqColumn()
		m[fmt.Sprintf("D_1:%d", o.Number())] = o.DisColumn()
	}
	return m
}

func awSensorsRenames() map[string]string {
	m := map[string]string{
		"Time_(s)": domain.ColumnTime,
	}
	// AWSensors exports stop at the 11th overtone
	for _, o := range domain.AllOvertones[1:6] {
		m[fmt.Sprintf("Delta_F/n_n=%d_(Hz)", o.Number())] = o.FreqColumn()
		m[fmt.Sprintf("Delta_D_n=%d_()", o.Number())] = o.DisColumn()
	}
	return m
}

// RenameMap returns the vendor column to canonical column map of a device
func RenameMap(kind domain.DeviceKind) (map[string]string, error) {
	f, ok := deviceFormats[kind]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown device %q", kind))
	}
	out := make(map[string]string, len(f.renames))
	for k, v := range f.renames {
		out[k] = v
	}
	return out, nil
}

// RenameColumns keeps only the device's expected columns that are present and renames them.
// Finding none of them means the wrong device was selected for the file.
func RenameColumns(raw *RawTable, kind domain.DeviceKind) (*RawTable, error) {
	f, ok := deviceFormats[kind]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown device %q", kind))
	}

	var headers []string
	var src []int
	for i, h := range raw.Headers {
		if canonical, ok := f.renames[h]; ok {
			headers = append(headers, canonical)
			src = append(src, i)
		}
	}
	if len(headers) == 0 {
		expected := make([]string, 0, len(f.renames))
		for k := range f.renames {
			expected = append(expected, k)
		}
		sort.Strings(expected)
		return nil, apperrors.NewMissingColumnsError(string(kind), expected)
	}

	rows := make([][]string, len(raw.Rows))
	for r, row := range raw.Rows {
		out := make([]string, len(src))
		for j, i := range src {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		rows[r] = out
	}
	return NewRawTable(headers, rows), nil
}

// IsCanonical reports whether a raw table already carries the canonical layout, i.e. it was
// written by this pipeline and must not be transformed again.
func IsCanonical(raw *RawTable) bool {
	return raw.Has(domain.ColumnTime) && raw.Has(domain.Fundamental.FreqColumn())
}

// ToCanonical converts a table with canonical headers into a CanonicalTable. Missing overtone
// columns, and columns with no value at all, stay nil ("not analyzed").
func ToCanonical(raw *RawTable) (*domain.CanonicalTable, error) {
	times, ok := raw.Floats(domain.ColumnTime)
	if !ok {
		return nil, apperrors.NewFormatError("missing Time column", -1).WithContext("missing_columns", []string{domain.ColumnTime})
	}

	t := &domain.CanonicalTable{Time: times}
	if abs, ok := raw.Strings(domain.ColumnAbsTime); ok {
		t.AbsTime = abs
	}
	for _, o := range domain.AllOvertones {
		t.Freq[o] = measured(raw, o.FreqColumn())
		t.Dis[o] = measured(raw, o.DisColumn())
	}
	t.Temp = measured(raw, domain.ColumnTemp)
	t.TempTime = measured(raw, domain.ColumnTempTime)

	if err := t.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeFormat, "invalid table", err)
	}
	return t, nil
}

func measured(raw *RawTable, column string) []float64 {
	values, ok := raw.Floats(column)
	if !ok {
		return nil
	}
	for r := range raw.Rows {
		if raw.Cell(r, column) != "" {
			return values
		}
	}
	return nil
}

// AdaptOptions controls the vendor specific transforms
type AdaptOptions struct {
	// Offsets are added to delta instruments' frequency and dissipation. Nil means the
	// theoretical mode, where nothing is injected.
	Offsets *domain.CalibrationOffsetSet
}

// Adapt maps a raw vendor export onto the canonical schema. Delta instruments get the
// dissipation unit fix, the un-normalization by overtone number and the calibration
// offsets, in that order. The input is never modified.
func Adapt(raw *RawTable, kind domain.DeviceKind, opts AdaptOptions) (*domain.CanonicalTable, error) {
	renamed, err := RenameColumns(raw, kind)
	if err != nil {
		return nil, err
	}
	t, err := ToCanonical(renamed)
	if err != nil {
		return nil, err
	}
	if !deviceFormats[kind].deltas {
		return t, nil
	}

	ScaleDissipation(t, DissipationScale)
	Unnormalize(t)
	if opts.Offsets != nil {
		AddOffsets(t, *opts.Offsets)
	}
	return t, nil
}

// ScaleDissipation multiplies every dissipation column by factor
func ScaleDissipation(t *domain.CanonicalTable, factor float64) {
	for _, o := range domain.AllOvertones {
		for i := range t.Dis[o] {
			t.Dis[o][i] *= factor
		}
	}
}

// Unnormalize multiplies each frequency column by its overtone number
func Unnormalize(t *domain.CanonicalTable) {
	for _, o := range domain.AllOvertones {
		n := float64(o.Number())
		for i := range t.Freq[o] {
			t.Freq[o][i] *= n
		}
	}
}

// AddOffsets adds each set offset to the matching frequency and dissipation column
func AddOffsets(t *domain.CanonicalTable, offsets domain.CalibrationOffsetSet) {
	for _, o := range domain.AllOvertones {
		if off := offsets.Freq[o]; off.Set {
			for i := range t.Freq[o] {
				t.Freq[o][i] += off.Value
			}
		}
		if off := offsets.Dis[o]; off.Set {
			for i := range t.Dis[o] {
				t.Dis[o][i] += off.Value
			}
		}
	}
}
