package domain

import (
	"fmt"
	"math"
)

// Canonical column names outside the overtone slots
const (
	ColumnTime     = "Time"
	ColumnAbsTime  = "abs_time"
	ColumnTemp     = "Temp"
	ColumnTempTime = "Temp_Time"
)

// CanonicalColumns returns the canonical header for a table with the given optional columns
func CanonicalColumns(withAbsTime, withTemp, withTempTime bool) []string {
	cols := []string{ColumnTime}
	if withAbsTime {
		cols = append(cols, ColumnAbsTime)
	}
	for _, o := range AllOvertones {
		cols = append(cols, o.FreqColumn(), o.DisColumn())
	}
	if withTemp {
		cols = append(cols, ColumnTemp)
	}
	if withTempTime {
		cols = append(cols, ColumnTempTime)
	}
	return cols
}

// CanonicalTable is the device independent layout every vendor format is normalized into.
// A nil overtone column means the overtone was not measured ("not analyzed"); NaN marks a
// single missing sample inside a measured column.
type CanonicalTable struct {
	Time     []float64
	AbsTime  []string
	Freq     [NumOvertones][]float64
	Dis      [NumOvertones][]float64
	Temp     []float64
	TempTime []float64

	// DissipationPPM is set once dissipation is expressed in units of 1e-6, as in corrected tables
	DissipationPPM bool
}

// NewCanonicalTable allocates a table with a time axis of n rows
func NewCanonicalTable(n int) *CanonicalTable {
	return &CanonicalTable{Time: make([]float64, n)}
}

// Len returns the number of rows
func (t *CanonicalTable) Len() int {
	return len(t.Time)
}

// HasOvertone reports whether both series of overtone o were measured
func (t *CanonicalTable) HasOvertone(o Overtone) bool {
	return t.Freq[o] != nil && t.Dis[o] != nil
}

// Series returns the column for an overtone and kind and whether it was measured
func (t *CanonicalTable) Series(o Overtone, kind MeasurementKind) ([]float64, bool) {
	col := t.Freq[o]
	if kind == KindDissipation {
		col = t.Dis[o]
	}
	return col, col != nil
}

// SetSeries stores the column for an overtone and kind
func (t *CanonicalTable) SetSeries(o Overtone, kind MeasurementKind, values []float64) {
	if kind == KindDissipation {
		t.Dis[o] = values
		return
	}
	t.Freq[o] = values
}

// Measured returns the overtones with at least one measured series
func (t *CanonicalTable) Measured() OvertoneSelection {
	var sel OvertoneSelection
	for _, o := range AllOvertones {
		sel[o] = t.Freq[o] != nil || t.Dis[o] != nil
	}
	return sel
}

// Clone returns a deep copy so callers can never mutate a shared table
func (t *CanonicalTable) Clone() *CanonicalTable {
	if t == nil {
		return nil
	}
	out := &CanonicalTable{
		Time:           cloneFloats(t.Time),
		Temp:           cloneFloats(t.Temp),
		TempTime:       cloneFloats(t.TempTime),
		DissipationPPM: t.DissipationPPM,
	}
	if t.AbsTime != nil {
		out.AbsTime = append([]string(nil), t.AbsTime...)
	}
	for _, o := range AllOvertones {
		out.Freq[o] = cloneFloats(t.Freq[o])
		out.Dis[o] = cloneFloats(t.Dis[o])
	}
	return out
}

// Slice returns a deep copy of rows [from, to)
func (t *CanonicalTable) Slice(from, to int) *CanonicalTable {
	out := &CanonicalTable{
		Time:           cloneFloats(t.Time[from:to]),
		DissipationPPM: t.DissipationPPM,
	}
	if t.AbsTime != nil {
		out.AbsTime = append([]string(nil), t.AbsTime[from:to]...)
	}
	if t.Temp != nil {
		out.Temp = cloneFloats(t.Temp[from:to])
	}
	if t.TempTime != nil {
		out.TempTime = cloneFloats(t.TempTime[from:to])
	}
	for _, o := range AllOvertones {
		if t.Freq[o] != nil {
			out.Freq[o] = cloneFloats(t.Freq[o][from:to])
		}
		if t.Dis[o] != nil {
			out.Dis[o] = cloneFloats(t.Dis[o][from:to])
		}
	}
	return out
}

// Validate checks the rectangular shape and the time ordering of the table
func (t *CanonicalTable) Validate() error {
	n := len(t.Time)
	check := func(name string, l int) error {
		if l != n {
			return fmt.Errorf("column %s has %d rows, expected %d", name, l, n)
		}
		return nil
	}

	if t.AbsTime != nil {
		if err := check(ColumnAbsTime, len(t.AbsTime)); err != nil {
			return err
		}
	}
	if t.Temp != nil {
		if err := check(ColumnTemp, len(t.Temp)); err != nil {
			return err
		}
	}
	if t.TempTime != nil {
		if err := check(ColumnTempTime, len(t.TempTime)); err != nil {
			return err
		}
	}
	for _, o := range AllOvertones {
		if t.Freq[o] != nil {
			if err := check(o.FreqColumn(), len(t.Freq[o])); err != nil {
				return err
			}
		}
		if t.Dis[o] != nil {
			if err := check(o.DisColumn(), len(t.Dis[o])); err != nil {
				return err
			}
		}
	}

	last := math.Inf(-1)
	for i, v := range t.Time {
		if math.IsNaN(v) {
			continue
		}
		if v < last {
			return fmt.Errorf("time decreases at row %d (%g after %g)", i, v, last)
		}
		last = v
	}
	return nil
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	return append([]float64(nil), in...)
}

// SensorOvertoneSeries is one decoded (sensor, overtone) run of a binary export.
// Zero padded tails of ragged runs are included; Length is the declared sample count.
type SensorOvertoneSeries struct {
	SensorIndex int
	Overtone    Overtone
	Length      int
	Time        []float64
	Freq        []float64
	Dis         []float64
}
