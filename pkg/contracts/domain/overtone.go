package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NumOvertones is the number of overtone slots in the canonical schema
const NumOvertones = 7

// Overtone identifies one of the odd resonant modes of the crystal
type Overtone int

const (
	Fundamental Overtone = iota
	Third
	Fifth
	Seventh
	Ninth
	Eleventh
	Thirteenth
)

// AllOvertones lists every overtone slot in canonical column order
var AllOvertones = [NumOvertones]Overtone{Fundamental, Third, Fifth, Seventh, Ninth, Eleventh, Thirteenth}

// Number returns the overtone number n (1, 3, ..., 13)
func (o Overtone) Number() int {
	return 2*int(o) + 1
}

// Index returns the slot index (0..6)
func (o Overtone) Index() int {
	return int(o)
}

// Valid reports whether o names a canonical slot
func (o Overtone) Valid() bool {
	return o >= Fundamental && o <= Thirteenth
}

// Label returns the column prefix used by the canonical schema, e.g. "fundamental" or "3rd"
func (o Overtone) Label() string {
	if o == Fundamental {
		return "fundamental"
	}
	return Ordinal(o.Number())
}

// FreqColumn returns the canonical frequency column name
func (o Overtone) FreqColumn() string {
	return o.Label() + "_freq"
}

// DisColumn returns the canonical dissipation column name
func (o Overtone) DisColumn() string {
	return o.Label() + "_dis"
}

// Column returns the canonical column for the given measurement kind
func (o Overtone) Column(kind MeasurementKind) string {
	if kind == KindDissipation {
		return o.DisColumn()
	}
	return o.FreqColumn()
}

func (o Overtone) String() string {
	return o.Label()
}

// OvertoneFromNumber maps n (1, 3, ..., 13) to its Overtone
func OvertoneFromNumber(n int) (Overtone, error) {
	if n < 1 || n > 13 || n%2 == 0 {
		return 0, fmt.Errorf("invalid overtone number %d", n)
	}
	return Overtone((n - 1) / 2), nil
}

// ParseOvertoneColumn splits a canonical column name such as "5th_dis" into its overtone and kind
func ParseOvertoneColumn(column string) (Overtone, MeasurementKind, error) {
	var kind MeasurementKind
	var prefix string
	switch {
	case strings.HasSuffix(column, "_freq"):
		kind, prefix = KindFrequency, strings.TrimSuffix(column, "_freq")
	case strings.HasSuffix(column, "_dis"):
		kind, prefix = KindDissipation, strings.TrimSuffix(column, "_dis")
	default:
		return 0, "", fmt.Errorf("not an overtone column: %q", column)
	}

	if prefix == "fundamental" {
		return Fundamental, kind, nil
	}

	digits := strings.TrimRightFunc(prefix, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", fmt.Errorf("not an overtone column: %q", column)
	}
	o, err := OvertoneFromNumber(n)
	if err != nil {
		return 0, "", err
	}
	return o, kind, nil
}

// Ordinal returns n with its English ordinal suffix (1st, 3rd, 11th)
func Ordinal(n int) string {
	suffix := "th"
	if m := n % 100; m < 4 || m > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// MeasurementKind distinguishes frequency from dissipation series
type MeasurementKind string

const (
	KindFrequency   MeasurementKind = "freq"
	KindDissipation MeasurementKind = "dis"
)

// OvertoneSelection marks which overtones take part in an analysis
type OvertoneSelection [NumOvertones]bool

// SelectOvertones builds a selection from overtone numbers (1, 3, ...)
func SelectOvertones(numbers ...int) (OvertoneSelection, error) {
	var sel OvertoneSelection
	for _, n := range numbers {
		o, err := OvertoneFromNumber(n)
		if err != nil {
			return sel, err
		}
		sel[o] = true
	}
	return sel, nil
}

// Selected returns the selected overtones in ascending order
func (s OvertoneSelection) Selected() []Overtone {
	out := make([]Overtone, 0, NumOvertones)
	for _, o := range AllOvertones {
		if s[o] {
			out = append(out, o)
		}
	}
	return out
}

// Numbers returns the overtone numbers of the selection
func (s OvertoneSelection) Numbers() []int {
	sel := s.Selected()
	out := make([]int, len(sel))
	for i, o := range sel {
		out[i] = o.Number()
	}
	return out
}

// Count returns how many overtones are selected
func (s OvertoneSelection) Count() int {
	return len(s.Selected())
}
