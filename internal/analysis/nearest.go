package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// DefaultMaxTimeProbes bounds the absolute time search
const DefaultMaxTimeProbes = 10

// FindNearestTime returns the row index matching target.
//
// Relative targets are numbers compared against Time; the closest row wins and ties go to
// the earliest row. Absolute targets are clock strings matched as substrings of abs_time
// after stripping leading zeros. Instruments log at most two seconds apart, so on a miss the
// last digit is advanced by one (mod 10) and the search retried, up to maxProbes attempts.
func FindNearestTime(t *domain.CanonicalTable, target string, relative bool, maxProbes int) (int, error) {
	return findFrom(t, 0, target, relative, maxProbes)
}

// findFrom searches rows [from, Len) and returns an index relative to from
func findFrom(t *domain.CanonicalTable, from int, target string, relative bool, maxProbes int) (int, error) {
	if t.Len()-from <= 0 {
		return 0, apperrors.NewMissingDataError("table has no rows")
	}
	if relative {
		return nearestRelative(t.Time[from:], target)
	}
	if t.AbsTime == nil {
		return nearestAbsolute(nil, target, maxProbes)
	}
	return nearestAbsolute(t.AbsTime[from:], target, maxProbes)
}

func nearestRelative(times []float64, target string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if err != nil || math.IsNaN(v) {
		return 0, apperrors.NewAppValidationError(fmt.Sprintf("relative time %q is not a number", target))
	}

	best, bestDist := -1, math.Inf(1)
	for i, tv := range times {
		if math.IsNaN(tv) {
			continue
		}
		if d := math.Abs(tv - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, apperrors.NewMissingDataError("time column holds no values")
	}
	return best, nil
}

func nearestAbsolute(abs []string, target string, maxProbes int) (int, error) {
	if abs == nil {
		return 0, apperrors.NewMissingDataError("table has no absolute time column").
			WithContext("column", domain.ColumnAbsTime)
	}
	if maxProbes <= 0 || maxProbes > DefaultMaxTimeProbes {
		maxProbes = DefaultMaxTimeProbes
	}

	probe := strings.TrimLeft(strings.TrimSpace(target), "0")
	if probe == "" {
		return 0, apperrors.NewAppValidationError(fmt.Sprintf("absolute time %q is empty", target))
	}

	for attempt := 0; attempt < maxProbes; attempt++ {
		for i, s := range abs {
			if strings.Contains(s, probe) {
				return i, nil
			}
		}
		next, ok := advanceLastDigit(probe)
		if !ok {
			break
		}
		probe = next
	}
	return 0, apperrors.NewMissingDataError(fmt.Sprintf("no timestamp near %q", target)).
		WithContext("probes", maxProbes)
}

func advanceLastDigit(s string) (string, bool) {
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		return "", false
	}
	return s[:len(s)-1] + string(rune('0'+(last-'0'+1)%10)), true
}

// LocateBaseline resolves t0 on the full table and tf on the rows that remain once
// everything before t0 is dropped.
func LocateBaseline(t *domain.CanonicalTable, t0, tf string, relative bool, maxProbes int) (domain.BaselineWindow, error) {
	start, err := FindNearestTime(t, t0, relative, maxProbes)
	if err != nil {
		return domain.BaselineWindow{}, fmt.Errorf("baseline start: %w", err)
	}
	end, err := findFrom(t, start, tf, relative, maxProbes)
	if err != nil {
		return domain.BaselineWindow{}, fmt.Errorf("baseline end: %w", err)
	}
	return domain.BaselineWindow{T0Index: start, TfIndex: end}, nil
}
