package modeling

import (
	"math"

	apperrors "qcmpulse/internal/errors"
)

// Measurement is a value with its standard error
type Measurement struct {
	Value float64
	Sigma float64
}

// ProductError propagates the error of v = a*b[/c...] from its operands:
// sigma_v = |v| * sqrt(sum((sigma_i/value_i)^2)). Zero operands contribute nothing.
func ProductError(v float64, operands ...Measurement) float64 {
	var sum float64
	for _, m := range operands {
		if m.Value == 0 {
			continue
		}
		r := m.Sigma / m.Value
		sum += r * r
	}
	return math.Abs(v) * math.Sqrt(sum)
}

// MeanError propagates the errors of k averaged values:
// sqrt(sum(sigma^2)/(k-1)) for k > 1, sqrt(sum(sigma^2)) otherwise.
func MeanError(sigmas []float64) float64 {
	var sum float64
	for _, s := range sigmas {
		sum += s * s
	}
	if len(sigmas) > 1 {
		return math.Sqrt(sum / float64(len(sigmas)-1))
	}
	return math.Sqrt(sum)
}

// ProductErrors applies ProductError element-wise. Every operand vector must be aligned
// with values.
func ProductErrors(values []float64, operands ...[]Measurement) ([]float64, error) {
	for _, op := range operands {
		if len(op) != len(values) {
			return nil, apperrors.NewShapeMismatchError("product operands", len(op), len(values))
		}
	}

	out := make([]float64, len(values))
	ms := make([]Measurement, len(operands))
	for i, v := range values {
		for j, op := range operands {
			ms[j] = op[i]
		}
		out[i] = ProductError(v, ms...)
	}
	return out, nil
}

// MeanErrors applies MeanError per position across the sigma vectors of several selections.
// Each overtone is propagated independently.
func MeanErrors(perSelection [][]float64) ([]float64, error) {
	if len(perSelection) == 0 {
		return nil, nil
	}
	n := len(perSelection[0])
	for _, s := range perSelection[1:] {
		if len(s) != n {
			return nil, apperrors.NewShapeMismatchError("averaged selections", len(s), n)
		}
	}

	out := make([]float64, n)
	column := make([]float64, len(perSelection))
	for i := range out {
		for j, s := range perSelection {
			column[j] = s[i]
		}
		out[i] = MeanError(column)
	}
	return out, nil
}
