package modeling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "qcmpulse/internal/errors"
)

// LinearFit is an ordinary least squares line
type LinearFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// At evaluates the line at x
func (f LinearFit) At(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// Evaluate evaluates the line at every x
func (f LinearFit) Evaluate(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f.At(x)
	}
	return out
}

// FitLinear fits y = slope*x + intercept. At least two points with distinct x are required.
func FitLinear(x, y []float64) (LinearFit, error) {
	if len(x) != len(y) {
		return LinearFit{}, apperrors.NewShapeMismatchError("linear fit", len(x), len(y))
	}
	if len(x) < 2 {
		return LinearFit{}, apperrors.NewMissingDataError(
			fmt.Sprintf("linear fit needs at least 2 points, got %d", len(x)))
	}
	if floats.Min(x) == floats.Max(x) {
		return LinearFit{}, apperrors.NewMissingDataError("linear fit needs at least 2 distinct x values")
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	fit := LinearFit{Slope: slope, Intercept: intercept}
	fit.RSquared = RSquared(y, fit.Evaluate(x))
	return fit, nil
}

// RSquared returns 1 - SS_res/SS_tot. A constant y yields 1 when it is matched exactly and
// 0 otherwise.
func RSquared(y, fit []float64) float64 {
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		r := y[i] - fit[i]
		d := y[i] - mean
		ssRes += r * r
		ssTot += d * d
	}
	switch {
	case ssTot == 0 && ssRes == 0:
		return 1
	case ssTot == 0:
		return 0
	}
	return 1 - ssRes/ssTot
}

func isZero(v float64) bool {
	return v == 0 || math.IsNaN(v)
}
