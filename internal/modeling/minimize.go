package modeling

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"

	apperrors "qcmpulse/internal/errors"
)

const (
	defaultFuncEvaluations = 50000
	defaultConvergeIters   = 100
)

// minimizeScaled runs Nelder-Mead on f over x_i = p_i/start_i, so every parameter starts at
// 1 whatever its magnitude, and returns the parameters in their own units
func minimizeScaled(model string, start []float64, f func(p []float64) float64) ([]float64, error) {
	p := make([]float64, len(start))
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			for i := range x {
				p[i] = x[i] * start[i]
			}
			return f(p)
		},
	}

	x0 := make([]float64, len(start))
	for i := range x0 {
		x0[i] = 1
	}
	settings := &optimize.Settings{
		FuncEvaluations: defaultFuncEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-9,
			Iterations: defaultConvergeIters,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, apperrors.NewFitConvergenceError(model, err)
	}
	if !converged(result.Status) {
		if err == nil {
			err = fmt.Errorf("terminated with status %s", result.Status)
		}
		return nil, apperrors.NewFitConvergenceError(model, err).
			WithContext("status", result.Status.String()).
			WithContext("evaluations", result.Stats.FuncEvaluations)
	}

	out := make([]float64, len(start))
	for i := range out {
		out[i] = result.X[i] * start[i]
	}
	return out, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
		return true
	}
	return false
}
