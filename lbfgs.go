package gofit

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/optimize"
)

// A Result reports where a fit ended up.
type Result struct {
	// X is the best flat point found, in the layout of the Flattener
	// the fit ran over. The parameter collection holds X when Fit
	// returns.
	X []float64

	// Loss is the objective value at X.
	Loss float64

	// Status is the optimiser's reason for stopping. Running out of
	// iterations (optimize.IterationLimit) is a valid way to stop, not
	// an error.
	Status optimize.Status
}

// Fit minimises step over the parameters laid out by f using L-BFGS,
// starting from the values currently stored in the collection. The loss
// must be deterministic in the parameters: quasi-Newton line searches
// assume that re-evaluating a point reproduces its loss, so models with
// Monte Carlo terms need their noise frozen for the duration of the fit.
//
// At most maxIter major iterations are run; maxIter <= 0 leaves the
// iteration count unbounded, stopping on gonum's gradient and function
// tolerances instead. Hitting the iteration bound is not a failure: the
// best point found is installed into the parameter collection and
// returned. Evaluation errors (a failed forward or backward pass) abort
// the run; the optimiser failing to converge does not.
//
// A nil logger runs silently. A non-nil logger receives per-iteration
// progress.
func Fit(f *Flattener, step StepFunc, maxIter int, logger *log.Logger) (*Result, error) {
	obj := NewObjective(f, step)

	// An all-fixed collection leaves nothing to optimise; report the
	// loss at the values already installed.
	if f.Len() == 0 {
		loss, err := step()
		if err != nil {
			return nil, fmt.Errorf("fit: %v", err)
		}

		return &Result{X: []float64{}, Loss: loss,
			Status: optimize.Success}, nil
	}

	x0, err := f.Values()
	if err != nil {
		return nil, fmt.Errorf("fit: %v", err)
	}

	problem := optimize.Problem{
		Func:   obj.Func,
		Grad:   obj.Grad,
		Status: obj.Status,
	}

	settings := &optimize.Settings{}
	if maxIter > 0 {
		settings.MajorIterations = maxIter
	}
	if logger != nil {
		printer := optimize.NewPrinter()
		printer.Writer = logger.Writer()
		settings.Recorder = printer
	}

	result, err := optimize.Minimize(problem, x0, settings,
		&optimize.LBFGS{})

	// A broken evaluation is the real failure even when the optimiser
	// dressed it up as a line-search error of its own.
	if oerr := obj.Err(); oerr != nil {
		return nil, fmt.Errorf("fit: %v", oerr)
	}
	if err != nil {
		return nil, fmt.Errorf("fit: %v", err)
	}

	// The last point the optimiser evaluated is not necessarily the
	// best one it found: install the optimum before reporting it.
	if err := f.SetValues(result.X); err != nil {
		return nil, fmt.Errorf("fit: %v", err)
	}

	return &Result{X: result.X, Loss: result.F, Status: result.Status}, nil
}
