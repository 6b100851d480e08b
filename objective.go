package gofit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// A StepFunc runs one forward and backward evaluation of a model against
// the current values of its parameter collection and returns the loss.
// When a StepFunc returns, the gradient slot of every trainable parameter
// must hold the gradient of the designated loss term at those values.
//
// The loss a StepFunc reports and the term its backward pass starts from
// need not be the same node: score-function estimators report an
// expectation while propagating gradients through a surrogate.
type StepFunc func() (float64, error)

// An Objective presents a keyed parameter collection and a forward and
// backward step as the flat surface numerical optimisers understand: a
// point installs into the collection, a forward/backward pass runs, and a
// scalar loss with a flat gradient comes back out.
//
// Func, Grad and Status implement the corresponding fields of a gonum
// optimize.Problem. Optimisers ask for the loss and the gradient through
// separate calls at the same point, so the Objective caches its last full
// evaluation and reuses it; one forward/backward pass serves both calls.
// An Objective is not safe for concurrent use, matching gonum's default
// serial evaluation.
type Objective struct {
	flat *Flattener
	step StepFunc

	x    []float64 // last point evaluated
	loss float64
	grad []float64
	ok   bool // x, loss and grad hold a completed evaluation

	err error // first failure; sticky
}

// NewObjective returns an Objective evaluating step against the parameter
// collection flat was built over.
func NewObjective(flat *Flattener, step StepFunc) *Objective {
	return &Objective{flat: flat, step: step}
}

// Eval installs x into the parameter collection, runs the forward and
// backward step, and returns the loss together with the flat gradient at
// x. The parameter collection is left holding x.
func (o *Objective) Eval(x []float64) (float64, []float64, error) {
	if err := o.flat.SetValues(x); err != nil {
		return 0, nil, fmt.Errorf("eval: %v", err)
	}

	loss, err := o.step()
	if err != nil {
		return 0, nil, fmt.Errorf("eval: %v", err)
	}

	grad, err := o.flat.Gradients()
	if err != nil {
		return 0, nil, fmt.Errorf("eval: %v", err)
	}

	return loss, grad, nil
}

// Func returns the loss at x. It has the signature of an
// optimize.Problem's Func field. A failed evaluation poisons the objective
// and returns NaN; Status reports the failure to the optimiser.
func (o *Objective) Func(x []float64) float64 {
	if err := o.evalAt(x); err != nil {
		return math.NaN()
	}

	return o.loss
}

// Grad stores the gradient at x into grad. It has the signature of an
// optimize.Problem's Grad field.
func (o *Objective) Grad(grad, x []float64) {
	if err := o.evalAt(x); err != nil {
		for i := range grad {
			grad[i] = math.NaN()
		}
		return
	}

	copy(grad, o.grad)
}

// Status reports the first evaluation failure to the optimiser. It has
// the signature of an optimize.Problem's Status field, which gonum polls
// between iterations; returning optimize.Failure halts the run with the
// recorded error. There are no retries.
func (o *Objective) Status() (optimize.Status, error) {
	if o.err != nil {
		return optimize.Failure, o.err
	}

	return optimize.NotTerminated, nil
}

// Err returns the first error any evaluation produced, or nil.
func (o *Objective) Err() error { return o.err }

// evalAt runs a full evaluation at x unless x is the point evaluated
// last. Once an evaluation fails the objective stays failed: a numerical
// optimiser that keeps probing after a broken forward/backward pass would
// only pile noise on the real error.
func (o *Objective) evalAt(x []float64) error {
	if o.err != nil {
		return o.err
	}

	if o.ok && floats.Equal(x, o.x) {
		return nil
	}

	loss, grad, err := o.Eval(x)
	if err != nil {
		o.ok = false
		o.err = err
		return err
	}

	o.x = append(o.x[:0], x...)
	o.loss = loss
	o.grad = grad
	o.ok = true

	return nil
}
