package gofit

import (
	"fmt"

	"gorgonia.org/tensor"
)

// A Param is a single named tensor in a model: a current value, a gradient
// slot filled in by some external backward computation, and a flag saying
// whether an optimiser is allowed to modify it. Params are handles: the
// same Param is shared between the caller's forward/backward computation
// and whatever reads or writes it through a Dict, so a value written with
// SetValue is immediately visible to both sides.
//
// Values are dense tensors. Gradients live in a separate slot and must have
// the same shape as the value they belong to; Grad returns an error while
// the slot has not been populated by a backward pass.
type Param interface {
	// Name returns the key under which the parameter is stored in its
	// Dict. Names must be unique within a Dict and non-empty.
	Name() string

	// Value returns the parameter's current value, or nil if the
	// parameter has not been given one yet.
	Value() tensor.Tensor

	// SetValue replaces the parameter's current value.
	SetValue(tensor.Tensor) error

	// Grad returns the gradient computed for this parameter by the most
	// recent backward pass. An error is returned if no gradient has
	// been computed.
	Grad() (tensor.Tensor, error)

	// Trainable returns whether an optimiser may modify the parameter.
	// Fixed parameters are invisible to the flat representation.
	Trainable() bool
}

// A Predicate selects which parameters of a Dict take part in an
// operation.
type Predicate func(Param) bool

// Trainable is the Predicate selecting parameters whose Trainable flag is
// set. It is the default filter a Flattener applies: fixed parameters are
// skipped entirely and never appear in the flat vector.
func Trainable(p Param) bool { return p.Trainable() }

// Var is a plain in-memory Param. It is the simplest way to expose hand
// managed tensors to a Flattener: the caller computes gradients however it
// likes and stores them with SetGrad before the flat gradient is read.
type Var struct {
	name      string
	value     tensor.Tensor
	grad      tensor.Tensor
	trainable bool
}

// NewVar returns a Var named name holding value. The gradient slot starts
// empty.
func NewVar(name string, value tensor.Tensor, trainable bool) *Var {
	return &Var{
		name:      name,
		value:     value,
		trainable: trainable,
	}
}

// Name returns the name of the variable
func (v *Var) Name() string { return v.name }

// Value returns the current value of the variable
func (v *Var) Value() tensor.Tensor { return v.value }

// SetValue replaces the current value of the variable
func (v *Var) SetValue(t tensor.Tensor) error {
	if t == nil {
		return fmt.Errorf("setValue: cannot set %v to a nil value", v.name)
	}

	v.value = t
	return nil
}

// Grad returns the gradient stored by the last SetGrad call
func (v *Var) Grad() (tensor.Tensor, error) {
	if v.grad == nil {
		return nil, fmt.Errorf("grad: no gradient has been computed "+
			"for %v", v.name)
	}

	return v.grad, nil
}

// SetGrad stores grad in the variable's gradient slot. It is called by
// whatever backward computation the caller runs between writing values and
// reading the flat gradient.
func (v *Var) SetGrad(grad tensor.Tensor) { v.grad = grad }

// ZeroGrad empties the variable's gradient slot, so that a Grad before the
// next backward pass fails loudly instead of returning stale data.
func (v *Var) ZeroGrad() { v.grad = nil }

// Trainable returns whether an optimiser may modify the variable
func (v *Var) Trainable() bool { return v.trainable }
