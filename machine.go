package gofit

import (
	"fmt"
	"log"

	G "gorgonia.org/gorgonia"
)

// MachineStep returns a StepFunc that resets vm, runs the program it
// was compiled with, and reads the scalar bound to loss. The machine
// must have been compiled over the graph that loss belongs to.
func MachineStep(vm G.VM, loss *G.Node) StepFunc {
	return func() (float64, error) {
		vm.Reset()
		if err := vm.RunAll(); err != nil {
			return 0, fmt.Errorf("machinestep: %v", err)
		}

		lossVal, err := scalarOf(loss.Value())
		if err != nil {
			return 0, fmt.Errorf("machinestep: loss of %v: %v",
				loss.Name(), err)
		}
		return lossVal, nil
	}
}

// scalarOf reads a single float64 out of a value that is either a
// scalar or backed by exactly one element.
func scalarOf(v G.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("scalarof: value is nil")
	}

	switch data := v.Data().(type) {
	case float64:
		return data, nil

	case float32:
		return float64(data), nil

	case []float64:
		if len(data) != 1 {
			return 0, fmt.Errorf("scalarof: expected 1 element "+
				"but got %v", len(data))
		}
		return data[0], nil

	case []float32:
		if len(data) != 1 {
			return 0, fmt.Errorf("scalarof: expected 1 element "+
				"but got %v", len(data))
		}
		return float64(data[0]), nil
	}

	return 0, fmt.Errorf("scalarof: cannot take scalar of type %T",
		v.Data())
}

// FitGraph fits learnables so that the scalar loss node is minimised,
// running the graph with a tape machine between L-BFGS steps. The graph
// must compute a loss that is deterministic in the learnables, so any
// sampled quantities need their noise drawn once, outside the graph.
//
// Gradients are taken of lossGrad, which may differ from loss when the
// quantity being minimised is estimated through a surrogate. A nil
// lossGrad takes gradients of loss itself. Both nodes must be scalars
// in g.
//
// On success the optimised values are left bound to the learnables.
func FitGraph(g *G.ExprGraph, loss, lossGrad *G.Node, learnables G.Nodes,
	maxIter int, logger *log.Logger) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("fitgraph: graph cannot be nil")
	}
	if loss == nil {
		return nil, fmt.Errorf("fitgraph: loss cannot be nil")
	}
	if lossGrad == nil {
		lossGrad = loss
	}
	if !lossGrad.IsScalar() {
		return nil, fmt.Errorf("fitgraph: cannot differentiate "+
			"non-scalar node %v", lossGrad.Name())
	}

	if len(learnables) > 0 {
		if _, err := G.Grad(lossGrad, learnables...); err != nil {
			return nil, fmt.Errorf("fitgraph: %v", err)
		}
	}

	dict, err := NodeDict(learnables...)
	if err != nil {
		return nil, fmt.Errorf("fitgraph: %v", err)
	}

	flat, err := NewFlattener(dict, nil)
	if err != nil {
		return nil, fmt.Errorf("fitgraph: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(learnables...))
	defer vm.Close()

	result, err := Fit(flat, MachineStep(vm, loss), maxIter, logger)
	if err != nil {
		return nil, fmt.Errorf("fitgraph: %v", err)
	}
	return result, nil
}
