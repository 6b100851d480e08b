package gofit

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// A NodeVar exposes a gorgonia node as a Param. Values written through
// SetValue are bound with G.Let, so a tape machine compiled over the
// node's graph sees them on its next run. Gradients are read from the
// node's dual value and require the machine to have been run with
// G.BindDualValues over the node.
type NodeVar struct {
	node      *G.Node
	trainable bool
}

// NewNodeVar wraps node as a Param. The node must be non-nil and hold a
// tensor value. Scalar nodes are rejected; use a 1-element vector
// instead so that the value round-trips through tensor.Tensor.
func NewNodeVar(node *G.Node, trainable bool) (*NodeVar, error) {
	if node == nil {
		return nil, fmt.Errorf("newnodevar: node cannot be nil")
	}
	if node.IsScalar() {
		return nil, fmt.Errorf("newnodevar: scalar nodes cannot be "+
			"fit, reshape %v to a vector of 1 element", node.Name())
	}

	return &NodeVar{node: node, trainable: trainable}, nil
}

// Name returns the name of the underlying node.
func (n *NodeVar) Name() string { return n.node.Name() }

// Node returns the underlying gorgonia node.
func (n *NodeVar) Node() *G.Node { return n.node }

// Value returns the tensor currently bound to the node, or nil if the
// node has no value yet.
func (n *NodeVar) Value() tensor.Tensor {
	v := n.node.Value()
	if v == nil {
		return nil
	}

	t, ok := v.(tensor.Tensor)
	if !ok {
		return nil
	}
	return t
}

// SetValue binds t to the node.
func (n *NodeVar) SetValue(t tensor.Tensor) error {
	if err := G.Let(n.node, t); err != nil {
		return fmt.Errorf("setvalue: %v", err)
	}
	return nil
}

// Grad returns the gradient bound to the node by the last machine run.
func (n *NodeVar) Grad() (tensor.Tensor, error) {
	v, err := n.node.Grad()
	if err != nil {
		return nil, fmt.Errorf("grad: %v", err)
	}

	t, ok := v.(tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("grad: gradient of %v is not a tensor",
			n.node.Name())
	}
	return t, nil
}

// Trainable returns whether the node should be adjusted by a fit.
func (n *NodeVar) Trainable() bool { return n.trainable }

// NodeDict wraps nodes as trainable Params in a Dict, keyed by node
// name. Every node needs a distinct, non-empty name.
func NodeDict(nodes ...*G.Node) (*Dict, error) {
	params := make([]Param, len(nodes))
	for i, node := range nodes {
		v, err := NewNodeVar(node, true)
		if err != nil {
			return nil, fmt.Errorf("nodedict: %v", err)
		}
		params[i] = v
	}

	return NewDict(params...)
}
