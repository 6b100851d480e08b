// Package distribution provides probability distributions over
// Gorgonia expression graphs. Every method that takes or returns data
// works on graph nodes, so densities, entropies and samples take part
// in symbolic gradients like any other part of a graph.
//
// Distributions admit batches of parameters: a Normal built from a
// vector mean and a vector standard deviation holds one univariate
// distribution per element. Methods taking an input node accept either
// the distribution's own shape or that shape with one extra leading
// batch dimension, in which case the method is applied to every sample
// in the batch.
package distribution

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Quantiler is a Distribution that can invert its own CDF.
type Quantiler interface {
	Distribution

	// Quantile returns the value at which the CDF equals the given
	// probability, sometimes called the inverse CDF. The shape of the
	// input node is treated the same way as in Cdf.
	Quantile(*G.Node) (*G.Node, error)
}

// Distribution is a probability distribution over graph nodes.
type Distribution interface {
	// Cdf returns the cumulative probability of the node. The shape
	// of the node must be the shape of the distribution, or that
	// shape with one extra leading batch dimension (dim 0).
	Cdf(*G.Node) (*G.Node, error)

	// Entropy returns the entropy of the distribution(s), one entry
	// per distribution held.
	Entropy() (*G.Node, error)

	// Shape returns the shape of the distribution: the shape of the
	// parameter tensors it was built from.
	Shape() tensor.Shape

	// LogProb returns the log of the probability density or mass of
	// the node. The shape of the node is treated the same way as in
	// Cdf.
	LogProb(*G.Node) (*G.Node, error)

	// Prob returns the probability density or mass of the node. The
	// shape of the node is treated the same way as in Cdf.
	Prob(*G.Node) (*G.Node, error)

	Mean() *G.Node
	StdDev() *G.Node
	Variance() *G.Node

	// Sample returns a node holding the given number of samples,
	// stacked along a new leading dimension. The node draws fresh
	// samples on every run of its machine and is not differentiable.
	Sample(samples int) (*G.Node, error)

	// Rsample is Sample through the reparameterization trick: the
	// returned node is differentiable with respect to the
	// distribution's parameters. Distributions without a
	// reparameterization return an error.
	Rsample(samples int) (*G.Node, error)

	// HasRsample returns whether Rsample is available.
	HasRsample() bool
}
