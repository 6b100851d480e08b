package distribution

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// NormalRand returns a node of shape (numSamples, mean.Shape()...)
// drawing that many samples from the normal distribution held
// element-wise by mean and stddev. Every run of a machine over the
// node's graph draws fresh samples; the node is not differentiable.
func NormalRand(mean, stddev *G.Node, seed uint64,
	numSamples int) (*G.Node, error) {
	if mean.Dtype() != stddev.Dtype() {
		return nil, fmt.Errorf("normalRand: mean and stddev should "+
			"have same dtype but got %v and %v", mean.Dtype(),
			stddev.Dtype())
	}

	if !mean.Shape().Eq(stddev.Shape()) {
		return nil, fmt.Errorf("normalRand: mean and stddev should "+
			"have same shape but got %v and %v", mean.Shape(),
			stddev.Shape())
	}

	op, err := newNormalSampleOp(mean.Dtype(), seed, numSamples,
		mean.Shape()...)
	if err != nil {
		return nil, fmt.Errorf("normalRand: %v", err)
	}

	return G.ApplyOp(op, mean, stddev)
}

// BernoulliRand returns a node of shape (numSamples, logits.Shape()...)
// drawing that many 0/1 samples from the Bernoulli distribution whose
// success probability is the sigmoid of logits, element-wise. Every
// run of a machine over the node's graph draws fresh samples; the node
// is not differentiable.
func BernoulliRand(logits *G.Node, seed uint64,
	numSamples int) (*G.Node, error) {
	op, err := newBernoulliSampleOp(logits.Dtype(), seed, numSamples,
		logits.Shape()...)
	if err != nil {
		return nil, fmt.Errorf("bernoulliRand: %v", err)
	}

	return G.ApplyOp(op, logits)
}
