package distribution

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SigmoidBernoulli is a Bernoulli distribution parameterized in the
// logit space, which may hold a batch of Bernoulli distributions
// simultaneously. The success probability of each distribution is
// the sigmoid of the corresponding logit:
//
//		p = σ(logits) = 1 / (1 + exp(-logits))
//
// Working with logits instead of probabilities keeps log probabilities
// numerically stable for large positive or negative logits and leaves
// the parameter space unconstrained, so logits can be fit directly.
//
// If a SigmoidBernoulli is created with a tensor of logits, then each
// element of the logits tensor defines a different distribution
// element-wise, exactly as the mean and standard deviation tensors do
// for a Normal. The shape of the logits tensor constitutes the shape
// of the SigmoidBernoulli, and inputs to its methods are treated in
// the same way as inputs to the methods of a Normal: they must have
// the shape of the distribution, possibly with one extra leading batch
// dimension.
//
// SigmoidBernoulli supports the following data types:
// - tensor.Float64
// - tensor.Float32
type SigmoidBernoulli struct {
	logits *G.Node

	dt   tensor.Dtype
	seed uint64
}

// NewSigmoidBernoulli returns a new SigmoidBernoulli with success
// probabilities σ(logits). Scalar logits are reshaped to vectors of 1
// element.
func NewSigmoidBernoulli(logits *G.Node, seed uint64) (*SigmoidBernoulli,
	error) {
	if logits.Dtype() != tensor.Float64 &&
		logits.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("newSigmoidBernoulli: data type %v "+
			"unsupported", logits.Dtype())
	}

	var err error
	if logits.IsScalar() {
		logits, err = G.Reshape(logits, []int{1})
		if err != nil {
			return nil, fmt.Errorf("newSigmoidBernoulli: could not expand "+
				"logits to shape (1): %v", err)
		}
	}

	return &SigmoidBernoulli{
		logits: logits,
		dt:     logits.Dtype(),
		seed:   seed,
	}, nil
}

// constant returns a constant node holding v at the receiver's data
// type.
func (s *SigmoidBernoulli) constant(v float64) *G.Node {
	return floatConst(s.logits.Graph(), s.dt, v)
}

// LogProb calculates the log probability mass of x, whose elements
// must be 0 or 1. The shape of x is treated in the same way as the
// Prob() method of a Normal.
//
// The mass is computed directly from the logits l:
//
//		log P(x) = -[(1 - x)l + log(1 + exp(-l))]
//
// which never forms σ(l) explicitly and so stays stable for extreme
// logits.
func (s *SigmoidBernoulli) LogProb(x *G.Node) (*G.Node, error) {
	x, err := s.fixShape(x)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	one := s.constant(1.0)

	// softplus(-l) = log(1 + exp(-l)) = -log σ(l)
	spNeg := G.Must(G.Softplus(G.Must(G.Neg(s.logits))))
	oneMinusX := G.Must(G.Sub(one, x))

	if s.isBatch(x) {
		batchDim := []byte{0}
		x = G.Must(G.BroadcastHadamardProd(oneMinusX, s.logits, nil,
			batchDim))
		x = G.Must(G.BroadcastAdd(x, spNeg, nil, batchDim))
	} else {
		x = G.Must(G.HadamardProd(oneMinusX, s.logits))
		x = G.Must(G.Add(x, spNeg))
	}

	return G.Neg(x)
}

// Prob calculates the probability mass of x, whose elements must be 0
// or 1. The shape of x is treated in the same way as the Prob()
// method of a Normal.
func (s *SigmoidBernoulli) Prob(x *G.Node) (*G.Node, error) {
	logProb, err := s.LogProb(x)
	if err != nil {
		return nil, fmt.Errorf("prob: %v", err)
	}

	return G.Exp(logProb)
}

// Cdf always returns an error: the CDF of a discrete distribution is
// a step function, which has no useful gradient.
func (s *SigmoidBernoulli) Cdf(x *G.Node) (*G.Node, error) {
	return nil, fmt.Errorf("cdf: not implemented for discrete " +
		"distributions")
}

// Shape returns the shape of the distribution(s) stored by the
// receiver
func (s *SigmoidBernoulli) Shape() tensor.Shape {
	return s.logits.Shape()
}

// Mean returns the mean σ(logits) of the distribution(s) stored by
// the receiver
func (s *SigmoidBernoulli) Mean() *G.Node {
	return G.Must(G.Sigmoid(s.logits))
}

// Variance returns the variance p(1-p) of the distribution(s) stored
// by the receiver
func (s *SigmoidBernoulli) Variance() *G.Node {
	one := s.constant(1.0)

	p := G.Must(G.Sigmoid(s.logits))
	oneMinusP := G.Must(G.Sub(one, p))

	return G.Must(G.HadamardProd(p, oneMinusP))
}

// StdDev returns the standard deviation of the distribution(s) stored
// by the receiver
func (s *SigmoidBernoulli) StdDev() *G.Node {
	return G.Must(G.Sqrt(s.Variance()))
}

// Entropy returns the entropy of the distribution(s) stored by the
// receiver:
//
//		H = p softplus(-l) + (1 - p) softplus(l)
//
// where p = σ(l).
func (s *SigmoidBernoulli) Entropy() (*G.Node, error) {
	p := G.Must(G.Sigmoid(s.logits))
	oneMinusP := G.Must(G.Sub(s.constant(1.0), p))

	spNeg := G.Must(G.Softplus(G.Must(G.Neg(s.logits))))
	sp := G.Must(G.Softplus(s.logits))

	entropy := G.Must(G.HadamardProd(p, spNeg))
	entropy = G.Must(G.Add(entropy, G.Must(G.HadamardProd(oneMinusP, sp))))

	return entropy, nil
}

// HasRsample returns false: draws from a discrete distribution cannot
// be reparameterized.
func (s *SigmoidBernoulli) HasRsample() bool { return false }

// Rsample always returns an error. Use LogProb with Sample to build
// score function gradient estimates instead.
func (s *SigmoidBernoulli) Rsample(samples int) (*G.Node, error) {
	return nil, fmt.Errorf("rsample: SigmoidBernoulli has no " +
		"reparameterization")
}

// Sample returns a node holding samples of the distribution(s) stored
// by the receiver, stacked along a new leading dimension. Each sample
// element is 0 or 1. The node is not differentiable.
func (s *SigmoidBernoulli) Sample(samples int) (*G.Node, error) {
	return BernoulliRand(s.logits, s.seed, samples)
}

// isBatch returns whether x is a batch of samples to calculate some
// method on
func (s *SigmoidBernoulli) isBatch(x *G.Node) bool {
	return !x.Shape().Eq(s.logits.Shape())
}

// fixShape adjusts the shape of x so that it can be used in some
// method. It returns an error indicating if x is of an invalid shape
// which could not be adjusted.
func (s *SigmoidBernoulli) fixShape(x *G.Node) (*G.Node, error) {
	if x.IsScalar() && s.logits.Shape()[0] == 1 {
		return G.Reshape(x, []int{1})

	} else if len(x.Shape()) == 1 && s.logits.Shape()[0] == 1 {
		return G.Reshape(x, []int{x.Shape()[0], 1})

	} else if s.isBatch(x) && !tensor.Shape(x.Shape()[1:]).Eq(s.Shape()) {
		msg := "expected shape to match distribution shape %v at all " +
			"dimensions except batch (dim 0) but got x shape %v"
		return nil, fmt.Errorf(msg, s.Shape(), x.Shape())

	} else if !s.isBatch(x) && !s.Shape().Eq(x.Shape()) {
		msg := "expected shape to match distribution shape %v but got %v"
		return nil, fmt.Errorf(msg, s.Shape(), x.Shape())
	}

	return x, nil
}
