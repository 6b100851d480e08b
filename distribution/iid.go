package distribution

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// IID wraps a Distribution and reinterprets a number of its trailing
// dimensions as event dimensions, so that those dimensions describe a
// single multivariate distribution of independent components instead
// of a batch of univariate distributions. Probabilities multiply and
// log probabilities and entropies add over event dimensions.
//
// For example, a Normal with shape (3) holds 3 univariate normal
// distributions, and its LogProb returns 3 values. Wrapping it in an
// IID with 1 event dimension yields a single 3-dimensional
// distribution with a diagonal covariance, and LogProb returns 1
// value. Leading dimensions of an input beyond the event dimensions
// are still treated as batch dimensions.
//
// Event dimensions are always taken from the right.
type IID struct {
	Distribution
	dims int
}

// NewIID returns a new IID treating the last dims dimensions of d as
// event dimensions.
func NewIID(d Distribution, dims int) (*IID, error) {
	if dims < 0 {
		return nil, fmt.Errorf("newIID: expected a non-negative number "+
			"of event dimensions but got %v", dims)
	}

	if dims > d.Shape().Dims() {
		return nil, fmt.Errorf("newIID: expected at most %v event "+
			"dimensions but got %v", d.Shape().Dims(), dims)
	}

	return &IID{d, dims}, nil
}

// eventAxes returns the axes of x holding event dimensions
func (i *IID) eventAxes(x *G.Node) []int {
	axes := make([]int, i.dims)
	for j := range axes {
		axes[j] = x.Dims() - i.dims + j
	}
	return axes
}

// LogProb calculates the log probability of x, summed over event
// dimensions
func (i *IID) LogProb(x *G.Node) (*G.Node, error) {
	if x.Dims() < i.dims {
		return nil, fmt.Errorf("logProb: expected at least %v dimensions "+
			"but got %v", i.dims, x.Dims())
	}

	x, err := i.Distribution.LogProb(x)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	if i.dims == 0 {
		return x, nil
	}

	x, err = G.Sum(x, i.eventAxes(x)...)
	if err != nil {
		return nil, fmt.Errorf("logProb: could not combine event "+
			"dimensions: %v", err)
	}

	return x, nil
}

// Prob calculates the probability of x, multiplied over event
// dimensions
func (i *IID) Prob(x *G.Node) (*G.Node, error) {
	logProb, err := i.LogProb(x)
	if err != nil {
		return nil, fmt.Errorf("prob: %v", err)
	}

	return G.Exp(logProb)
}

// Entropy returns the entropy of the distribution(s) stored by the
// receiver, summed over event dimensions
func (i *IID) Entropy() (*G.Node, error) {
	x, err := i.Distribution.Entropy()
	if err != nil {
		return nil, fmt.Errorf("entropy: %v", err)
	}

	if i.dims == 0 {
		return x, nil
	}

	x, err = G.Sum(x, i.eventAxes(x)...)
	if err != nil {
		return nil, fmt.Errorf("entropy: could not combine event "+
			"dimensions: %v", err)
	}

	return x, nil
}

// Cdf computes the cumulative distribution function of x, multiplied
// over event dimensions
func (i *IID) Cdf(x *G.Node) (*G.Node, error) {
	if x.Dims() < i.dims {
		return nil, fmt.Errorf("cdf: expected at least %v dimensions "+
			"but got %v", i.dims, x.Dims())
	}

	x, err := i.Distribution.Cdf(x)
	if err != nil {
		return nil, fmt.Errorf("cdf: %v", err)
	}

	if i.dims == 0 {
		return x, nil
	}

	// Multiply in the log domain so a single reduction serves. A zero
	// factor becomes -Inf, which exponentiates back to zero.
	x, err = G.Log(x)
	if err != nil {
		return nil, fmt.Errorf("cdf: %v", err)
	}

	x, err = G.Sum(x, i.eventAxes(x)...)
	if err != nil {
		return nil, fmt.Errorf("cdf: could not combine event "+
			"dimensions: %v", err)
	}

	return G.Exp(x)
}
