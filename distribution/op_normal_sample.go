package distribution

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// newNormalSampleOp returns a sampleOp drawing from the normal
// distribution parameterized coordinate-wise by its two inputs, the
// mean and the standard deviation.
func newNormalSampleOp(dt tensor.Dtype, seed uint64, numSamples int,
	shape ...int) (*sampleOp, error) {
	dist := distuv.Normal{
		Mu:    0.0,
		Sigma: 1.0,
		Src:   rand.NewSource(seed),
	}

	draw := func(params []float64) float64 {
		dist.Mu = params[0]
		dist.Sigma = params[1]

		return dist.Rand()
	}

	op, err := newSampleOp("NormalSample", dt, seed, numSamples, 2,
		draw, shape...)
	if err != nil {
		return nil, fmt.Errorf("newNormalSampleOp: %v", err)
	}

	return op, nil
}
