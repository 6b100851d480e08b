package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// newBernoulliSampleOp returns a sampleOp drawing 0/1 samples from the
// Bernoulli distribution whose success probability is the sigmoid of
// its single input, the logits. The sigmoid is computed at the op's
// dtype, so a float32 op quantizes the probability exactly as its
// graph does.
func newBernoulliSampleOp(dt tensor.Dtype, seed uint64, numSamples int,
	shape ...int) (*sampleOp, error) {
	dist := distuv.Bernoulli{
		P:   0.5,
		Src: rand.NewSource(seed),
	}

	draw := func(params []float64) float64 {
		if dt == tensor.Float32 {
			logit := float32(params[0])
			dist.P = float64(1.0 / (1.0 + math32.Exp(-logit)))
		} else {
			dist.P = 1.0 / (1.0 + math.Exp(-params[0]))
		}

		return dist.Rand()
	}

	op, err := newSampleOp("BernoulliSample", dt, seed, numSamples, 1,
		draw, shape...)
	if err != nil {
		return nil, fmt.Errorf("newBernoulliSampleOp: %v", err)
	}

	return op, nil
}
