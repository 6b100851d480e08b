package distribution

import (
	"fmt"
	"hash"

	"github.com/chewxy/hm"
	"github.com/samuelfneumann/gop"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// A drawFunc draws one sample from a distribution parameterized by the
// values its input tensors hold at a single coordinate. The parameters
// arrive widened to float64 in input order.
type drawFunc func(params []float64) float64

// sampleOp is a Gorgonia op drawing samples from a scalar distribution
// at every coordinate of its input parameter tensors. The op takes
// arity parameter tensors of identical shape and dtype, draws
// numSamples values per coordinate, and returns a tensor of shape
// (numSamples, shape...): the sample dimension is always prepended,
// even for a single sample.
//
// The op owns its random stream, so two runs of the same machine draw
// different samples while ops built with the same seed draw the same
// sequence. Sampling is not differentiable; nodes made from this op
// must sit off every path a gradient is taken along.
type sampleOp struct {
	name       string
	dt         tensor.Dtype
	shape      tensor.Shape
	arity      int
	numSamples int
	seed       uint64
	draw       drawFunc
}

func newSampleOp(name string, dt tensor.Dtype, seed uint64,
	numSamples, arity int, draw drawFunc,
	shape ...int) (*sampleOp, error) {
	if dt != tensor.Float64 && dt != tensor.Float32 {
		return nil, fmt.Errorf("newSampleOp: dtype %v not supported",
			dt)
	}
	if numSamples < 1 {
		return nil, fmt.Errorf("newSampleOp: samples must be positive "+
			"but got %v", numSamples)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("newSampleOp: scalar parameters are "+
			"not supported, reshape to a vector of 1 element")
	}

	return &sampleOp{
		name:       name,
		dt:         dt,
		shape:      tensor.Shape(shape),
		arity:      arity,
		numSamples: numSamples,
		seed:       seed,
		draw:       draw,
	}, nil
}

func (s *sampleOp) Arity() int { return s.arity }

func (s *sampleOp) Type() hm.Type {
	in := G.TensorType{
		Dims: s.shape.Dims(),
		Of:   s.dt,
	}
	out := G.TensorType{
		Dims: s.shape.Dims() + 1,
		Of:   s.dt,
	}

	types := make([]hm.Type, s.arity+1)
	for i := 0; i < s.arity; i++ {
		types[i] = in
	}
	types[s.arity] = out

	return hm.NewFnType(types...)
}

func (s *sampleOp) InferShape(...G.DimSizer) (tensor.Shape, error) {
	return append(tensor.Shape{s.numSamples}, s.shape...), nil
}

func (s *sampleOp) ReturnsPtr() bool { return false }

func (s *sampleOp) CallsExtern() bool { return false }

func (s *sampleOp) OverwritesInput() int { return -1 }

func (s *sampleOp) String() string {
	return fmt.Sprintf("%v{shape=%v, samples=%v, seed=%v}()", s.name,
		s.shape, s.numSamples, s.seed)
}

func (s *sampleOp) WriteHash(h hash.Hash) {
	fmt.Fprint(h, s.String())
}

func (s *sampleOp) Hashcode() uint32 {
	return gop.SimpleHash(s)
}

func (s *sampleOp) Do(inputs ...G.Value) (G.Value, error) {
	if err := s.checkInputs(inputs...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	params := make([]tensor.Tensor, len(inputs))
	for i, in := range inputs {
		params[i] = in.(tensor.Tensor)
	}

	out := tensor.NewDense(
		s.dt,
		append([]int{s.numSamples}, s.shape...),
	)

	// Draw numSamples values at each coordinate of the parameter
	// tensors, filling the leading sample dimension of the output
	args := make([]float64, len(params))
	for i := 0; i < params[0].Size(); i++ {
		coords, err := tensor.Itol(i, params[0].Shape(),
			params[0].Strides())
		if err != nil {
			return nil, fmt.Errorf("do: could not get coordinates "+
				"of index %v: %v", i, err)
		}

		for j, p := range params {
			v, err := p.At(coords...)
			if err != nil {
				return nil, fmt.Errorf("do: could not get parameter "+
					"%v at index %v: %v", j, i, err)
			}

			args[j], err = toF64(v)
			if err != nil {
				return nil, fmt.Errorf("do: parameter %v: %v", j, err)
			}
		}

		outCoords := append([]int{0}, coords...)
		for j := 0; j < s.numSamples; j++ {
			outCoords[0] = j

			var setErr error
			if s.dt == tensor.Float64 {
				setErr = out.SetAt(s.draw(args), outCoords...)
			} else {
				setErr = out.SetAt(float32(s.draw(args)),
					outCoords...)
			}
			if setErr != nil {
				return nil, fmt.Errorf("do: could not set sample at "+
					"%v: %v", outCoords, setErr)
			}
		}
	}

	return out, nil
}

func (s *sampleOp) checkInputs(inputs ...G.Value) error {
	if err := gop.CheckArity(s, len(inputs)); err != nil {
		return err
	}

	for i, in := range inputs {
		t, ok := in.(tensor.Tensor)
		if !ok || t == nil {
			return fmt.Errorf("cannot sample from nil parameter %v", i)
		} else if t.Size() == 0 {
			return fmt.Errorf("cannot sample from empty parameter %v",
				i)
		} else if !t.Shape().Eq(s.shape) {
			return fmt.Errorf("expected parameter %v to have shape "+
				"%v but got %v", i, s.shape, t.Shape())
		} else if !t.Dtype().Eq(s.dt) {
			return fmt.Errorf("expected parameter %v to have dtype "+
				"%v but got %v", i, s.dt, t.Dtype())
		}
	}

	return nil
}
