package distribution

import (
	"fmt"
	"math/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func ones64(size int) []float64 {
	slice := make([]float64, size)
	for i := range slice {
		slice[i] = 1.0
	}

	return slice
}

func ones32(size int) []float32 {
	slice := make([]float32, size)
	for i := range slice {
		slice[i] = 1.0
	}

	return slice
}

// randInt returns a random int slice of length size
func randInt(size int, min, max int) []int {
	slice := make([]int, size)
	for i := range slice {
		slice[i] = min + rand.Intn(max-min)
	}

	return slice
}

// floatConst returns a constant node of g holding v at the given data
// type. The data type must be tensor.Float32 or tensor.Float64; any
// other dtype should have been rejected before reaching here.
func floatConst(g *G.ExprGraph, dt tensor.Dtype, v float64) *G.Node {
	if dt == tensor.Float32 {
		return g.Constant(G.NewF32(float32(v)))
	}

	return g.Constant(G.NewF64(v))
}

// toF64 widens a single element read out of a float tensor.
func toF64(v interface{}) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil

	case float32:
		return float64(f), nil
	}

	return 0, fmt.Errorf("toF64: value of type %T is not a float", v)
}
