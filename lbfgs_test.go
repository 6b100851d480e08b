package gofit_test

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/samuelfneumann/gofit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gorgonia.org/tensor"
)

// anisoStep returns a StepFunc computing sum(weights * (x - target)^2)
// over the values installed in f, with analytic gradients.
func anisoStep(f *gofit.Flattener, weights, target []float64,
	vars ...*gofit.Var) gofit.StepFunc {
	return func() (float64, error) {
		x, err := f.Values()
		if err != nil {
			return 0, err
		}

		loss := 0.0
		grad := make([]float64, len(x))
		for i := range x {
			diff := x[i] - target[i]
			loss += weights[i] * diff * diff
			grad[i] = 2 * weights[i] * diff
		}

		for i, r := range f.Records() {
			seg := make([]float64, r.Size())
			copy(seg, grad[r.Start:r.End])
			vars[i].SetGrad(tensor.New(
				tensor.WithShape(r.Shape...),
				tensor.WithBacking(seg),
			))
		}
		return loss, nil
	}
}

// TestFitQuadratic fits a three element quadratic spread over two
// parameters of different shapes, with a fixed parameter standing by to
// check that fitting never touches it.
func TestFitQuadratic(t *testing.T) {
	const threshold float64 = 0.00001

	a := gofit.NewVar("a", vec(-4, 6), true)
	b := gofit.NewVar("b", tensor.NewDense(
		tensor.Float64,
		[]int{1, 1},
		tensor.WithBacking([]float64{8}),
	), true)
	c := gofit.NewVar("c", vec(7, 7, 7), false)
	cVal := c.Value()

	d, err := gofit.NewDict(a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	weights := []float64{1, 3, 10}
	target := []float64{2, -1, 0.5}

	res, err := gofit.Fit(f, anisoStep(f, weights, target, a, b), 0,
		nil)
	if err != nil {
		t.Fatal(err)
	}

	if res.Loss > threshold {
		t.Errorf("expected loss near 0 received %v", res.Loss)
	}
	for i := range target {
		if math.Abs(res.X[i]-target[i]) > threshold {
			t.Errorf("expected minimum %v received %v", target,
				res.X)
			break
		}
	}

	// The optimum is installed in the collection on return
	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, res.X) {
		t.Errorf("expected the collection to hold %v received %v",
			res.X, x)
	}
	if !b.Value().Shape().Eq(tensor.Shape{1, 1}) {
		t.Errorf("expected b to keep shape (1, 1) received %v",
			b.Value().Shape())
	}
	if c.Value() != cVal {
		t.Error("fitting should not touch fixed parameters")
	}
}

// TestFitMaxIter checks that a fit cut off by its iteration limit
// reports the limit, keeps the best point found, and is not an error.
func TestFitMaxIter(t *testing.T) {
	w := gofit.NewVar("w", vec(10, 10, 10, 10, 10), true)
	d, err := gofit.NewDict(w)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	weights := []float64{1, 2, 4, 8, 16}
	target := []float64{0, 0, 0, 0, 0}

	start, err := f.Values()
	if err != nil {
		t.Fatal(err)
	}
	step := anisoStep(f, weights, target, w)
	startLoss, err := step()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetValues(start); err != nil {
		t.Fatal(err)
	}

	res, err := gofit.Fit(f, step, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != optimize.IterationLimit {
		t.Errorf("expected status %v received %v",
			optimize.IterationLimit, res.Status)
	}
	if res.Loss >= startLoss {
		t.Errorf("expected one iteration to improve on %v received "+
			"%v", startLoss, res.Loss)
	}

	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, res.X) {
		t.Errorf("expected the collection to hold %v received %v",
			res.X, x)
	}
}

func TestFitNothingTrainable(t *testing.T) {
	c := gofit.NewVar("c", vec(7, 7), false)
	d, err := gofit.NewDict(c)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	steps := 0
	step := func() (float64, error) {
		steps++
		return 3.14, nil
	}

	res, err := gofit.Fit(f, step, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if steps != 1 {
		t.Errorf("expected exactly 1 step received %v", steps)
	}
	if res.Loss != 3.14 {
		t.Errorf("expected loss 3.14 received %v", res.Loss)
	}
	if len(res.X) != 0 {
		t.Errorf("expected an empty point received %v", res.X)
	}
	if res.Status != optimize.Success {
		t.Errorf("expected status %v received %v", optimize.Success,
			res.Status)
	}
}

func TestFitStepError(t *testing.T) {
	w := gofit.NewVar("w", vec(1), true)
	d, err := gofit.NewDict(w)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	step := func() (float64, error) {
		return 0, fmt.Errorf("model exploded")
	}

	if _, err := gofit.Fit(f, step, 0, nil); err == nil {
		t.Error("expected a failing step to fail the fit")
	} else if !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("expected the step error to surface received %v",
			err)
	}
}

func TestFitLogger(t *testing.T) {
	w := gofit.NewVar("w", vec(5, -5), true)
	d, err := gofit.NewDict(w)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	weights := []float64{1, 2}
	target := []float64{1, 1}
	if _, err := gofit.Fit(f, anisoStep(f, weights, target, w), 0,
		logger); err != nil {
		t.Fatal(err)
	}

	if buf.Len() == 0 {
		t.Error("expected progress to be written to the logger")
	}
}
