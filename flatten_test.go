package gofit_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/samuelfneumann/gofit"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// taggedEngine marks tensors so that tests can tell whether a write-back
// kept the engine a parameter was created with.
type taggedEngine struct{ tensor.StdEng }

func vec(vals ...float64) tensor.Tensor {
	return tensor.NewDense(
		tensor.Float64,
		[]int{len(vals)},
		tensor.WithBacking(vals),
	)
}

// TestFlattenerLayout checks the flat layout over a mixed collection:
// two trainable parameters of different shapes and one fixed parameter
// that must stay invisible and untouched.
func TestFlattenerLayout(t *testing.T) {
	a := gofit.NewVar("a", vec(1.5, -0.5), true)
	b := gofit.NewVar("b", tensor.NewDense(
		tensor.Float64,
		[]int{1, 1},
		tensor.WithBacking([]float64{4}),
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

	if f.Len() != 3 {
		t.Errorf("expected length 3 received %v", f.Len())
	}

	records := f.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records received %v", len(records))
	}
	if records[0].Name != "a" || records[0].Start != 0 ||
		records[0].End != 2 {
		t.Errorf("expected a at [0, 2) received %v at [%v, %v)",
			records[0].Name, records[0].Start, records[0].End)
	}
	if records[1].Name != "b" || records[1].Start != 2 ||
		records[1].End != 3 {
		t.Errorf("expected b at [2, 3) received %v at [%v, %v)",
			records[1].Name, records[1].Start, records[1].End)
	}
	if !records[0].Shape.Eq(tensor.Shape{2}) ||
		!records[1].Shape.Eq(tensor.Shape{1, 1}) {
		t.Errorf("expected shapes (2) and (1, 1) received %v and %v",
			records[0].Shape, records[1].Shape)
	}

	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, []float64{1.5, -0.5, 4}) {
		t.Errorf("expected values [1.5 -0.5 4] received %v", x)
	}

	// Gradient slots are empty until a backward pass fills them
	if _, err := f.Gradients(); err == nil {
		t.Error("expected an error reading gradients before any " +
			"backward pass")
	}

	a.SetGrad(vec(0.1, 0.2))
	b.SetGrad(tensor.NewDense(
		tensor.Float64,
		[]int{1, 1},
		tensor.WithBacking([]float64{0.3}),
	))
	grad, err := f.Gradients()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(grad, []float64{0.1, 0.2, 0.3}) {
		t.Errorf("expected gradient [0.1 0.2 0.3] received %v", grad)
	}

	if err := f.SetValues([]float64{1, 2, 3}); err != nil {
		t.Error(err)
	}
	if !floats.Equal(a.Value().Data().([]float64), []float64{1, 2}) {
		t.Errorf("expected a = [1 2] received %v", a.Value().Data())
	}
	if !a.Value().Shape().Eq(tensor.Shape{2}) {
		t.Errorf("expected a to keep shape (2) received %v",
			a.Value().Shape())
	}
	if !floats.Equal(b.Value().Data().([]float64), []float64{3}) {
		t.Errorf("expected b = [3] received %v", b.Value().Data())
	}
	if !b.Value().Shape().Eq(tensor.Shape{1, 1}) {
		t.Errorf("expected b to keep shape (1, 1) received %v",
			b.Value().Shape())
	}

	// The fixed parameter still holds the very same tensor
	if c.Value() != cVal {
		t.Error("write-back should not touch fixed parameters")
	}
}

// TestFlattenerRoundTrip checks on random collections that reading the
// flat vector and writing it straight back is a no-op, and that any
// written vector reads back unchanged.
func TestFlattenerRoundTrip(t *testing.T) {
	const tests int = 25
	rand.Seed(time.Now().UnixNano())

	for i := 0; i < tests; i++ {
		nParams := 1 + rand.Intn(6)
		params := make([]gofit.Param, nParams)
		shapes := make(map[string]tensor.Shape)

		var expected []float64
		for j := range params {
			shape := make([]int, 1+rand.Intn(3))
			for k := range shape {
				shape[k] = 1 + rand.Intn(4)
			}

			backing := make([]float64, tensor.ProdInts(shape))
			for k := range backing {
				backing[k] = rand.NormFloat64()
			}

			name := fmt.Sprintf("p%d", j)
			trainable := rand.Float64() < 0.75
			params[j] = gofit.NewVar(name, tensor.NewDense(
				tensor.Float64,
				shape,
				tensor.WithBacking(backing),
			), trainable)

			if trainable {
				expected = append(expected, backing...)
				shapes[name] = tensor.Shape(shape).Clone()
			}
		}

		d, err := gofit.NewDict(params...)
		if err != nil {
			t.Fatal(err)
		}
		f, err := gofit.NewFlattener(d, nil)
		if err != nil {
			t.Fatal(err)
		}

		if f.Len() != len(expected) {
			t.Errorf("expected length %v received %v", len(expected),
				f.Len())
		}

		// Records tile the flat vector contiguously, in order
		offset := 0
		for _, r := range f.Records() {
			if r.Start != offset {
				t.Errorf("expected record %v to start at %v "+
					"received %v", r.Name, offset, r.Start)
			}
			if r.Size() != r.Shape.TotalSize() {
				t.Errorf("expected record %v to span %v elements "+
					"received %v", r.Name, r.Shape.TotalSize(),
					r.Size())
			}
			offset = r.End
		}
		if offset != f.Len() {
			t.Errorf("expected records to end at %v received %v",
				f.Len(), offset)
		}

		x, err := f.Values()
		if err != nil {
			t.Error(err)
		}
		if !floats.Equal(x, expected) {
			t.Errorf("expected values %v received %v", expected, x)
		}

		// Writing the values just read changes nothing
		if err := f.SetValues(x); err != nil {
			t.Error(err)
		}
		again, err := f.Values()
		if err != nil {
			t.Error(err)
		}
		if !floats.Equal(again, x) {
			t.Errorf("expected %v after writing values back "+
				"received %v", x, again)
		}

		// Any point written comes back out bit for bit
		y := make([]float64, f.Len())
		for k := range y {
			y[k] = rand.NormFloat64()
		}
		if err := f.SetValues(y); err != nil {
			t.Error(err)
		}
		read, err := f.Values()
		if err != nil {
			t.Error(err)
		}
		if !floats.Equal(read, y) {
			t.Errorf("expected %v after write-back received %v", y,
				read)
		}

		// Shapes survive every write-back
		for name, shape := range shapes {
			p, ok := d.Get(name)
			if !ok {
				t.Fatalf("parameter %v disappeared", name)
			}
			if !p.Value().Shape().Eq(shape) {
				t.Errorf("expected %v to keep shape %v received %v",
					name, shape, p.Value().Shape())
			}
		}
	}
}

func TestFlattenerLengthMismatch(t *testing.T) {
	a := gofit.NewVar("a", vec(1, 2), true)
	b := gofit.NewVar("b", vec(3), true)

	d, err := gofit.NewDict(a, b)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, 2, 4} {
		err := f.SetValues(make([]float64, n))
		if err == nil {
			t.Errorf("expected an error writing %v values to a "+
				"flattener of length %v", n, f.Len())
			continue
		}

		var mismatch *gofit.LengthMismatchError
		if !errors.As(err, &mismatch) {
			t.Errorf("expected a *LengthMismatchError received %T",
				err)
			continue
		}
		if mismatch.Expected != 3 || mismatch.Actual != n {
			t.Errorf("expected lengths (3, %v) received (%v, %v)", n,
				mismatch.Expected, mismatch.Actual)
		}
	}

	expect := "expected array to be of length 3 but is actually length 2"
	if err := f.SetValues(make([]float64, 2)); err.Error() != expect {
		t.Errorf("expected error %q received %q", expect, err.Error())
	}

	// Rejected writes leave the collection untouched
	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, []float64{1, 2, 3}) {
		t.Errorf("expected values [1 2 3] received %v", x)
	}
}

// TestFlattenerFloat32 checks that float32 parameters are widened into
// the float64 flat vector and narrowed back to float32 on write-back.
func TestFlattenerFloat32(t *testing.T) {
	w := gofit.NewVar("w", tensor.NewDense(
		tensor.Float32,
		[]int{3},
		tensor.WithBacking([]float32{1.5, -2.25, 0.125}),
	), true)
	b := gofit.NewVar("b", vec(3.5), true)

	d, err := gofit.NewDict(w, b)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	if f.Records()[0].Dtype != tensor.Float32 {
		t.Errorf("expected dtype %v received %v", tensor.Float32,
			f.Records()[0].Dtype)
	}

	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, []float64{1.5, -2.25, 0.125, 3.5}) {
		t.Errorf("expected values [1.5 -2.25 0.125 3.5] received %v",
			x)
	}

	if err := f.SetValues([]float64{0.25, 8, -1.5, 2.75}); err != nil {
		t.Error(err)
	}
	if w.Value().Dtype() != tensor.Float32 {
		t.Errorf("expected write-back to keep dtype %v received %v",
			tensor.Float32, w.Value().Dtype())
	}
	if b.Value().Dtype() != tensor.Float64 {
		t.Errorf("expected write-back to keep dtype %v received %v",
			tensor.Float64, b.Value().Dtype())
	}

	got := w.Value().Data().([]float32)
	want := []float32{0.25, 8, -1.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected w = %v received %v", want, got)
			break
		}
	}

	// Values outside float32 round to the nearest float32 on write-back
	if err := f.SetValues([]float64{0.1, 8, -1.5, 2.75}); err != nil {
		t.Error(err)
	}
	if w.Value().Data().([]float32)[0] != float32(0.1) {
		t.Errorf("expected w[0] = %v received %v", float32(0.1),
			w.Value().Data().([]float32)[0])
	}
	x, err = f.Values()
	if err != nil {
		t.Error(err)
	}
	if x[0] != float64(float32(0.1)) {
		t.Errorf("expected x[0] = %v received %v",
			float64(float32(0.1)), x[0])
	}
}

func TestFlattenerEnginePreserved(t *testing.T) {
	val := tensor.New(
		tensor.WithShape(2),
		tensor.WithBacking([]float64{1, 2}),
		tensor.WithEngine(taggedEngine{}),
	)
	p := gofit.NewVar("p", val, true)

	d, err := gofit.NewDict(p)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := f.Records()[0].Engine.(taggedEngine); !ok {
		t.Errorf("expected the record to capture the engine "+
			"received %T", f.Records()[0].Engine)
	}

	if err := f.SetValues([]float64{3, 4}); err != nil {
		t.Error(err)
	}
	if _, ok := p.Value().Engine().(taggedEngine); !ok {
		t.Errorf("expected write-back to keep the engine received %T",
			p.Value().Engine())
	}
}

func TestNewFlattenerErrors(t *testing.T) {
	// A selected parameter without a value cannot be laid out
	empty := gofit.NewVar("empty", nil, true)
	d, err := gofit.NewDict(empty)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gofit.NewFlattener(d, nil); err == nil {
		t.Error("expected an error for a parameter with no value")
	}

	// Neither can one of a non-float element type
	ints := gofit.NewVar("ints", tensor.NewDense(
		tensor.Int,
		[]int{2},
		tensor.WithBacking([]int{1, 2}),
	), true)
	d, err = gofit.NewDict(ints)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gofit.NewFlattener(d, nil); err == nil {
		t.Error("expected an error for an int parameter")
	}

	// Parameters outside the selection are never even inspected
	fixedInts := gofit.NewVar("fixedInts", tensor.NewDense(
		tensor.Int,
		[]int{2},
		tensor.WithBacking([]int{1, 2}),
	), false)
	ok := gofit.NewVar("ok", vec(1), true)
	d, err = gofit.NewDict(fixedInts, ok)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Error(err)
	}
	if f.Len() != 1 {
		t.Errorf("expected length 1 received %v", f.Len())
	}
}

// TestFlattenerPredicate checks that a custom predicate replaces the
// default trainability filter outright.
func TestFlattenerPredicate(t *testing.T) {
	a := gofit.NewVar("a", vec(1, 2), true)
	skip := gofit.NewVar("skip", vec(3), true)
	c := gofit.NewVar("c", vec(4, 5), false)

	d, err := gofit.NewDict(a, skip, c)
	if err != nil {
		t.Fatal(err)
	}

	include := func(p gofit.Param) bool { return p.Name() != "skip" }
	f, err := gofit.NewFlattener(d, include)
	if err != nil {
		t.Fatal(err)
	}

	if f.Len() != 4 {
		t.Errorf("expected length 4 received %v", f.Len())
	}
	records := f.Records()
	if len(records) != 2 || records[0].Name != "a" ||
		records[1].Name != "c" {
		t.Errorf("expected records [a c] received %v", records)
	}

	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if !floats.Equal(x, []float64{1, 2, 4, 5}) {
		t.Errorf("expected values [1 2 4 5] received %v", x)
	}
}

func TestFlattenerEmpty(t *testing.T) {
	fixed := gofit.NewVar("fixed", vec(1, 2, 3), false)
	d, err := gofit.NewDict(fixed)
	if err != nil {
		t.Fatal(err)
	}

	f, err := gofit.NewFlattener(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	if f.Len() != 0 {
		t.Errorf("expected length 0 received %v", f.Len())
	}
	if len(f.Records()) != 0 {
		t.Errorf("expected no records received %v", f.Records())
	}

	x, err := f.Values()
	if err != nil {
		t.Error(err)
	}
	if len(x) != 0 {
		t.Errorf("expected no values received %v", x)
	}

	if err := f.SetValues(nil); err != nil {
		t.Error(err)
	}
	if err := f.SetValues([]float64{1}); err == nil {
		t.Error("expected an error writing 1 value to an empty " +
			"flattener")
	}
}
