// Package gofit fits the named parameters of a model with black-box
// numerical optimisers. Optimisers such as gonum's L-BFGS understand one
// flat []float64 point, a scalar loss and a flat gradient; models keep
// their parameters as a keyed collection of tensors of assorted shapes,
// element types and compute engines. The Flattener is the bijection
// between the two representations, the Objective packages a forward and
// backward pass behind the flat (loss, gradient) surface, and Fit drives
// gonum's L-BFGS over the result. The node and machine files bind all of
// this to Gorgonia expression graphs.
package gofit

import (
	"fmt"

	"gorgonia.org/tensor"
)

// A Record describes where one parameter lives in the flat representation:
// the half-open range [Start, End) of the flat vector holding its elements,
// together with the shape, element type and compute engine its value is
// rebuilt with on every write-back. Records are fixed when a Flattener is
// constructed; parameter values may change afterwards, the layout may not.
type Record struct {
	Name   string
	Shape  tensor.Shape
	Dtype  tensor.Dtype
	Engine tensor.Engine // nil means the tensor package's default engine
	Start  int
	End    int
}

// Size returns the number of flat-vector elements the record occupies
func (r Record) Size() int { return r.End - r.Start }

// materialise builds a tensor of the record's shape, element type and
// engine from one segment of a flat vector. The segment is copied, never
// aliased.
func (r Record) materialise(seg []float64) (tensor.Tensor, error) {
	opts := []tensor.ConsOpt{tensor.WithShape(r.Shape...)}
	if r.Engine != nil {
		opts = append(opts, tensor.WithEngine(r.Engine))
	}

	switch r.Dtype {
	case tensor.Float64:
		backing := make([]float64, len(seg))
		copy(backing, seg)
		opts = append(opts, tensor.WithBacking(backing))

	case tensor.Float32:
		backing := make([]float32, len(seg))
		for i, v := range seg {
			backing[i] = float32(v)
		}
		opts = append(opts, tensor.WithBacking(backing))

	default:
		return nil, fmt.Errorf("materialise: dtype %v not supported",
			r.Dtype)
	}

	return tensor.New(opts...), nil
}

// LengthMismatchError is returned by Flattener.SetValues when the flat
// vector it is given disagrees with the flattener's layout. The parameter
// collection is left untouched.
type LengthMismatchError struct {
	Expected int // the flattener's total length
	Actual   int // the length of the rejected vector
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("expected array to be of length %d but is "+
		"actually length %d", e.Expected, e.Actual)
}

// A Flattener maps between the parameters of a Dict and one flat
// []float64. The layout (which parameters take part, in what order, at
// what offsets) is computed once at construction from the Dict's
// insertion order and never changes, even as values do. The Flattener does
// not own the values: it reads and writes them in place through their
// handles, so the collection it was built from is shared, mutable state
// between the caller's forward/backward computation and any optimiser
// driving SetValues.
//
// Flat vectors are always float64 regardless of the parameters' element
// types; float32 parameters are widened on read and narrowed again on
// write-back. Shape, element type and compute engine are captured per
// parameter at construction and reapplied on every write-back, so a
// parameter never silently migrates.
type Flattener struct {
	params  *Dict
	records []Record
	length  int
}

// NewFlattener builds the flat layout for the parameters of d selected by
// include, in the iteration order of d. A nil include selects trainable
// parameters; parameters failing the predicate are skipped entirely and
// are invisible to the flat representation. A collection with nothing
// selected yields a valid zero-length flattener.
//
// Construction fails if a selected parameter has no value yet, or a value
// whose element type is neither float64 nor float32.
func NewFlattener(d *Dict, include Predicate) (*Flattener, error) {
	if include == nil {
		include = Trainable
	}

	f := &Flattener{params: d}

	i := 0
	for _, p := range d.Params() {
		if !include(p) {
			continue
		}

		val := p.Value()
		if val == nil {
			return nil, fmt.Errorf("newFlattener: parameter %v has "+
				"no value", p.Name())
		}

		dt := val.Dtype()
		if dt != tensor.Float64 && dt != tensor.Float32 {
			return nil, fmt.Errorf("newFlattener: parameter %v: "+
				"dtype %v not supported", p.Name(), dt)
		}

		size := val.Shape().TotalSize()
		f.records = append(f.records, Record{
			Name:   p.Name(),
			Shape:  val.Shape().Clone(),
			Dtype:  dt,
			Engine: val.Engine(),
			Start:  i,
			End:    i + size,
		})
		i += size
	}
	f.length = i

	return f, nil
}

// Len returns the length of the flat vector: the total number of elements
// across every parameter the flattener lays out.
func (f *Flattener) Len() int { return f.length }

// Records returns a copy of the flat layout, in flat-vector order.
func (f *Flattener) Records() []Record {
	records := make([]Record, len(f.records))
	copy(records, f.records)
	for i := range records {
		records[i].Shape = records[i].Shape.Clone()
	}

	return records
}

// Values reads the current value of every laid-out parameter into a
// freshly allocated flat vector. The parameter collection is not modified.
func (f *Flattener) Values() ([]float64, error) {
	x := make([]float64, f.length)

	for _, r := range f.records {
		p, ok := f.params.Get(r.Name)
		if !ok {
			return nil, fmt.Errorf("values: parameter %v is no "+
				"longer in the collection", r.Name)
		}

		if err := flatten(x[r.Start:r.End], p.Value()); err != nil {
			return nil, fmt.Errorf("values: parameter %v: %v",
				r.Name, err)
		}
	}

	return x, nil
}

// SetValues writes x back into the parameter collection: each record's
// segment of x is copied, cast to the record's element type, shaped to the
// record's shape, materialised on the record's engine and installed as the
// parameter's new value. Parameters outside the layout are never touched.
//
// A vector of the wrong length is rejected with a *LengthMismatchError
// before anything is written. Later failures, such as a parameter gone
// from the collection or a SetValue error, surface immediately and leave
// the parameters written so far in place; there are no retries.
func (f *Flattener) SetValues(x []float64) error {
	if len(x) != f.length {
		return &LengthMismatchError{Expected: f.length, Actual: len(x)}
	}

	for _, r := range f.records {
		p, ok := f.params.Get(r.Name)
		if !ok {
			return fmt.Errorf("setValues: parameter %v is no longer "+
				"in the collection", r.Name)
		}

		val, err := r.materialise(x[r.Start:r.End])
		if err != nil {
			return fmt.Errorf("setValues: parameter %v: %v", r.Name,
				err)
		}

		if err := p.SetValue(val); err != nil {
			return fmt.Errorf("setValues: parameter %v: %v", r.Name,
				err)
		}
	}

	return nil
}

// Gradients reads the gradient slot of every laid-out parameter into a
// freshly allocated flat vector with the same layout as Values. The
// gradients must already have been populated by a backward pass over the
// current values: a parameter whose slot is empty surfaces the underlying
// Grad error. The parameter collection is not modified.
func (f *Flattener) Gradients() ([]float64, error) {
	x := make([]float64, f.length)

	for _, r := range f.records {
		p, ok := f.params.Get(r.Name)
		if !ok {
			return nil, fmt.Errorf("gradients: parameter %v is no "+
				"longer in the collection", r.Name)
		}

		grad, err := p.Grad()
		if err != nil {
			return nil, fmt.Errorf("gradients: parameter %v: %v",
				r.Name, err)
		}

		if err := flatten(x[r.Start:r.End], grad); err != nil {
			return nil, fmt.Errorf("gradients: parameter %v: %v",
				r.Name, err)
		}
	}

	return x, nil
}

// flatten copies the elements of t, in memory order, into dst as float64.
// Tensors are assumed dense and contiguous, which every tensor built by a
// Record is.
func flatten(dst []float64, t tensor.Tensor) error {
	if t == nil {
		return fmt.Errorf("no value")
	}

	if t.Size() != len(dst) {
		return fmt.Errorf("expected %v elements but got %v", len(dst),
			t.Size())
	}

	switch data := t.Data().(type) {
	case []float64:
		copy(dst, data)

	case float64:
		dst[0] = data

	case []float32:
		for i, v := range data {
			dst[i] = float64(v)
		}

	case float32:
		dst[0] = float64(data)

	default:
		return fmt.Errorf("unsupported data type %T", data)
	}

	return nil
}
