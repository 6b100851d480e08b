package gofit

import "fmt"

// Dict is an ordered collection of uniquely named parameters. Iteration
// always follows insertion order, so the flat layout a Flattener builds
// from a Dict is reproducible.
//
// A Dict holds handles, not values: replacing a parameter's value through
// its Param mutates state shared with every other holder of the handle.
type Dict struct {
	names  []string
	params map[string]Param
}

// NewDict returns a Dict holding params in the given order.
func NewDict(params ...Param) (*Dict, error) {
	d := &Dict{params: make(map[string]Param)}

	for _, p := range params {
		if err := d.Add(p); err != nil {
			return nil, fmt.Errorf("newDict: %v", err)
		}
	}

	return d, nil
}

// Add appends p to the collection. The parameter's name must be non-empty
// and not already in use.
func (d *Dict) Add(p Param) error {
	if p == nil {
		return fmt.Errorf("add: cannot add a nil parameter")
	}

	name := p.Name()
	if name == "" {
		return fmt.Errorf("add: parameter has no name")
	}

	if _, ok := d.params[name]; ok {
		return fmt.Errorf("add: parameter %v already exists", name)
	}

	if d.params == nil {
		d.params = make(map[string]Param)
	}
	d.names = append(d.names, name)
	d.params[name] = p

	return nil
}

// Get returns the parameter stored under name
func (d *Dict) Get(name string) (Param, bool) {
	p, ok := d.params[name]
	return p, ok
}

// Len returns the number of parameters in the collection
func (d *Dict) Len() int { return len(d.names) }

// Names returns the parameter names in insertion order
func (d *Dict) Names() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)

	return names
}

// Params returns the parameters in insertion order
func (d *Dict) Params() []Param {
	params := make([]Param, 0, len(d.names))
	for _, name := range d.names {
		params = append(params, d.params[name])
	}

	return params
}
