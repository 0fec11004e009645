// hash.go - The hash facade. Two fixed shapes cover the whole protocol: a
// 2-ary hash over a width-3 state and an up-to-4-ary hash over a width-5
// state. Each shape carries its own domain tag and zero-pads unused slots,
// so the two can never produce colliding digests.

package poseidon

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
)

const (
	widthTwo  = 3 // state width for the 2-ary hash
	widthFour = 5 // state width for the up-to-4-ary hash
)

// Hash2 computes the 2-ary hash of a and b.
func Hash2(a, b fr.Element) fr.Element {
	p, err := Params(widthTwo)
	if err != nil {
		// Width 3 is always supported; reaching this is a programming error.
		panic(err)
	}
	e := NewEngine[fr.Element](Native{}, p)
	e.Absorb(a)
	e.Absorb(b)
	return e.Squeeze()
}

// Hash4 computes the up-to-4-ary hash of inputs, zero-padding unused slots.
func Hash4(inputs ...fr.Element) (fr.Element, error) {
	var zero fr.Element
	if len(inputs) == 0 || len(inputs) > widthFour-1 {
		return zero, fmt.Errorf("poseidon: need 1 to %d inputs, got %d: %w",
			widthFour-1, len(inputs), ErrFullBuffer)
	}
	p, err := Params(widthFour)
	if err != nil {
		return zero, err
	}
	e := NewEngine[fr.Element](Native{}, p)
	for _, in := range inputs {
		if err := e.Absorb(in); err != nil {
			return zero, err
		}
	}
	return e.Squeeze(), nil
}

// Hash2Var is the in-circuit counterpart of Hash2.
func Hash2Var(api frontend.API, a, b frontend.Variable) frontend.Variable {
	p, err := Params(widthTwo)
	if err != nil {
		panic(err)
	}
	e := NewEngine[frontend.Variable](NewCircuit(api), p)
	e.Absorb(a)
	e.Absorb(b)
	return e.Squeeze()
}

// Hash4Var is the in-circuit counterpart of Hash4.
func Hash4Var(api frontend.API, inputs ...frontend.Variable) (frontend.Variable, error) {
	if len(inputs) == 0 || len(inputs) > widthFour-1 {
		return nil, fmt.Errorf("poseidon: need 1 to %d inputs, got %d: %w",
			widthFour-1, len(inputs), ErrFullBuffer)
	}
	p, err := Params(widthFour)
	if err != nil {
		return nil, err
	}
	e := NewEngine[frontend.Variable](NewCircuit(api), p)
	for _, in := range inputs {
		if err := e.Absorb(in); err != nil {
			return nil, err
		}
	}
	return e.Squeeze(), nil
}
