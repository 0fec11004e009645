// circuit.go - In-circuit root recomputation. The direction bit drives a
// conditional select instead of a branch, so the constraint system has the
// same shape at every level regardless of which side the sibling is on.

package merkle

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"resourcemachine/internal/poseidon"
)

// PathVar is the witness form of an authentication path. Both slices have one
// entry per level, leaf first; IsRight entries are constrained boolean.
type PathVar struct {
	Siblings []frontend.Variable
	IsRight  []frontend.Variable
}

// NewPathVar allocates a path witness of the protocol depth.
func NewPathVar() PathVar {
	return PathVar{
		Siblings: make([]frontend.Variable, Depth),
		IsRight:  make([]frontend.Variable, Depth),
	}
}

// Assign fills the witness from a native path.
func (pv *PathVar) Assign(p Path) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for i, e := range p {
		pv.Siblings[i] = e.Sibling.BigInt(new(big.Int))
		if e.IsRight {
			pv.IsRight[i] = 1
		} else {
			pv.IsRight[i] = 0
		}
	}
	return nil
}

// RootVar recomputes the anchor from a leaf and a path inside the circuit.
// At each level the two hash operand orders are selected by the direction
// bit, which keeps the emitted constraints independent of the path taken.
func RootVar(api frontend.API, leaf frontend.Variable, path PathVar) frontend.Variable {
	acc := leaf
	for i := range path.Siblings {
		api.AssertIsBoolean(path.IsRight[i])
		left := api.Select(path.IsRight[i], path.Siblings[i], acc)
		right := api.Select(path.IsRight[i], acc, path.Siblings[i])
		acc = poseidon.Hash2Var(api, left, right)
	}
	return acc
}
