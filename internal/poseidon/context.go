// context.go - Evaluation contexts. The permutation is written once against
// this small capability set; the native context computes field values with no
// side effects, the circuit context performs the same operations through the
// gnark frontend so every multiplication lands in the constraint system.

package poseidon

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
)

// Context is the arithmetic the permutation needs from its evaluation mode.
type Context[E any] interface {
	Constant(c fr.Element) E
	Zero() E
	Add(a, b E) E
	AddConstant(a E, c fr.Element) E
	Mul(a, b E) E
	MulConstant(a E, c fr.Element) E
}

// Native evaluates over fr.Element values directly.
type Native struct{}

func (Native) Constant(c fr.Element) fr.Element { return c }

func (Native) Zero() fr.Element {
	var z fr.Element
	return z
}

func (Native) Add(a, b fr.Element) fr.Element {
	var r fr.Element
	r.Add(&a, &b)
	return r
}

func (Native) AddConstant(a fr.Element, c fr.Element) fr.Element {
	var r fr.Element
	r.Add(&a, &c)
	return r
}

func (Native) Mul(a, b fr.Element) fr.Element {
	var r fr.Element
	r.Mul(&a, &b)
	return r
}

func (Native) MulConstant(a fr.Element, c fr.Element) fr.Element {
	var r fr.Element
	r.Mul(&a, &c)
	return r
}

// Circuit evaluates over frontend variables, registering a constraint for
// every multiplication of two variables. Constant folding stays linear.
type Circuit struct {
	api frontend.API
}

func NewCircuit(api frontend.API) Circuit {
	return Circuit{api: api}
}

func (c Circuit) Constant(k fr.Element) frontend.Variable {
	return k.BigInt(new(big.Int))
}

func (c Circuit) Zero() frontend.Variable { return 0 }

func (c Circuit) Add(a, b frontend.Variable) frontend.Variable {
	return c.api.Add(a, b)
}

func (c Circuit) AddConstant(a frontend.Variable, k fr.Element) frontend.Variable {
	return c.api.Add(a, k.BigInt(new(big.Int)))
}

func (c Circuit) Mul(a, b frontend.Variable) frontend.Variable {
	return c.api.Mul(a, b)
}

func (c Circuit) MulConstant(a frontend.Variable, k fr.Element) frontend.Variable {
	return c.api.Mul(a, k.BigInt(new(big.Int)))
}
