// circuit.go - In-circuit resource gadgets. The witness mirrors the native
// Resource field for field; the commitment gadget reproduces the two-block
// absorption exactly, and the packed quantity is range-checked so the layout
// cannot alias the ephemeral bit.

package resource

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"resourcemachine/internal/poseidon"
)

// Var is the witness form of a resource.
type Var struct {
	Logic     frontend.Variable
	Label     frontend.Variable
	Value     frontend.Variable
	Quantity  frontend.Variable
	Nonce     frontend.Variable
	NkCom     frontend.Variable
	Psi       frontend.Variable
	Rcm       frontend.Variable
	Ephemeral frontend.Variable // boolean
}

// Assign fills the witness from a native resource.
func (v *Var) Assign(r *Resource) {
	v.Logic = r.Logic.BigInt(new(big.Int))
	v.Label = r.Label.BigInt(new(big.Int))
	v.Value = r.Value.BigInt(new(big.Int))
	v.Quantity = r.Quantity
	v.Nonce = r.Nonce.BigInt(new(big.Int))
	v.NkCom = r.NkCom.BigInt(new(big.Int))
	v.Psi = r.Psi.BigInt(new(big.Int))
	v.Rcm = r.Rcm.BigInt(new(big.Int))
	if r.Ephemeral {
		v.Ephemeral = 1
	} else {
		v.Ephemeral = 0
	}
}

// packed rebuilds the quantity/flag field in-circuit. The quantity is
// constrained to 64 bits and the flag to a boolean, matching the native
// layout bit for bit.
func (v *Var) packed(api frontend.API) frontend.Variable {
	api.ToBinary(v.Quantity, 64)
	api.AssertIsBoolean(v.Ephemeral)
	shifted := api.Mul(v.Ephemeral, "18446744073709551616") // 2^64
	return api.Add(v.Quantity, shifted)
}

// CommitVar returns the commitment of the witnessed resource.
func (v *Var) CommitVar(api frontend.API) (frontend.Variable, error) {
	identity, err := poseidon.Hash4Var(api, v.Logic, v.Label, v.Value, v.NkCom)
	if err != nil {
		return nil, err
	}
	payload, err := poseidon.Hash4Var(api, v.Nonce, v.Psi, v.packed(api), v.Rcm)
	if err != nil {
		return nil, err
	}
	return poseidon.Hash2Var(api, identity, payload), nil
}

// NullifierVar derives the pure-hash nullifier in-circuit. The curve scheme
// has no circuit form; deployments using it verify nullifiers natively.
func NullifierVar(api frontend.API, nk, rho, psi, cm frontend.Variable) (frontend.Variable, error) {
	return poseidon.Hash4Var(api, nk, rho, psi, cm)
}

// KindVar returns the fungibility tag of the witnessed resource.
func (v *Var) KindVar(api frontend.API) frontend.Variable {
	return poseidon.Hash2Var(api, v.Logic, v.Label)
}
