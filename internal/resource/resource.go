// resource.go - The private unit of value and its binding commitment.
//
// A resource carries an identity (logic and label hashes), dynamic data, a
// quantity, a nonce linking it to the resource whose consumption created it,
// a commitment to the owner's nullifier key, and commitment randomness. Only
// the commitment and, at spend time, the nullifier ever become public.

package resource

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/poseidon"
)

// Resource is a private note. Contents stay with the owner; the ledger sees
// commitments and nullifiers only.
type Resource struct {
	Logic     fr.Element // hash of the validity predicate governing this resource
	Label     fr.Element // static application data
	Value     fr.Element // dynamic application data
	Quantity  uint64
	Nonce     fr.Element // rho: the nullifier of the consumed predecessor, or zero
	NkCom     fr.Element // commitment to the owner's nullifier deriving key
	Psi       fr.Element // per-resource randomizer, DefaultPsi unless overridden
	Rcm       fr.Element // commitment randomness
	Ephemeral bool       // ephemeral resources skip the Merkle membership check
}

// New builds a resource with fresh commitment randomness and the default psi
// derivation. Callers targeting a protocol version with an independently
// random psi overwrite the Psi field before committing.
func New(logic, label, value fr.Element, quantity uint64, nonce, nkCom fr.Element) (*Resource, error) {
	var rcm fr.Element
	if _, err := rcm.SetRandom(); err != nil {
		return nil, fmt.Errorf("resource: sampling rcm: %w", err)
	}
	r := &Resource{
		Logic:    logic,
		Label:    label,
		Value:    value,
		Quantity: quantity,
		Nonce:    nonce,
		NkCom:    nkCom,
		Rcm:      rcm,
	}
	r.Psi = DefaultPsi(nonce, rcm)
	return r, nil
}

// DefaultPsi derives the per-resource randomizer from the nonce and the
// commitment randomness.
func DefaultPsi(rho, rcm fr.Element) fr.Element {
	return poseidon.Hash2(rho, rcm)
}

// Packed compresses the quantity and the ephemeral flag into one field
// element: quantity in the low 64 bits, the flag at bit 64. The in-circuit
// commitment gadget range-checks the same layout.
func (r *Resource) Packed() fr.Element {
	v := new(big.Int).SetUint64(r.Quantity)
	if r.Ephemeral {
		v.SetBit(v, 64, 1)
	}
	var out fr.Element
	out.SetBigInt(v)
	return out
}

// Commit returns the binding commitment over all resource fields. The eight
// inputs are absorbed as two 4-ary hashes whose digests are combined with
// the 2-ary hash, identity fields first.
func (r *Resource) Commit() (Commitment, error) {
	identity, err := poseidon.Hash4(r.Logic, r.Label, r.Value, r.NkCom)
	if err != nil {
		return Commitment{}, fmt.Errorf("resource: identity block: %w", err)
	}
	payload, err := poseidon.Hash4(r.Nonce, r.Psi, r.Packed(), r.Rcm)
	if err != nil {
		return Commitment{}, fmt.Errorf("resource: payload block: %w", err)
	}
	return Commitment(poseidon.Hash2(identity, payload)), nil
}

// Kind returns the fungibility tag of a resource: resources with the same
// logic and label are interchangeable for balance purposes.
func (r *Resource) Kind() fr.Element {
	return poseidon.Hash2(r.Logic, r.Label)
}

// RandomSeed draws n bytes from the system entropy source.
func RandomSeed(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("resource: reading entropy: %w", err)
	}
	return b, nil
}
