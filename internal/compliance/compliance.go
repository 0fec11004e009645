// compliance.go - The compliance invariant. One consumed resource and one
// created resource form a statement: the anchor its membership proof is
// checked against, the consumed resource's nullifier, the created resource's
// commitment, and a value-balance delta. The chaining rule requires the
// created resource's nonce to equal the consumed resource's nullifier, so
// resource histories form an unforgeable chain.

package compliance

import (
	"errors"
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/merkle"
	"resourcemachine/internal/resource"
)

// ErrInconsistentNonce is returned when the created resource's nonce does
// not equal the consumed resource's nullifier.
var ErrInconsistentNonce = errors.New("compliance: created nonce does not chain to the consumed nullifier")

// ErrKeyMismatch is returned when the nullifier key does not open the
// consumed resource's key commitment.
var ErrKeyMismatch = errors.New("compliance: nullifier key does not open the resource's key commitment")

// Statement is the public part of one compliance unit.
type Statement struct {
	Anchor     resource.Anchor
	Nullifier  resource.Nullifier
	Commitment resource.Commitment
	Delta      bn254.G1Affine
}

// Witness is the private input to statement construction and proving.
type Witness struct {
	Consumed *resource.Resource
	// Path authenticates the consumed resource's commitment. Ignored for
	// ephemeral resources, which instead take Anchor as given.
	Path   merkle.Path
	Anchor resource.Anchor
	Nk     resource.NullifierKey
	Scheme resource.Scheme

	Created *resource.Resource

	// Rcv blinds the value-balance delta.
	Rcv fr.Element
}

// Build derives the public statement from a witness, enforcing the protocol
// checks natively. Proof-backed verification of the same facts happens in
// the circuit; this path serves transparent validation and debugging.
func Build(w *Witness) (*Statement, error) {
	if w.Consumed == nil || w.Created == nil {
		return nil, fmt.Errorf("compliance: witness missing a resource")
	}

	if want := w.Nk.Commit(); !want.Equal(&w.Consumed.NkCom) {
		return nil, ErrKeyMismatch
	}

	cmIn, err := w.Consumed.Commit()
	if err != nil {
		return nil, err
	}

	var anchor resource.Anchor
	if w.Consumed.Ephemeral {
		anchor = w.Anchor
	} else {
		if err := w.Path.Validate(); err != nil {
			return nil, err
		}
		anchor = resource.Anchor(merkle.Root(cmIn.Element(), w.Path))
	}

	nf, err := resource.DeriveNullifier(w.Scheme, w.Nk, w.Consumed.Nonce, w.Consumed.Psi, cmIn)
	if err != nil {
		return nil, err
	}

	cmOut, err := w.Created.Commit()
	if err != nil {
		return nil, err
	}

	nfEl := nf.Element()
	if !nfEl.Equal(&w.Created.Nonce) {
		return nil, ErrInconsistentNonce
	}

	delta, err := resource.Delta(w.Consumed, w.Created, w.Rcv)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Anchor:     anchor,
		Nullifier:  nf,
		Commitment: cmOut,
		Delta:      delta,
	}, nil
}

// Check re-derives the statement from the witness and compares it to a
// claimed statement. It returns nil only if every public component matches.
func Check(claimed *Statement, w *Witness) error {
	derived, err := Build(w)
	if err != nil {
		return err
	}
	if !derived.Anchor.Equal(claimed.Anchor) {
		return fmt.Errorf("compliance: anchor mismatch")
	}
	if !derived.Nullifier.Equal(claimed.Nullifier) {
		return fmt.Errorf("compliance: nullifier mismatch")
	}
	if !derived.Commitment.Equal(claimed.Commitment) {
		return fmt.Errorf("compliance: commitment mismatch")
	}
	if !derived.Delta.Equal(&claimed.Delta) {
		return fmt.Errorf("compliance: delta mismatch")
	}
	return nil
}
