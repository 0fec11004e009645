// types.go - Field-valued protocol quantities and their byte boundaries.
// Each type is one field element with the shared canonical little-endian
// encoding; decoding rejects non-canonical bytes at the boundary.

package resource

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/fieldenc"
)

// Commitment is the binding, hiding digest of one resource.
type Commitment fr.Element

// Nullifier is the one-time tag revealed when a resource is consumed.
type Nullifier fr.Element

// Anchor is a Merkle root of the commitment tree bound into a proof.
type Anchor fr.Element

// NullifierKey is the secret spending capability of a resource owner.
type NullifierKey fr.Element

func (c Commitment) Element() fr.Element   { return fr.Element(c) }
func (n Nullifier) Element() fr.Element    { return fr.Element(n) }
func (a Anchor) Element() fr.Element       { return fr.Element(a) }
func (k NullifierKey) Element() fr.Element { return fr.Element(k) }

func (c Commitment) Bytes() [fieldenc.Size]byte   { return fieldenc.Encode(fr.Element(c)) }
func (n Nullifier) Bytes() [fieldenc.Size]byte    { return fieldenc.Encode(fr.Element(n)) }
func (a Anchor) Bytes() [fieldenc.Size]byte       { return fieldenc.Encode(fr.Element(a)) }
func (k NullifierKey) Bytes() [fieldenc.Size]byte { return fieldenc.Encode(fr.Element(k)) }

func CommitmentFromBytes(b []byte) (Commitment, error) {
	x, err := fieldenc.Decode(b)
	if err != nil {
		return Commitment{}, fmt.Errorf("resource: commitment: %w", err)
	}
	return Commitment(x), nil
}

func NullifierFromBytes(b []byte) (Nullifier, error) {
	x, err := fieldenc.Decode(b)
	if err != nil {
		return Nullifier{}, fmt.Errorf("resource: nullifier: %w", err)
	}
	return Nullifier(x), nil
}

func AnchorFromBytes(b []byte) (Anchor, error) {
	x, err := fieldenc.Decode(b)
	if err != nil {
		return Anchor{}, fmt.Errorf("resource: anchor: %w", err)
	}
	return Anchor(x), nil
}

func NullifierKeyFromBytes(b []byte) (NullifierKey, error) {
	x, err := fieldenc.Decode(b)
	if err != nil {
		return NullifierKey{}, fmt.Errorf("resource: nullifier key: %w", err)
	}
	return NullifierKey(x), nil
}

// Equal reports whether two nullifiers are the same field element.
func (n Nullifier) Equal(m Nullifier) bool {
	a, b := fr.Element(n), fr.Element(m)
	return a.Equal(&b)
}

// Equal reports whether two commitments are the same field element.
func (c Commitment) Equal(d Commitment) bool {
	a, b := fr.Element(c), fr.Element(d)
	return a.Equal(&b)
}

// Equal reports whether two anchors are the same field element.
func (a Anchor) Equal(b Anchor) bool {
	x, y := fr.Element(a), fr.Element(b)
	return x.Equal(&y)
}
