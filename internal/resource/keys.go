// keys.go - Nullifier key derivation. The spending capability comes from a
// one-way keyed PRF over caller-supplied seed bytes, domain-separated with a
// fixed 12-byte personalization, then reduced into the scalar field. The
// derivation is independent of the permutation engine.

package resource

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"

	"resourcemachine/internal/poseidon"
)

// nullifierKeyDomain is the 12-byte personalization for key derivation.
var nullifierKeyDomain = []byte("ARM.nullkey.")

// DeriveNullifierKey maps random seed bytes to a nullifier key. The 64-byte
// PRF output is reduced modulo the field size, keeping the reduction bias
// negligible.
func DeriveNullifierKey(seed []byte) (NullifierKey, error) {
	if len(seed) == 0 {
		return NullifierKey{}, fmt.Errorf("resource: empty nullifier key seed")
	}
	h, err := blake2b.New512(nil)
	if err != nil {
		return NullifierKey{}, fmt.Errorf("resource: prf init: %w", err)
	}
	h.Write(nullifierKeyDomain)
	h.Write(seed)
	var k fr.Element
	k.SetBytes(h.Sum(nil))
	return NullifierKey(k), nil
}

// GenerateNullifierKey draws a fresh seed and derives a key from it.
func GenerateNullifierKey() (NullifierKey, error) {
	seed, err := RandomSeed(32)
	if err != nil {
		return NullifierKey{}, err
	}
	return DeriveNullifierKey(seed)
}

// Commit returns the public commitment to a nullifier key, bound into
// resources as NkCom.
func (k NullifierKey) Commit() fr.Element {
	var zero fr.Element
	return poseidon.Hash2(fr.Element(k), zero)
}
