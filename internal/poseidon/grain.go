// grain.go - Grain LFSR used to derive Poseidon round constants and the MDS
// matrix from the permutation shape. The bit framing and tap positions follow
// the Poseidon reference generator, so constants are reproducible across
// implementations.

package poseidon

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// grain is an 80-bit LFSR. The register is kept in two words; a logical bit
// index i (0 = oldest) lives at physical position 79-i, so the update shifts
// left and inserts the feedback bit at position 0.
//
// Update recurrence, in logical indices: the feedback bit is the XOR of the
// taps {0, 13, 23, 38, 51, 62}.
type grain struct {
	lo uint64 // physical bits 0-63
	hi uint64 // physical bits 64-79 (lower 16 bits used)
}

// newGrain seeds the register from the permutation shape:
//
//	2 bits  field tag (1 = prime field)
//	4 bits  S-box tag (0 = x^alpha)
//	12 bits field size in bits
//	12 bits state width
//	10 bits full rounds
//	10 bits partial rounds
//	30 bits all ones
//
// and then runs 160 update steps to mix before any output is taken.
func newGrain(fieldBits, width, fullRounds, partialRounds int) *grain {
	g := &grain{}

	// Logical bit 0 is physical 79, so the first framing field lands in the
	// top bits and the all-ones run fills the bottom 30.
	g.lo = (1 << 30) - 1
	g.lo |= uint64(partialRounds&0x3FF) << 30
	g.lo |= uint64(fullRounds&0x3FF) << 40
	g.lo |= uint64(width&0xFFF) << 50
	g.lo |= uint64(fieldBits&0x3) << 62

	g.hi = uint64(fieldBits) >> 2 // remaining 10 bits of the field size
	// S-box tag is zero; field tag 1 occupies the two most significant bits.
	g.hi |= 1 << 14

	for i := 0; i < 160; i++ {
		g.next()
	}
	return g
}

func (g *grain) getBit(i int) uint64 {
	if i < 64 {
		return (g.lo >> i) & 1
	}
	return (g.hi >> (i - 64)) & 1
}

// next advances the register one step and returns the feedback bit.
// Physical tap positions {17, 28, 41, 56, 66, 79} are the logical taps
// {62, 51, 38, 23, 13, 0} under the index reversal.
func (g *grain) next() uint64 {
	r := g.getBit(17) ^ g.getBit(28) ^ g.getBit(41) ^ g.getBit(56) ^ g.getBit(66) ^ g.getBit(79)

	carry := (g.lo >> 63) & 1
	g.lo = (g.lo << 1) | r
	g.hi = ((g.hi << 1) | carry) & 0xFFFF

	return r
}

// bit emits one output bit using von Neumann extraction: draw bit pairs and
// discard the pair unless the first bit is 1, in which case the second bit is
// the output. This removes the LFSR's short-range bias.
func (g *grain) bit() uint64 {
	for {
		first := g.next()
		second := g.next()
		if first == 1 {
			return second
		}
	}
}

// readBits draws n output bits, most significant first.
func (g *grain) readBits(n int) *big.Int {
	v := new(big.Int)
	for i := 0; i < n; i++ {
		v.Lsh(v, 1)
		if g.bit() == 1 {
			v.SetBit(v, 0, 1)
		}
	}
	return v
}

// fieldElement draws a field element by rejection sampling: fieldBits output
// bits are interpreted as a big-endian integer and accepted only if the value
// is a canonical representative. Used for round constants.
func (g *grain) fieldElement() fr.Element {
	var e fr.Element
	for {
		v := g.readBits(fr.Bits)
		if v.Cmp(fr.Modulus()) < 0 {
			e.SetBigInt(v)
			return e
		}
	}
}

// fieldElementReduced draws fieldBits output bits and reduces them modulo the
// field size. Used for the MDS construction, which tolerates the reduction
// bias.
func (g *grain) fieldElementReduced() fr.Element {
	var e fr.Element
	v := g.readBits(fr.Bits)
	v.Mod(v, fr.Modulus())
	e.SetBigInt(v)
	return e
}
