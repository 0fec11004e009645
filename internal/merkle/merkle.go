// merkle.go - Authentication paths and root recomputation for the commitment
// tree. A path lists, leaf first, the sibling at each level together with a
// flag saying whether the current node is the right child. Folding the path
// with the 2-ary hash reproduces the anchor a membership proof binds to.

package merkle

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/fieldenc"
	"resourcemachine/internal/poseidon"
)

// Depth is the protocol tree depth. Every path that crosses a byte boundary
// or enters a proof has exactly this many entries.
const Depth = 32

// EncodedPathSize is the wire size of one path: per level, a 32-byte sibling
// followed by a direction byte.
const EncodedPathSize = Depth * (fieldenc.Size + 1)

// ErrMalformedPath is returned when a path has the wrong length or a
// direction byte outside {0, 1}.
var ErrMalformedPath = errors.New("merkle: malformed authentication path")

// PathEntry is one level of an authentication path. IsRight means the node
// being authenticated is the right child at this level, so the sibling sits
// on the left.
type PathEntry struct {
	Sibling fr.Element
	IsRight bool
}

// Path is an authentication path, ordered leaf to root.
type Path []PathEntry

// Validate checks the path has the protocol depth.
func (p Path) Validate() error {
	if len(p) != Depth {
		return fmt.Errorf("%w: %d entries, want %d", ErrMalformedPath, len(p), Depth)
	}
	return nil
}

// Encode serializes the path. The path must have the protocol depth.
func (p Path) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, EncodedPathSize)
	for _, e := range p {
		sib := fieldenc.Encode(e.Sibling)
		out = append(out, sib[:]...)
		if e.IsRight {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out, nil
}

// DecodePath parses a serialized path, rejecting wrong lengths, bad direction
// bytes and non-canonical siblings before any hashing can happen.
func DecodePath(b []byte) (Path, error) {
	if len(b) != EncodedPathSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedPath, len(b), EncodedPathSize)
	}
	p := make(Path, Depth)
	for i := 0; i < Depth; i++ {
		chunk := b[i*(fieldenc.Size+1):]
		sib, err := fieldenc.Decode(chunk[:fieldenc.Size])
		if err != nil {
			return nil, fmt.Errorf("merkle: sibling %d: %w", i, err)
		}
		switch chunk[fieldenc.Size] {
		case 0:
			p[i] = PathEntry{Sibling: sib}
		case 1:
			p[i] = PathEntry{Sibling: sib, IsRight: true}
		default:
			return nil, fmt.Errorf("%w: direction byte %#x at level %d", ErrMalformedPath, chunk[fieldenc.Size], i)
		}
	}
	return p, nil
}

// Root folds the path over the leaf and returns the resulting anchor. It
// accepts paths of any length; callers holding protocol-depth requirements
// validate before calling.
func Root(leaf fr.Element, path Path) fr.Element {
	acc := leaf
	for _, e := range path {
		if e.IsRight {
			acc = poseidon.Hash2(e.Sibling, acc)
		} else {
			acc = poseidon.Hash2(acc, e.Sibling)
		}
	}
	return acc
}
