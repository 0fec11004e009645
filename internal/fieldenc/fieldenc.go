// fieldenc.go - Canonical byte encoding for field elements. Every
// field-valued quantity that crosses a byte boundary (nullifiers, anchors,
// commitments, keys, Merkle siblings) uses the same fixed-width little-endian
// form, and decoding rejects anything that is not a canonical representative.

package fieldenc

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Size is the encoded length of one field element in bytes.
const Size = fr.Bytes

// ErrInvalidEncoding is returned when bytes do not decode to a canonical
// field element: wrong length, or a value at or above the modulus.
var ErrInvalidEncoding = errors.New("fieldenc: not a canonical field encoding")

// Encode returns the 32-byte little-endian canonical encoding of x.
func Encode(x fr.Element) [Size]byte {
	be := x.Bytes()
	var out [Size]byte
	for i := 0; i < Size; i++ {
		out[i] = be[Size-1-i]
	}
	return out
}

// Decode parses a 32-byte little-endian encoding, rejecting non-canonical
// values. The slice form exists for wire payloads of uncertain length.
func Decode(b []byte) (fr.Element, error) {
	var x fr.Element
	if len(b) != Size {
		return x, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidEncoding, len(b), Size)
	}
	be := make([]byte, Size)
	for i := 0; i < Size; i++ {
		be[i] = b[Size-1-i]
	}
	if err := x.SetBytesCanonical(be); err != nil {
		return x, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return x, nil
}
