package merkle

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"

	"resourcemachine/internal/fieldenc"
)

func randomPath(n int) Path {
	p := make(Path, n)
	for i := range p {
		p[i].Sibling.SetRandom()
		p[i].IsRight = rand.Intn(2) == 1
	}
	return p
}

func TestRootDeterministic(t *testing.T) {
	var leaf fr.Element
	leaf.SetRandom()
	path := randomPath(Depth)

	first := Root(leaf, path)
	for i := 0; i < 5; i++ {
		again := Root(leaf, path)
		if !again.Equal(&first) {
			t.Fatal("root changed across repeated calls")
		}
	}
}

// TestRootSensitivity mutates one path component at a time and checks the
// root always moves.
func TestRootSensitivity(t *testing.T) {
	var leaf fr.Element
	leaf.SetRandom()
	path := randomPath(Depth)
	base := Root(leaf, path)

	for trial := 0; trial < 100; trial++ {
		mutated := append(Path(nil), path...)
		lvl := rand.Intn(Depth)
		if trial%2 == 0 {
			mutated[lvl].IsRight = !mutated[lvl].IsRight
		} else {
			mutated[lvl].Sibling.SetRandom()
		}
		got := Root(leaf, mutated)
		if got.Equal(&base) {
			t.Fatalf("mutation %d at level %d left the root unchanged", trial, lvl)
		}
	}
}

func TestPathCodec(t *testing.T) {
	path := randomPath(Depth)
	enc, err := path.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != EncodedPathSize {
		t.Fatalf("encoded %d bytes, want %d", len(enc), EncodedPathSize)
	}
	dec, err := DecodePath(enc)
	if err != nil {
		t.Fatal(err)
	}
	for i := range path {
		if !dec[i].Sibling.Equal(&path[i].Sibling) || dec[i].IsRight != path[i].IsRight {
			t.Fatalf("entry %d does not round-trip", i)
		}
	}
}

func TestPathCodecRejections(t *testing.T) {
	short := randomPath(Depth - 1)
	if _, err := short.Encode(); !errors.Is(err, ErrMalformedPath) {
		t.Fatalf("short path encoded, err = %v", err)
	}

	if _, err := DecodePath(make([]byte, EncodedPathSize-1)); !errors.Is(err, ErrMalformedPath) {
		t.Fatalf("truncated bytes accepted, err = %v", err)
	}

	good, err := randomPath(Depth).Encode()
	if err != nil {
		t.Fatal(err)
	}

	bad := append([]byte(nil), good...)
	bad[fieldenc.Size] = 2 // first direction byte
	if _, err := DecodePath(bad); !errors.Is(err, ErrMalformedPath) {
		t.Fatalf("direction byte 2 accepted, err = %v", err)
	}

	// Overwrite the first sibling with a value above the modulus.
	bad = append([]byte(nil), good...)
	for i := 0; i < fieldenc.Size; i++ {
		bad[i] = 0xff
	}
	if _, err := DecodePath(bad); !errors.Is(err, fieldenc.ErrInvalidEncoding) {
		t.Fatalf("non-canonical sibling accepted, err = %v", err)
	}
}

func TestCommitmentTreeEndToEnd(t *testing.T) {
	tree := NewCommitmentTreeWithDepth(4)
	leaves := make([]fr.Element, 16)
	for i := range leaves {
		leaves[i].SetRandom()
		idx, err := tree.Append(leaves[i])
		if err != nil {
			t.Fatal(err)
		}
		if idx != i {
			t.Fatalf("leaf %d landed at index %d", i, idx)
		}
	}

	path, err := tree.PathFor(5)
	if err != nil {
		t.Fatal(err)
	}
	root := Root(leaves[5], path)
	want := tree.Root()
	if !root.Equal(&want) {
		t.Fatal("recomputed root disagrees with the tree's tracked root")
	}

	if _, err := tree.Append(leaves[0]); err == nil {
		t.Fatal("expected full-tree error at 16 leaves of depth 4")
	}
	if _, err := tree.PathFor(16); err == nil {
		t.Fatal("expected error for an index past the last leaf")
	}
}

func TestCommitmentTreePathsStayValid(t *testing.T) {
	tree := NewCommitmentTree()
	var a, b fr.Element
	a.SetRandom()
	b.SetRandom()

	ia, err := tree.Append(a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Append(b); err != nil {
		t.Fatal(err)
	}

	// A path fetched after later appends authenticates against the new root.
	path, err := tree.PathFor(ia)
	if err != nil {
		t.Fatal(err)
	}
	if err := path.Validate(); err != nil {
		t.Fatal(err)
	}
	root := Root(a, path)
	want := tree.Root()
	if !root.Equal(&want) {
		t.Fatal("path for an old leaf does not reach the current root")
	}
}

type rootCircuit struct {
	Leaf frontend.Variable
	Path PathVar
	Root frontend.Variable `gnark:",public"`
}

func (c *rootCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Root, RootVar(api, c.Leaf, c.Path))
	return nil
}

func newRootCircuit(depth int) *rootCircuit {
	return &rootCircuit{Path: PathVar{
		Siblings: make([]frontend.Variable, depth),
		IsRight:  make([]frontend.Variable, depth),
	}}
}

func TestRootVarMatchesNative(t *testing.T) {
	const depth = 4
	var leaf fr.Element
	leaf.SetRandom()
	path := randomPath(depth)
	root := Root(leaf, path)

	assignment := newRootCircuit(depth)
	assignment.Leaf = leaf.BigInt(new(big.Int))
	assignment.Root = root.BigInt(new(big.Int))
	for i, e := range path {
		assignment.Path.Siblings[i] = e.Sibling.BigInt(new(big.Int))
		if e.IsRight {
			assignment.Path.IsRight[i] = 1
		} else {
			assignment.Path.IsRight[i] = 0
		}
	}
	if err := test.IsSolved(newRootCircuit(depth), assignment, ecc.BN254.ScalarField()); err != nil {
		t.Fatalf("circuit unsatisfied on a valid path: %v", err)
	}

	// Flip one direction bit: the recomputed root must no longer match.
	assignment.Path.IsRight[2] = 1
	if path[2].IsRight {
		assignment.Path.IsRight[2] = 0
	}
	if err := test.IsSolved(newRootCircuit(depth), assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatal("circuit accepted a flipped direction bit")
	}

	// A non-boolean direction value must be rejected outright.
	assignment.Path.IsRight[2] = 2
	if err := test.IsSolved(newRootCircuit(depth), assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatal("circuit accepted a non-boolean direction")
	}
}

func TestPathVarAssign(t *testing.T) {
	path := randomPath(Depth)
	pv := NewPathVar()
	if err := pv.Assign(path); err != nil {
		t.Fatalf("assigning a valid path: %v", err)
	}
	for i, e := range path {
		got, ok := pv.Siblings[i].(*big.Int)
		if !ok || got == nil {
			t.Fatalf("level %d: sibling assigned as %T, want *big.Int", i, pv.Siblings[i])
		}
		if got.Cmp(e.Sibling.BigInt(new(big.Int))) != 0 {
			t.Fatalf("level %d: sibling value does not round-trip", i)
		}
		bit, ok := pv.IsRight[i].(int)
		if !ok || (bit != 0 && bit != 1) {
			t.Fatalf("level %d: direction assigned as %v, want 0 or 1", i, pv.IsRight[i])
		}
		if (bit == 1) != e.IsRight {
			t.Fatalf("level %d: direction bit does not match the path", i)
		}
	}

	if err := pv.Assign(path[:Depth-1]); err == nil {
		t.Fatal("assigned a short path")
	}
}
