// tree.go - The persisted commitment tree collaborator. Fixed depth,
// append-only; only occupied nodes are stored, empty positions fall back to
// the precomputed zero-subtree chain so the tree starts at full depth without
// materializing 2^32 nodes.

package merkle

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/poseidon"
)

// CommitmentTree accumulates resource commitments as leaves and serves
// authentication paths against the current root. It is not safe for
// concurrent use; callers serialize access.
type CommitmentTree struct {
	depth  int
	next   int
	levels []map[int]fr.Element
	zeros  []fr.Element
}

// NewCommitmentTree builds an empty tree of the protocol depth.
func NewCommitmentTree() *CommitmentTree {
	return NewCommitmentTreeWithDepth(Depth)
}

// NewCommitmentTreeWithDepth builds an empty tree of an arbitrary depth.
// Shallow trees are used by tests; the protocol itself always runs at Depth.
func NewCommitmentTreeWithDepth(depth int) *CommitmentTree {
	zeros := make([]fr.Element, depth+1)
	for i := 1; i <= depth; i++ {
		zeros[i] = poseidon.Hash2(zeros[i-1], zeros[i-1])
	}
	levels := make([]map[int]fr.Element, depth+1)
	for i := range levels {
		levels[i] = make(map[int]fr.Element)
	}
	return &CommitmentTree{depth: depth, levels: levels, zeros: zeros}
}

// Size returns the number of leaves appended so far.
func (t *CommitmentTree) Size() int { return t.next }

// Append inserts a leaf at the next free index and rehashes the spine up to
// the root. It returns the leaf's index.
func (t *CommitmentTree) Append(leaf fr.Element) (int, error) {
	if t.next >= 1<<uint(t.depth) {
		return 0, fmt.Errorf("merkle: tree full at %d leaves", t.next)
	}
	index := t.next
	t.next++

	t.levels[0][index] = leaf
	idx := index
	for lvl := 0; lvl < t.depth; lvl++ {
		parent := idx / 2
		left := t.node(lvl, parent*2)
		right := t.node(lvl, parent*2+1)
		t.levels[lvl+1][parent] = poseidon.Hash2(left, right)
		idx = parent
	}
	return index, nil
}

// Root returns the current anchor.
func (t *CommitmentTree) Root() fr.Element {
	return t.node(t.depth, 0)
}

// PathFor returns the authentication path for a leaf index against the
// current root.
func (t *CommitmentTree) PathFor(index int) (Path, error) {
	if index < 0 || index >= t.next {
		return nil, fmt.Errorf("merkle: no leaf at index %d", index)
	}
	path := make(Path, t.depth)
	idx := index
	for lvl := 0; lvl < t.depth; lvl++ {
		if idx%2 == 0 {
			path[lvl] = PathEntry{Sibling: t.node(lvl, idx+1)}
		} else {
			path[lvl] = PathEntry{Sibling: t.node(lvl, idx-1), IsRight: true}
		}
		idx /= 2
	}
	return path, nil
}

// node reads a tree position, substituting the zero-subtree value for
// positions never written.
func (t *CommitmentTree) node(lvl, idx int) fr.Element {
	if v, ok := t.levels[lvl][idx]; ok {
		return v
	}
	return t.zeros[lvl]
}
