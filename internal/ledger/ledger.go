// ledger.go - Append-only public record of the resource machine.
//
// The ledger stores revealed nullifiers, created commitments and the anchor
// history. Commitments feed the Merkle tree; every post-append root becomes
// a valid anchor, so proofs built against older tree states stay verifiable.
// Persisted as a single JSON file; the tree is rebuilt from the commitment
// list on load.

package ledger

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/merkle"
	"resourcemachine/internal/resource"
)

// ErrDoubleSpend is returned when a submitted statement reveals a nullifier
// the ledger has already recorded.
var ErrDoubleSpend = errors.New("ledger: nullifier already recorded")

// ErrUnknownAnchor is returned when a statement references an anchor that
// was never a root of the commitment tree.
var ErrUnknownAnchor = errors.New("ledger: anchor not in history")

// Ledger is the canonical append-only state. Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	state persistedState
	tree  *merkle.CommitmentTree

	nullifiers map[string]bool
	anchors    map[string]bool
}

// persistedState is the JSON shape on disk. Field elements are hex-encoded
// canonical little-endian bytes.
type persistedState struct {
	Nullifiers  []string `json:"nullifiers"`
	Commitments []string `json:"commitments"`
	Anchors     []string `json:"anchors"`
}

// New creates an empty ledger. The empty tree's root is the first valid
// anchor, so ephemeral bootstrap statements can reference it.
func New() *Ledger {
	l := &Ledger{
		tree:       merkle.NewCommitmentTree(),
		nullifiers: make(map[string]bool),
		anchors:    make(map[string]bool),
	}
	l.recordAnchor(resource.Anchor(l.tree.Root()))
	return l
}

// Append records a verified compliance statement: the nullifier joins the
// spent set, the commitment joins the tree, and the new root joins the
// anchor history. The caller verifies the statement's proof first.
func (l *Ledger) Append(st *compliance.Statement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nf := encode(st.Nullifier.Bytes())
	if l.nullifiers[nf] {
		return ErrDoubleSpend
	}

	if _, err := l.tree.Append(st.Commitment.Element()); err != nil {
		return fmt.Errorf("ledger: appending commitment: %w", err)
	}

	l.nullifiers[nf] = true
	l.state.Nullifiers = append(l.state.Nullifiers, nf)
	l.state.Commitments = append(l.state.Commitments, encode(st.Commitment.Bytes()))
	l.recordAnchor(resource.Anchor(l.tree.Root()))
	return nil
}

// HasNullifier reports whether a nullifier has been revealed.
func (l *Ledger) HasNullifier(nf resource.Nullifier) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nullifiers[encode(nf.Bytes())]
}

// KnowsAnchor reports whether an anchor was ever a tree root.
func (l *Ledger) KnowsAnchor(a resource.Anchor) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.anchors[encode(a.Bytes())]
}

// CheckAnchor is KnowsAnchor with an error result for validation paths.
func (l *Ledger) CheckAnchor(a resource.Anchor) error {
	if !l.KnowsAnchor(a) {
		return ErrUnknownAnchor
	}
	return nil
}

// CurrentAnchor returns the present tree root.
func (l *Ledger) CurrentAnchor() resource.Anchor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return resource.Anchor(l.tree.Root())
}

// PathFor returns an authentication path for the commitment at index.
func (l *Ledger) PathFor(index int) (merkle.Path, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.PathFor(index)
}

// Size returns the number of commitments recorded.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Size()
}

// SaveToFile writes the ledger state as indented JSON, overwriting path.
func (l *Ledger) SaveToFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(&l.state)
}

// LoadFromFile reads a persisted ledger and rebuilds the tree and index
// structures from the commitment list.
func LoadFromFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var state persistedState
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		return nil, fmt.Errorf("ledger: decoding %s: %w", path, err)
	}

	l := New()
	for i, cmHex := range state.Commitments {
		raw, err := hex.DecodeString(cmHex)
		if err != nil {
			return nil, fmt.Errorf("ledger: commitment %d: %w", i, err)
		}
		cm, err := resource.CommitmentFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger: commitment %d: %w", i, err)
		}
		if _, err := l.tree.Append(cm.Element()); err != nil {
			return nil, fmt.Errorf("ledger: rebuilding tree: %w", err)
		}
		l.recordAnchor(resource.Anchor(l.tree.Root()))
	}
	for i, nfHex := range state.Nullifiers {
		raw, err := hex.DecodeString(nfHex)
		if err != nil {
			return nil, fmt.Errorf("ledger: nullifier %d: %w", i, err)
		}
		if _, err := resource.NullifierFromBytes(raw); err != nil {
			return nil, fmt.Errorf("ledger: nullifier %d: %w", i, err)
		}
		l.nullifiers[nfHex] = true
	}
	for _, aHex := range state.Anchors {
		l.anchors[aHex] = true
	}
	l.state = state
	return l, nil
}

func (l *Ledger) recordAnchor(a resource.Anchor) {
	key := encode(a.Bytes())
	if !l.anchors[key] {
		l.anchors[key] = true
		l.state.Anchors = append(l.state.Anchors, key)
	}
}

func encode(b [32]byte) string {
	return hex.EncodeToString(b[:])
}
