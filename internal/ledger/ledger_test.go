package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/resource"
)

func randomStatement(t *testing.T) *compliance.Statement {
	t.Helper()
	var nf, cm fr.Element
	nf.SetRandom()
	cm.SetRandom()
	return &compliance.Statement{
		Nullifier:  resource.Nullifier(nf),
		Commitment: resource.Commitment(cm),
	}
}

func TestAppendAndDoubleSpend(t *testing.T) {
	l := New()
	st := randomStatement(t)

	if err := l.Append(st); err != nil {
		t.Fatal(err)
	}
	if !l.HasNullifier(st.Nullifier) {
		t.Fatal("appended nullifier not recorded")
	}
	if l.Size() != 1 {
		t.Fatalf("size = %d, want 1", l.Size())
	}

	if err := l.Append(st); !errors.Is(err, ErrDoubleSpend) {
		t.Fatalf("expected ErrDoubleSpend, got %v", err)
	}
}

func TestAnchorHistory(t *testing.T) {
	l := New()
	genesis := l.CurrentAnchor()
	if !l.KnowsAnchor(genesis) {
		t.Fatal("genesis anchor missing from history")
	}

	st := randomStatement(t)
	if err := l.Append(st); err != nil {
		t.Fatal(err)
	}
	next := l.CurrentAnchor()
	if next.Equal(genesis) {
		t.Fatal("anchor did not move after an append")
	}

	// Old anchors remain valid.
	if !l.KnowsAnchor(genesis) || !l.KnowsAnchor(next) {
		t.Fatal("anchor history incomplete")
	}

	var bogusEl fr.Element
	bogusEl.SetRandom()
	if err := l.CheckAnchor(resource.Anchor(bogusEl)); !errors.Is(err, ErrUnknownAnchor) {
		t.Fatalf("expected ErrUnknownAnchor, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if err := l.Append(randomStatement(t)); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := l.SaveToFile(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Size() != l.Size() {
		t.Fatalf("loaded size %d, want %d", loaded.Size(), l.Size())
	}
	if !loaded.CurrentAnchor().Equal(l.CurrentAnchor()) {
		t.Fatal("tree root changed across persistence")
	}
	if !loaded.KnowsAnchor(l.CurrentAnchor()) {
		t.Fatal("anchor history lost across persistence")
	}
}

func TestPathsAgainstLedgerTree(t *testing.T) {
	l := New()
	st := randomStatement(t)
	if err := l.Append(st); err != nil {
		t.Fatal(err)
	}
	path, err := l.PathFor(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := path.Validate(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.PathFor(1); err == nil {
		t.Fatal("expected error for a path past the last commitment")
	}
}
