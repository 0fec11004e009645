package p2p

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/ledger"
	"resourcemachine/internal/resource"
)

// Helper to create a test network of transparent-mode nodes with unique
// ports. Each node gets its own ledger copy.
func setupTestNetwork(t *testing.T, nodeIDs []string, basePort int) map[string]*Node {
	peerDirectory := make(map[string]string)
	for i, id := range nodeIDs {
		peerDirectory[id] = fmt.Sprintf("localhost:%d", basePort+i)
	}
	nodes := make(map[string]*Node)
	var wg sync.WaitGroup
	readyCh := make(chan struct{})
	for id, addr := range peerDirectory {
		nodes[id] = NewNode(id, addr, peerDirectory, ledger.New(), nil, &wg)
	}
	for _, node := range nodes {
		node.StartServer(readyCh)
	}
	for i := 0; i < len(nodes); i++ {
		<-readyCh
	}
	return nodes
}

func shutdownNetwork(nodes map[string]*Node) {
	for _, n := range nodes {
		n.server.Close()
	}
}

// testStatement builds a statement anchored at the node's current anchor.
func testStatement(t *testing.T, n *Node) *compliance.Statement {
	t.Helper()
	var nf, cm fr.Element
	nf.SetRandom()
	cm.SetRandom()
	return &compliance.Statement{
		Anchor:     n.Ledger.CurrentAnchor(),
		Nullifier:  resource.Nullifier(nf),
		Commitment: resource.Commitment(cm),
	}
}

func TestStatementGossip(t *testing.T) {
	nodes := setupTestNetwork(t, []string{"A", "B"}, 9100)
	defer shutdownNetwork(nodes)

	st := testStatement(t, nodes["A"])
	if err := nodes["A"].SubmitStatement(st, nil); err != nil {
		t.Fatalf("SubmitStatement failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for nodes["B"].Ledger.Size() == 0 {
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for statement to reach node B")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if !nodes["B"].NullifierKnown(st.Nullifier) {
		t.Fatal("Node B accepted the statement but did not record its nullifier")
	}
	if !nodes["B"].Ledger.CurrentAnchor().Equal(nodes["A"].Ledger.CurrentAnchor()) {
		t.Fatal("Ledgers diverged after gossip")
	}
}

func TestDoubleSpendRejected(t *testing.T) {
	nodes := setupTestNetwork(t, []string{"A", "B"}, 9200)
	defer shutdownNetwork(nodes)

	st := testStatement(t, nodes["A"])
	if err := nodes["A"].SubmitStatement(st, nil); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// Same nullifier again, re-anchored at the new root.
	replay := *st
	replay.Anchor = nodes["A"].Ledger.CurrentAnchor()
	var cm fr.Element
	cm.SetRandom()
	replay.Commitment = resource.Commitment(cm)
	if err := nodes["A"].SubmitStatement(&replay, nil); err == nil {
		t.Fatal("replayed nullifier accepted")
	}
}

func TestUnknownAnchorRejected(t *testing.T) {
	nodes := setupTestNetwork(t, []string{"A"}, 9300)
	defer shutdownNetwork(nodes)

	st := testStatement(t, nodes["A"])
	var bogus fr.Element
	bogus.SetRandom()
	st.Anchor = resource.Anchor(bogus)
	if err := nodes["A"].SubmitStatement(st, nil); err == nil {
		t.Fatal("statement with unknown anchor accepted")
	}
}

func TestAnchorAnnounce(t *testing.T) {
	nodes := setupTestNetwork(t, []string{"A", "B"}, 9400)
	defer shutdownNetwork(nodes)

	nodes["A"].AnnounceAnchor()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := nodes["B"].PeerAnchor("A"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for anchor announcement")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSendToNonExistentPeer(t *testing.T) {
	nodes := setupTestNetwork(t, []string{"A"}, 9500)
	defer shutdownNetwork(nodes)
	err := nodes["A"].SendMessage("B", "anchor_announce", AnchorAnnouncePayload{SenderID: "A"})
	if err == nil {
		t.Fatal("Expected error when sending to non-existent peer, got nil")
	}
}

func TestStatementPayloadRoundTrip(t *testing.T) {
	var nf, cm fr.Element
	nf.SetRandom()
	cm.SetRandom()
	l := ledger.New()
	st := &compliance.Statement{
		Anchor:     l.CurrentAnchor(),
		Nullifier:  resource.Nullifier(nf),
		Commitment: resource.Commitment(cm),
	}
	proof := []byte{1, 2, 3, 4}

	payload := NewStatementPayload("A", st, proof)
	back, backProof, err := payload.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !back.Nullifier.Equal(st.Nullifier) || !back.Commitment.Equal(st.Commitment) || !back.Anchor.Equal(st.Anchor) {
		t.Fatal("statement does not round-trip through the payload")
	}
	if string(backProof) != string(proof) {
		t.Fatal("proof bytes do not round-trip")
	}

	payload.Nullifier = "zz"
	if _, _, err := payload.Decode(); err == nil {
		t.Fatal("malformed hex accepted")
	}
}
