package p2p

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/ledger"
	"resourcemachine/internal/resource"
)

// Node is one resource-machine participant. It maintains its own copy of
// the ledger, accepts proven compliance statements from peers, and gossips
// accepted statements onward.
type Node struct {
	ID        string
	Address   string
	Peers     map[string]string // Map of Node ID to its address
	server    *http.Server
	waitGroup *sync.WaitGroup

	// Ledger and verification state. A nil verifying key puts the node in
	// transparent mode: statements are validated against the ledger but
	// proofs are not checked. Used by tests and trusted-relay setups.
	Ledger *ledger.Ledger
	vk     groth16.VerifyingKey

	anchorMutex sync.Mutex
	peerAnchors map[string]string // last anchor announced by each peer
}

// NewNode creates and initializes a new Node around an existing ledger.
func NewNode(id, address string, peers map[string]string, l *ledger.Ledger, vk groth16.VerifyingKey, wg *sync.WaitGroup) *Node {
	return &Node{
		ID:          id,
		Address:     address,
		Peers:       peers,
		waitGroup:   wg,
		Ledger:      l,
		vk:          vk,
		peerAnchors: make(map[string]string),
	}
}

// messageHandler is the HTTP handler for receiving messages.
// It decodes the message envelope and then processes the payload based on
// its type.
func (n *Node) messageHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		log.Printf("[%s] Received a bad request: %v", n.ID, err)
		return
	}

	log.Printf("[%s] Received message of type '%s'", n.ID, msg.Type)

	switch msg.Type {
	case "submit_statement":
		var payload StatementPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Printf("[%s] Error unmarshalling StatementPayload: %v", n.ID, err)
			http.Error(w, "Malformed statement", http.StatusBadRequest)
			return
		}
		if err := n.handleStatement(payload); err != nil {
			log.Printf("[%s] Rejected statement from %s: %v", n.ID, payload.SenderID, err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

	case "anchor_announce":
		var payload AnchorAnnouncePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Printf("[%s] Error unmarshalling AnchorAnnouncePayload: %v", n.ID, err)
			return
		}
		n.handleAnchorAnnounce(payload)

	default:
		log.Printf("[%s] Received unknown message type: %s", n.ID, msg.Type)
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Message received")
}

// handleStatement validates a gossiped statement and appends it to the
// local ledger.
// Steps:
//  1. Decode the payload, rejecting non-canonical encodings
//  2. Check the anchor against the ledger's history
//  3. Check the nullifier has not been revealed before
//  4. Verify the Groth16 proof (skipped in transparent mode)
//  5. Append and announce the new anchor to peers
func (n *Node) handleStatement(payload StatementPayload) error {
	st, proof, err := payload.Decode()
	if err != nil {
		return err
	}

	if err := n.Ledger.CheckAnchor(st.Anchor); err != nil {
		return err
	}
	if n.Ledger.HasNullifier(st.Nullifier) {
		return ledger.ErrDoubleSpend
	}
	if n.vk != nil {
		if err := compliance.Verify(n.vk, st, proof); err != nil {
			return err
		}
	}
	if err := n.Ledger.Append(st); err != nil {
		return err
	}

	log.Printf("[%s] Accepted statement from %s, ledger now holds %d commitments",
		n.ID, payload.SenderID, n.Ledger.Size())

	go n.AnnounceAnchor()
	return nil
}

// handleAnchorAnnounce records the announcing peer's anchor. Divergence
// from our own anchor indicates the peer saw statements we have not.
func (n *Node) handleAnchorAnnounce(payload AnchorAnnouncePayload) {
	n.anchorMutex.Lock()
	defer n.anchorMutex.Unlock()

	n.peerAnchors[payload.SenderID] = payload.Anchor

	our := n.Ledger.CurrentAnchor().Bytes()
	if fmt.Sprintf("%x", our) != payload.Anchor {
		log.Printf("[%s] Peer %s is at a different anchor", n.ID, payload.SenderID)
	}
}

// SubmitStatement validates and appends a locally built statement, then
// gossips it to every peer.
func (n *Node) SubmitStatement(st *compliance.Statement, proof []byte) error {
	if err := n.Ledger.CheckAnchor(st.Anchor); err != nil {
		return err
	}
	if n.vk != nil {
		if err := compliance.Verify(n.vk, st, proof); err != nil {
			return err
		}
	}
	if err := n.Ledger.Append(st); err != nil {
		return err
	}

	payload := NewStatementPayload(n.ID, st, proof)
	for peerID := range n.Peers {
		if err := n.SendMessage(peerID, "submit_statement", payload); err != nil {
			log.Printf("[%s] Error gossiping statement to %s: %v", n.ID, peerID, err)
		}
	}
	return nil
}

// AnnounceAnchor sends the current anchor to every peer.
func (n *Node) AnnounceAnchor() {
	anchor := n.Ledger.CurrentAnchor().Bytes()
	payload := AnchorAnnouncePayload{
		SenderID: n.ID,
		Anchor:   fmt.Sprintf("%x", anchor),
	}
	for peerID := range n.Peers {
		if err := n.SendMessage(peerID, "anchor_announce", payload); err != nil {
			log.Printf("[%s] Error announcing anchor to %s: %v", n.ID, peerID, err)
		}
	}
}

// PeerAnchor returns the last anchor a peer announced, if any.
func (n *Node) PeerAnchor(peerID string) (string, bool) {
	n.anchorMutex.Lock()
	defer n.anchorMutex.Unlock()
	a, ok := n.peerAnchors[peerID]
	return a, ok
}

// NullifierKnown exposes the ledger's spent set for transparent validators.
func (n *Node) NullifierKnown(nf resource.Nullifier) bool {
	return n.Ledger.HasNullifier(nf)
}

// StartServer starts the node's HTTP server in a new goroutine.
// It signals on the 'ready' channel once the server is actively listening.
func (n *Node) StartServer(ready chan<- struct{}) {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", n.messageHandler)

	n.server = &http.Server{
		Addr:    n.Address,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", n.Address)
	if err != nil {
		log.Fatalf("[%s] failed to listen: %v", n.ID, err)
	}

	n.waitGroup.Add(1)
	go func() {
		defer n.waitGroup.Done()
		log.Printf("[%s] Server starting on %s", n.ID, n.Address)

		// Signal that the server is up and ready
		ready <- struct{}{}

		if err := n.server.Serve(listener); err != http.ErrServerClosed {
			log.Fatalf("[%s] Server failed: %v", n.ID, err)
		}
		log.Printf("[%s] Server stopped.", n.ID)
	}()
}

// SendMessage sends a message to another node in the network.
// The payload can be any struct that is marshallable to JSON.
func (n *Node) SendMessage(targetID, messageType string, payload interface{}) error {
	targetAddress, ok := n.Peers[targetID]
	if !ok {
		return fmt.Errorf("peer '%s' not found in directory", targetID)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	msg := Message{
		Type:     messageType,
		Payload:  payloadBytes,
		SenderID: n.ID,
	}

	messageBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message envelope: %v", err)
	}

	log.Printf("[%s] Sending message of type '%s' to %s at %s", n.ID, messageType, targetID, targetAddress)
	req, err := http.NewRequest("POST", "http://"+targetAddress+"/message", bytes.NewBuffer(messageBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned non-OK status: %s", resp.Status)
	}

	return nil
}
