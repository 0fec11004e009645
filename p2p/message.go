package p2p

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/resource"
)

// --- Custom JSON Marshaling for gnark-crypto types ---

// G1AffineJSON is a wrapper around bn254.G1Affine to implement custom JSON
// marshaling.
type G1AffineJSON struct {
	bn254.G1Affine
}

// MarshalJSON implements the json.Marshaler interface.
func (p G1AffineJSON) MarshalJSON() ([]byte, error) {
	bytes := p.G1Affine.Marshal()
	// Wrap the base64 encoded string in quotes to make it a valid JSON string.
	return []byte(`"` + base64.StdEncoding.EncodeToString(bytes) + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *G1AffineJSON) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string for G1AffineJSON")
	}
	b, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	return p.G1Affine.Unmarshal(b)
}

// Message is the generic envelope for any message sent over the network.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// StatementPayload carries one proven compliance statement. Field elements
// travel as hex of their canonical encoding, the proof as base64.
type StatementPayload struct {
	SenderID   string       `json:"senderId"`
	Anchor     string       `json:"anchor"`
	Nullifier  string       `json:"nullifier"`
	Commitment string       `json:"commitment"`
	Delta      G1AffineJSON `json:"delta"`
	Proof      string       `json:"proof"`
}

// AnchorAnnouncePayload advertises a node's current anchor to its peers.
type AnchorAnnouncePayload struct {
	SenderID string `json:"senderId"`
	Anchor   string `json:"anchor"`
}

// NewStatementPayload serializes a statement and proof for gossip.
func NewStatementPayload(senderID string, st *compliance.Statement, proof []byte) StatementPayload {
	anchor := st.Anchor.Bytes()
	nf := st.Nullifier.Bytes()
	cm := st.Commitment.Bytes()
	return StatementPayload{
		SenderID:   senderID,
		Anchor:     hex.EncodeToString(anchor[:]),
		Nullifier:  hex.EncodeToString(nf[:]),
		Commitment: hex.EncodeToString(cm[:]),
		Delta:      G1AffineJSON{st.Delta},
		Proof:      base64.StdEncoding.EncodeToString(proof),
	}
}

// Decode reconstructs the statement and proof, rejecting malformed or
// non-canonical encodings at the boundary.
func (p *StatementPayload) Decode() (*compliance.Statement, []byte, error) {
	anchorRaw, err := hex.DecodeString(p.Anchor)
	if err != nil {
		return nil, nil, fmt.Errorf("p2p: anchor hex: %w", err)
	}
	anchor, err := resource.AnchorFromBytes(anchorRaw)
	if err != nil {
		return nil, nil, err
	}

	nfRaw, err := hex.DecodeString(p.Nullifier)
	if err != nil {
		return nil, nil, fmt.Errorf("p2p: nullifier hex: %w", err)
	}
	nf, err := resource.NullifierFromBytes(nfRaw)
	if err != nil {
		return nil, nil, err
	}

	cmRaw, err := hex.DecodeString(p.Commitment)
	if err != nil {
		return nil, nil, fmt.Errorf("p2p: commitment hex: %w", err)
	}
	cm, err := resource.CommitmentFromBytes(cmRaw)
	if err != nil {
		return nil, nil, err
	}

	proof, err := base64.StdEncoding.DecodeString(p.Proof)
	if err != nil {
		return nil, nil, fmt.Errorf("p2p: proof base64: %w", err)
	}

	return &compliance.Statement{
		Anchor:     anchor,
		Nullifier:  nf,
		Commitment: cm,
		Delta:      p.Delta.G1Affine,
	}, proof, nil
}
