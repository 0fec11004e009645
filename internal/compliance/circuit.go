// circuit.go - The compliance circuit. Proves, without revealing either
// resource: the consumed commitment sits under the anchor (or the resource
// is ephemeral and the anchor is taken as given), the published nullifier is
// correctly derived with a key opening the resource's key commitment, the
// published commitment binds the created resource, and the created nonce
// chains to the nullifier. Only the pure-hash nullifier scheme has a circuit
// form.

package compliance

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"resourcemachine/internal/merkle"
	"resourcemachine/internal/poseidon"
	"resourcemachine/internal/resource"
)

// Circuit is the gnark form of one compliance unit. Anchor, Nullifier and
// Commitment are public; everything else is private witness.
type Circuit struct {
	Anchor     frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	Consumed resource.Var
	Path     merkle.PathVar
	Nk       frontend.Variable
	Created  resource.Var
}

// NewCircuit allocates a circuit with the protocol-depth path.
func NewCircuit() *Circuit {
	return &Circuit{Path: merkle.NewPathVar()}
}

func (c *Circuit) Define(api frontend.API) error {
	// Step 1: the nullifier key must open the consumed resource's key
	// commitment.
	api.AssertIsEqual(c.Consumed.NkCom, poseidon.Hash2Var(api, c.Nk, 0))

	// Step 2: recompute the consumed commitment and its tree root. For
	// ephemeral resources the root is discarded in favor of the public
	// anchor; the select keeps the constraint shape identical either way.
	cmIn, err := c.Consumed.CommitVar(api)
	if err != nil {
		return err
	}
	root := merkle.RootVar(api, cmIn, c.Path)
	anchor := api.Select(c.Consumed.Ephemeral, c.Anchor, root)
	api.AssertIsEqual(c.Anchor, anchor)

	// Step 3: nullifier derivation over the consumed resource.
	nf, err := resource.NullifierVar(api, c.Nk, c.Consumed.Nonce, c.Consumed.Psi, cmIn)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Nullifier, nf)

	// Step 4: the created resource's commitment is the published one.
	cmOut, err := c.Created.CommitVar(api)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Commitment, cmOut)

	// Step 5: chaining. The created nonce is the consumed nullifier.
	api.AssertIsEqual(c.Created.Nonce, nf)

	return nil
}

// Assign builds the full witness assignment for proving.
func Assign(st *Statement, w *Witness) (*Circuit, error) {
	c := NewCircuit()

	anchorEl := st.Anchor.Element()
	nfEl := st.Nullifier.Element()
	cmEl := st.Commitment.Element()
	c.Anchor = anchorEl.BigInt(new(big.Int))
	c.Nullifier = nfEl.BigInt(new(big.Int))
	c.Commitment = cmEl.BigInt(new(big.Int))

	c.Consumed.Assign(w.Consumed)
	c.Created.Assign(w.Created)
	nkEl := w.Nk.Element()
	c.Nk = nkEl.BigInt(new(big.Int))

	path := w.Path
	if w.Consumed.Ephemeral {
		// The path is unconstrained for ephemeral resources but the witness
		// still needs protocol-depth values.
		path = make(merkle.Path, merkle.Depth)
	}
	if err := c.Path.Assign(path); err != nil {
		return nil, err
	}
	return c, nil
}

// AssignPublic builds the verifier-side assignment: public inputs only.
func AssignPublic(st *Statement) *Circuit {
	c := NewCircuit()
	anchorEl := st.Anchor.Element()
	nfEl := st.Nullifier.Element()
	cmEl := st.Commitment.Element()
	c.Anchor = anchorEl.BigInt(new(big.Int))
	c.Nullifier = nfEl.BigInt(new(big.Int))
	c.Commitment = cmEl.BigInt(new(big.Int))
	return c
}
