// transaction.go - A transaction bundles compliance units and proves value
// balance. Each unit carries one statement and its proof; units are
// independent, so proving and verification fan out across workers. The
// summed deltas of all units must open to the transaction's total blinding
// scalar, which shows quantities balanced per kind without revealing them.

package transaction

import (
	"context"
	"errors"
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"golang.org/x/sync/errgroup"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/resource"
)

// ErrUnbalanced is returned when the summed deltas do not open to the
// transaction's blinding total.
var ErrUnbalanced = errors.New("transaction: value balance check failed")

// Unit is one proven compliance statement.
type Unit struct {
	Statement *compliance.Statement
	Proof     []byte
}

// Transaction is the submittable object: proven units plus the opening
// scalar for the aggregate delta.
type Transaction struct {
	Units    []*Unit
	RcvTotal fr.Element
}

// Build constructs statements and proofs for a set of witnesses, proving in
// parallel. The witnesses' blinding scalars sum into RcvTotal.
func Build(ctx context.Context, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, witnesses []*compliance.Witness) (*Transaction, error) {
	if len(witnesses) == 0 {
		return nil, fmt.Errorf("transaction: no witnesses")
	}

	tx := &Transaction{Units: make([]*Unit, len(witnesses))}
	for _, w := range witnesses {
		tx.RcvTotal.Add(&tx.RcvTotal, &w.Rcv)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range witnesses {
		i, w := i, w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, err := compliance.Build(w)
			if err != nil {
				return fmt.Errorf("transaction: unit %d: %w", i, err)
			}
			proof, err := compliance.Prove(ccs, pk, st, w)
			if err != nil {
				return fmt.Errorf("transaction: unit %d: %w", i, err)
			}
			tx.Units[i] = &Unit{Statement: st, Proof: proof}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Verify checks every unit's proof in parallel and then the aggregate value
// balance.
func Verify(ctx context.Context, vk groth16.VerifyingKey, tx *Transaction) error {
	if len(tx.Units) == 0 {
		return fmt.Errorf("transaction: no units")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, u := range tx.Units {
		i, u := i, u
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := compliance.Verify(vk, u.Statement, u.Proof); err != nil {
				return fmt.Errorf("transaction: unit %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return VerifyBalance(tx)
}

// VerifyBalance checks only the delta opening. Split out so transparent
// validators can run it without proof material.
func VerifyBalance(tx *Transaction) error {
	deltas := make([]bn254.G1Affine, len(tx.Units))
	for i, u := range tx.Units {
		deltas[i] = u.Statement.Delta
	}
	if !resource.CheckBalance(deltas, tx.RcvTotal) {
		return ErrUnbalanced
	}
	return nil
}
