// delta.go - Value-balance commitment. Each compliance statement publishes a
// Pedersen-style commitment to the signed quantity difference between its
// consumed and created resources, on a per-kind base with unknown discrete
// logarithm. Summing the deltas of a balanced transaction leaves only the
// blinding term, which the transaction reveals as an opening scalar.

package resource

import (
	"fmt"
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/fieldenc"
)

var deltaBlindingBase bn254.G1Affine

func init() {
	var err error
	deltaBlindingBase, err = bn254.HashToG1([]byte("delta-blinding-base"), []byte("ARM.deltarnd"))
	if err != nil {
		panic(fmt.Sprintf("resource: deriving blinding base: %v", err))
	}
}

// KindBase maps a fungibility kind to its curve base point.
func KindBase(kind fr.Element) (bn254.G1Affine, error) {
	enc := fieldenc.Encode(kind)
	p, err := bn254.HashToG1(enc[:], []byte("ARM.kindbase"))
	if err != nil {
		return bn254.G1Affine{}, fmt.Errorf("resource: kind base: %w", err)
	}
	return p, nil
}

// Delta commits to the signed quantity flow of one consumed/created resource
// pair under blinding scalar rcv: q_in * B_kin - q_out * B_kout + rcv * R.
func Delta(consumed, created *Resource, rcv fr.Element) (bn254.G1Affine, error) {
	inBase, err := KindBase(consumed.Kind())
	if err != nil {
		return bn254.G1Affine{}, err
	}
	outBase, err := KindBase(created.Kind())
	if err != nil {
		return bn254.G1Affine{}, err
	}

	var inTerm, outTerm, blind, acc bn254.G1Affine
	inTerm.ScalarMultiplication(&inBase, new(big.Int).SetUint64(consumed.Quantity))
	outTerm.ScalarMultiplication(&outBase, new(big.Int).SetUint64(created.Quantity))
	outTerm.Neg(&outTerm)
	blind.ScalarMultiplication(&deltaBlindingBase, rcv.BigInt(new(big.Int)))

	acc.Add(&inTerm, &outTerm)
	acc.Add(&acc, &blind)
	return acc, nil
}

// CheckBalance verifies that summed deltas open to the total blinding
// scalar: a balanced transaction's per-kind quantity terms cancel, leaving
// rcvTotal * R.
func CheckBalance(deltas []bn254.G1Affine, rcvTotal fr.Element) bool {
	var sum bn254.G1Affine
	for i := range deltas {
		sum.Add(&sum, &deltas[i])
	}
	var want bn254.G1Affine
	want.ScalarMultiplication(&deltaBlindingBase, rcvTotal.BigInt(new(big.Int)))
	return sum.Equal(&want)
}
