// nullifier.go - Nullifier derivation. Two schemes exist in this protocol
// family: the maintained pure-hash form, which also runs in-circuit, and a
// legacy curve form kept for compatibility with older deployments. The
// scheme is a configuration choice; mixing schemes across a deployment
// breaks double-spend detection, so it is fixed per network.

package resource

import (
	"fmt"
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"resourcemachine/internal/poseidon"
)

// Scheme selects the nullifier derivation.
type Scheme int

const (
	// SchemePureHash derives the nullifier as a 4-ary hash. Canonical for
	// new deployments.
	SchemePureHash Scheme = iota
	// SchemeCurve derives the nullifier as the x-coordinate of
	// [PRF_nk(rho)+psi]K + [cm]J. Native verification only.
	SchemeCurve
)

// Fixed bases for the curve scheme, derived by hashing to the curve so no
// party knows their discrete logarithms.
var (
	curveBaseK bn254.G1Affine
	curveBaseJ bn254.G1Affine
)

func init() {
	var err error
	curveBaseK, err = bn254.HashToG1([]byte("nullifier-base-K"), nullifierKeyDomain)
	if err != nil {
		panic(fmt.Sprintf("resource: deriving base K: %v", err))
	}
	curveBaseJ, err = bn254.HashToG1([]byte("nullifier-base-J"), nullifierKeyDomain)
	if err != nil {
		panic(fmt.Sprintf("resource: deriving base J: %v", err))
	}
}

// DeriveNullifier computes the nullifier of a resource under the given
// scheme.
func DeriveNullifier(scheme Scheme, nk NullifierKey, rho, psi fr.Element, cm Commitment) (Nullifier, error) {
	switch scheme {
	case SchemePureHash:
		nf, err := poseidon.Hash4(fr.Element(nk), rho, psi, fr.Element(cm))
		if err != nil {
			return Nullifier{}, fmt.Errorf("resource: nullifier hash: %w", err)
		}
		return Nullifier(nf), nil
	case SchemeCurve:
		return deriveCurveNullifier(nk, rho, psi, cm), nil
	default:
		return Nullifier{}, fmt.Errorf("resource: unknown nullifier scheme %d", scheme)
	}
}

// deriveCurveNullifier evaluates the legacy construction: s = PRF_nk(rho) +
// psi as a scalar, then the x-coordinate of sK + [cm]J, reduced into the
// scalar field.
func deriveCurveNullifier(nk NullifierKey, rho, psi fr.Element, cm Commitment) Nullifier {
	t := poseidon.Hash2(fr.Element(nk), rho)
	var s fr.Element
	s.Add(&t, &psi)

	var sk, cj, sum bn254.G1Affine
	sk.ScalarMultiplication(&curveBaseK, s.BigInt(new(big.Int)))
	cmEl := fr.Element(cm)
	cj.ScalarMultiplication(&curveBaseJ, cmEl.BigInt(new(big.Int)))
	sum.Add(&sk, &cj)

	xb := sum.X.Bytes()
	var nf fr.Element
	nf.SetBytes(xb[:])
	return Nullifier(nf)
}

// NullifierOf derives a resource's own nullifier: rho is the resource nonce,
// psi its randomizer, cm its commitment.
func (r *Resource) NullifierOf(scheme Scheme, nk NullifierKey) (Nullifier, error) {
	cm, err := r.Commit()
	if err != nil {
		return Nullifier{}, err
	}
	return DeriveNullifier(scheme, nk, r.Nonce, r.Psi, cm)
}
