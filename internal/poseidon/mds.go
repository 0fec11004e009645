// mds.go - MDS matrix construction and the sparse factorization used to
// cheapen partial-round mixing.
//
// The dense matrix is the usual Poseidon Cauchy construction fed by LFSR
// output: M[i][j] = 1 / (x[i] + y[j]). For the partial rounds it is factored
// as M = M' * S, where M' leaves slot 0 untouched and S is sparse: a column
// covering slot 0, a row covering the rest of row 0, and identity elsewhere.
// Iterating the factorization once per partial round yields a pre-sparse
// matrix (applied by the last full round before the partial phase) and one
// sparse matrix per partial round.

package poseidon

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// sparseMatrix is the S factor above, stored compactly.
//
//	wHat[0]    = S[0][0]
//	wHat[i>0]  = S[i][0]   (column 0)
//	v[j]       = S[0][j+1] (row 0 past the corner)
//
// Applying it to a row-vector state costs 2*width-1 multiplications:
//
//	out[0]   = sum_i state[i] * wHat[i]
//	out[j>0] = state[0] * v[j-1] + state[j]
type sparseMatrix struct {
	wHat []fr.Element
	v    []fr.Element
}

// buildMDS constructs the width x width Cauchy matrix from two sequences of
// reduced LFSR samples. If any pair sums to zero the matrix would be
// singular, so the y sequence is redrawn; with a 254-bit field this
// effectively never happens.
func buildMDS(g *grain, width int) matrix {
	xs := make([]fr.Element, width)
	ys := make([]fr.Element, width)
	for i := 0; i < width; i++ {
		xs[i] = g.fieldElementReduced()
	}
	for {
		for i := 0; i < width; i++ {
			ys[i] = g.fieldElementReduced()
		}
		if cauchyWellFormed(xs, ys) {
			break
		}
	}

	m := newMatrix(width, width)
	var sum fr.Element
	for i := 0; i < width; i++ {
		for j := 0; j < width; j++ {
			sum.Add(&xs[i], &ys[j])
			m[i][j].Inverse(&sum)
		}
	}
	return m
}

func cauchyWellFormed(xs, ys []fr.Element) bool {
	var sum fr.Element
	for i := range xs {
		for j := range ys {
			sum.Add(&xs[i], &ys[j])
			if sum.IsZero() {
				return false
			}
		}
	}
	return true
}

// sparseFactorize splits m into (mPrime, s) with m = mPrime * s. mPrime is
// the identity on row 0 and column 0 with m's minor elsewhere; s carries all
// of m's slot-0 interaction.
func sparseFactorize(m matrix) (matrix, *sparseMatrix) {
	t := len(m)

	mPrime := identityMatrix(t)
	mHat := m.minor()
	for i := 1; i < t; i++ {
		copy(mPrime[i][1:], mHat[i-1])
	}

	// w = column 0 below the corner, solved through the minor's inverse so
	// that mHat * wHat = w.
	w := make([]fr.Element, t-1)
	for i := 1; i < t; i++ {
		w[i-1] = m[i][0]
	}
	mHatInv, ok := mHat.inverse()
	if !ok {
		// The minor of an MDS matrix is itself MDS and always invertible.
		panic("poseidon: MDS minor is singular")
	}
	wHatTail := mHatInv.colMul(w)

	s := &sparseMatrix{
		wHat: make([]fr.Element, t),
		v:    make([]fr.Element, t-1),
	}
	s.wHat[0] = m[0][0]
	copy(s.wHat[1:], wHatTail)
	copy(s.v, m[0][1:])

	return mPrime, s
}

// factorMDS runs the factorization once per partial round. The returned
// sparse matrices are ordered for consumption: element r mixes partial
// round r. The pre-sparse matrix replaces the dense MDS in the full round
// immediately preceding the partial phase.
func factorMDS(mds matrix, partialRounds int) (matrix, []*sparseMatrix) {
	sparse := make([]*sparseMatrix, partialRounds)
	curr := mds
	for i := 0; i < partialRounds; i++ {
		mPrime, s := sparseFactorize(curr)
		sparse[i] = s
		curr = mds.mul(mPrime)
	}
	// Reverse: the last factor produced is applied first.
	for i, j := 0, len(sparse)-1; i < j; i, j = i+1, j-1 {
		sparse[i], sparse[j] = sparse[j], sparse[i]
	}
	return curr, sparse
}
