// matrix.go - Dense matrix arithmetic over the scalar field. Vectors are
// treated as row vectors throughout: mixing a state s by a matrix M computes
// s' = s * M, i.e. s'[j] = sum_i s[i] * M[i][j]. The sparse factorization in
// mds.go relies on this convention.

package poseidon

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

type matrix [][]fr.Element

func newMatrix(rows, cols int) matrix {
	m := make(matrix, rows)
	for i := range m {
		m[i] = make([]fr.Element, cols)
	}
	return m
}

func identityMatrix(n int) matrix {
	m := newMatrix(n, n)
	for i := 0; i < n; i++ {
		m[i][i].SetOne()
	}
	return m
}

// mul computes the standard matrix product a*b.
func (a matrix) mul(b matrix) matrix {
	n := len(a)
	p := len(b[0])
	out := newMatrix(n, p)
	var t fr.Element
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			for k := 0; k < len(b); k++ {
				t.Mul(&a[i][k], &b[k][j])
				out[i][j].Add(&out[i][j], &t)
			}
		}
	}
	return out
}

// rowMul applies the matrix to a row vector: out[j] = sum_i v[i] * m[i][j].
func (m matrix) rowMul(v []fr.Element) []fr.Element {
	out := make([]fr.Element, len(m[0]))
	var t fr.Element
	for j := range out {
		for i := range v {
			t.Mul(&v[i], &m[i][j])
			out[j].Add(&out[j], &t)
		}
	}
	return out
}

// colMul applies the matrix to a column vector: out[i] = sum_j m[i][j] * v[j].
func (m matrix) colMul(v []fr.Element) []fr.Element {
	out := make([]fr.Element, len(m))
	var t fr.Element
	for i := range m {
		for j := range v {
			t.Mul(&m[i][j], &v[j])
			out[i].Add(&out[i], &t)
		}
	}
	return out
}

// minor drops row 0 and column 0.
func (m matrix) minor() matrix {
	n := len(m) - 1
	out := newMatrix(n, n)
	for i := 0; i < n; i++ {
		copy(out[i], m[i+1][1:])
	}
	return out
}

func (m matrix) clone() matrix {
	out := newMatrix(len(m), len(m[0]))
	for i := range m {
		copy(out[i], m[i])
	}
	return out
}

// inverse computes m^-1 by Gauss-Jordan elimination with partial pivoting.
// Returns false if m is singular.
func (m matrix) inverse() (matrix, bool) {
	n := len(m)
	a := m.clone()
	inv := identityMatrix(n)

	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if !a[row][col].IsZero() {
				pivot = row
				break
			}
		}
		if pivot < 0 {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		var pinv, t fr.Element
		pinv.Inverse(&a[col][col])
		for j := 0; j < n; j++ {
			a[col][j].Mul(&a[col][j], &pinv)
			inv[col][j].Mul(&inv[col][j], &pinv)
		}
		for row := 0; row < n; row++ {
			if row == col || a[row][col].IsZero() {
				continue
			}
			f := a[row][col]
			for j := 0; j < n; j++ {
				t.Mul(&f, &a[col][j])
				a[row][j].Sub(&a[row][j], &t)
				t.Mul(&f, &inv[col][j])
				inv[row][j].Sub(&inv[row][j], &t)
			}
		}
	}
	return inv, true
}
