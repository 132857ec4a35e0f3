package tpf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// spdCholesky factorizes cov, projecting it to the nearest symmetric
// positive definite matrix (eigenvalue clamping) when the plain
// factorization fails.
func spdCholesky(cov mat.Symmetric) (*mat.Cholesky, error) {
	var ch mat.Cholesky
	if ch.Factorize(cov) {
		return &ch, nil
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("eigendecomposition failed")
	}

	vals := eig.Values(nil)
	const floor = 1e-10
	for i := range vals {
		if vals[i] < floor {
			vals[i] = floor
		}
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var vd, proj mat.Dense
	vd.Mul(&vecs, mat.NewDiagDense(len(vals), vals))
	proj.Mul(&vd, vecs.T())

	n := len(vals)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(proj.At(i, j)+proj.At(j, i)))
		}
	}

	if !ch.Factorize(sym) {
		return nil, fmt.Errorf("projection to SPD failed")
	}

	return &ch, nil
}

// sliceRows returns the rows of m indexed by idx.
func sliceRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)

	for i, j := range idx {
		out.SetRow(i, mat.Row(nil, j, m))
	}

	return out
}

// sliceVec returns the entries of v indexed by idx.
func sliceVec(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, j := range idx {
		out.SetVec(i, v.AtVec(j))
	}

	return out
}

// sliceSym returns the principal submatrix of s indexed by idx.
func sliceSym(s mat.Symmetric, idx []int) *mat.SymDense {
	out := mat.NewSymDense(len(idx), nil)
	for i, a := range idx {
		for j := i; j < len(idx); j++ {
			out.SetSym(i, j, s.At(a, idx[j]))
		}
	}

	return out
}
