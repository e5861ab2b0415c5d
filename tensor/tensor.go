// Package tensor wraps the handful of gonum operations a dense layer needs:
// the affine map z = W·a + b, the transposed product Wᵀ·δ and the rank-one
// gradient accumulation G += δ·aᵀ.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Zeros allocates a rows×cols matrix with contiguous row-major storage.
func Zeros(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}

// FromRows copies a [rows][cols] slice into a dense matrix.
// All rows must have the same length.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("tensor: no rows")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("tensor: empty row 0")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("tensor: row %d has %d values, expected %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// Rows copies m into a fresh [rows][cols] slice.
func Rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Raw returns the backing slice of a matrix allocated by Zeros or FromRows.
// Writes through it update m.
func Raw(m *mat.Dense) []float64 {
	return m.RawMatrix().Data
}

// Affine computes W·a + b into a new slice.
func Affine(w *mat.Dense, a, b []float64) []float64 {
	rows, _ := w.Dims()
	z := make([]float64, rows)
	zv := mat.NewVecDense(rows, z)
	zv.MulVec(w, mat.NewVecDense(len(a), a))
	for i := range z {
		z[i] += b[i]
	}
	return z
}

// TransposeMul computes Wᵀ·δ into a new slice.
func TransposeMul(w *mat.Dense, delta []float64) []float64 {
	_, cols := w.Dims()
	out := make([]float64, cols)
	ov := mat.NewVecDense(cols, out)
	ov.MulVec(w.T(), mat.NewVecDense(len(delta), delta))
	return out
}

// AddOuter accumulates g += δ·aᵀ in place.
func AddOuter(g *mat.Dense, delta, a []float64) {
	g.RankOne(g, 1, mat.NewVecDense(len(delta), delta), mat.NewVecDense(len(a), a))
}

// SameShape reports whether two matrices have identical dimensions.
func SameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}
