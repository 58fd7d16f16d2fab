package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// param is a trainable matrix with its gradient accumulator.
type param struct {
	name string
	w    *mat.Dense
	grad *mat.Dense
}

func newParam(name string, rows, cols int) *param {
	return &param{name: name, w: mat.NewDense(rows, cols, nil), grad: mat.NewDense(rows, cols, nil)}
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// affine computes x·w + h·u + b, with b a 1×k row broadcast over the batch.
func affine(x, w, h mat.Matrix, u mat.Matrix, b *mat.Dense) *mat.Dense {
	var a mat.Dense
	a.Mul(x, w)
	if h != nil {
		var r mat.Dense
		r.Mul(h, u)
		a.Add(&a, &r)
	}
	if b != nil {
		addRow(&a, b.RawRowView(0))
	}
	return &a
}

func addRow(m *mat.Dense, row []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), row)
	}
}

// addColSums adds the column sums of m to the 1×k accumulator dst.
func addColSums(dst *mat.Dense, m *mat.Dense) {
	acc := dst.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(acc, m.RawRowView(i))
	}
}

// accumulate adds a·b into dst.
func accumulate(dst *mat.Dense, a, b mat.Matrix) {
	var t mat.Dense
	t.Mul(a, b)
	dst.Add(dst, &t)
}

// mulT returns a·bᵀ.
func mulT(a, b mat.Matrix) *mat.Dense {
	var t mat.Dense
	t.Mul(a, b.T())
	return &t
}

func mapm(a *mat.Dense, fn func(float64) float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src, dst := a.RawRowView(i), out.RawRowView(i)
		for j := range dst {
			dst[j] = fn(src[j])
		}
	}
	return out
}

func zip(a, b *mat.Dense, fn func(x, y float64) float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		ar, br, dst := a.RawRowView(i), b.RawRowView(i), out.RawRowView(i)
		for j := range dst {
			dst[j] = fn(ar[j], br[j])
		}
	}
	return out
}

func sum(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Add(a, b)
	return &out
}

func prod(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

// block copies column block k of width size.
func block(m *mat.Dense, k, size int) *mat.Dense {
	r, _ := m.Dims()
	return mat.DenseCopyOf(m.Slice(0, r, k*size, (k+1)*size))
}

// view returns column block k of width size, sharing storage.
func view(m *mat.Dense, k, size int) *mat.Dense {
	r, _ := m.Dims()
	return m.Slice(0, r, k*size, (k+1)*size).(*mat.Dense)
}

// join places equally sized blocks side by side.
func join(blocks ...*mat.Dense) *mat.Dense {
	r, c := blocks[0].Dims()
	out := mat.NewDense(r, c*len(blocks), nil)
	for k, b := range blocks {
		view(out, k, c).Copy(b)
	}
	return out
}

// glorotUniform fills m from U(-l, l) with l = sqrt(6/(fanIn+fanOut)).
func glorotUniform(m *mat.Dense, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = (rng.Float64()*2 - 1) * limit
		}
	}
}

// orthogonal fills each n×n column block of m with a random orthogonal matrix,
// the Q factor of a Gaussian matrix with signs fixed by R's diagonal.
func orthogonal(m *mat.Dense, n int, rng *rand.Rand) {
	_, c := m.Dims()
	for k := 0; k < c/n; k++ {
		g := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				g.Set(i, j, rng.NormFloat64())
			}
		}
		var qr mat.QR
		qr.Factorize(g)
		var q, rr mat.Dense
		qr.QTo(&q)
		qr.RTo(&rr)
		for j := 0; j < n; j++ {
			if rr.At(j, j) < 0 {
				for i := 0; i < n; i++ {
					q.Set(i, j, -q.At(i, j))
				}
			}
		}
		view(m, k, n).Copy(&q)
	}
}
