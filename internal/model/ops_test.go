package model

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestOrthogonalBlocks(t *testing.T) {
	const n = 5
	m := mat.NewDense(n, 3*n, nil)
	orthogonal(m, n, rand.New(rand.NewSource(3)))
	for k := 0; k < 3; k++ {
		var qtq mat.Dense
		b := view(m, k, n)
		qtq.Mul(b.T(), b)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				if math.Abs(qtq.At(i, j)-want) > 1e-10 {
					t.Fatalf("block %d: QᵀQ[%d,%d]=%g", k, i, j, qtq.At(i, j))
				}
			}
		}
	}
}

func TestGlorotUniformLimit(t *testing.T) {
	m := mat.NewDense(20, 30, nil)
	glorotUniform(m, 20, 30, rand.New(rand.NewSource(1)))
	limit := math.Sqrt(6.0 / 50)
	nonzero := false
	for i := 0; i < 20; i++ {
		for _, v := range m.RawRowView(i) {
			if math.Abs(v) > limit {
				t.Fatalf("value %g beyond limit %g", v, limit)
			}
			nonzero = nonzero || v != 0
		}
	}
	if !nonzero {
		t.Fatalf("all zero")
	}
}

func TestLSTMForgetBias(t *testing.T) {
	c := newLSTMCell("rnn1/", 2, 3, rand.New(rand.NewSource(1)))
	bias := c.bias.w.RawRowView(0)
	for j, v := range bias {
		want := 0.0
		if j >= 3 && j < 6 {
			want = 1
		}
		if v != want {
			t.Fatalf("bias[%d]=%g want %g", j, v, want)
		}
	}
}
