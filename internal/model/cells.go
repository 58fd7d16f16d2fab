package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// state is a recurrent cell's carry. c is only used by LSTM.
type state struct {
	h, c *mat.Dense
}

// cell is one recurrent layer applied a single timestep at a time.
type cell interface {
	units() int
	params() []*param
	// step consumes x (batch×inputs) and returns the next state with a cache for backStep.
	step(x *mat.Dense, prev state) (state, any)
	// backStep takes gradients w.r.t. the step's h and c outputs (dc may be nil),
	// accumulates parameter gradients and returns gradients for x, h₋₁ and c₋₁.
	backStep(cache any, dh, dc *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense)
}

func newCell(kind Cell, layer, inputs, units int, rng *rand.Rand) cell {
	prefix := fmt.Sprintf("rnn%d/", layer)
	switch kind {
	case GRU:
		return newGRUCell(prefix, inputs, units, rng)
	case LSTM:
		return newLSTMCell(prefix, inputs, units, rng)
	default:
		return newSimpleCell(prefix, inputs, units, rng)
	}
}

// gates holds a kernel, recurrent kernel and bias laid out as one block of n columns per gate.
type gates struct {
	n         int
	kernel    *param
	recurrent *param
	bias      *param
}

func newGates(prefix string, inputs, n, count int, rng *rand.Rand) gates {
	g := gates{
		n:         n,
		kernel:    newParam(prefix+"kernel", inputs, count*n),
		recurrent: newParam(prefix+"recurrent_kernel", n, count*n),
		bias:      newParam(prefix+"bias", 1, count*n),
	}
	glorotUniform(g.kernel.w, inputs, count*n, rng)
	orthogonal(g.recurrent.w, n, rng)
	return g
}

func (g *gates) units() int { return g.n }

func (g *gates) params() []*param { return []*param{g.kernel, g.recurrent, g.bias} }

type simpleCell struct {
	gates
}

type simpleCache struct {
	x, hPrev, h *mat.Dense
}

func newSimpleCell(prefix string, inputs, n int, rng *rand.Rand) *simpleCell {
	return &simpleCell{gates: newGates(prefix, inputs, n, 1, rng)}
}

func (c *simpleCell) step(x *mat.Dense, prev state) (state, any) {
	h := mapm(affine(x, c.kernel.w, prev.h, c.recurrent.w, c.bias.w), math.Tanh)
	return state{h: h}, &simpleCache{x: x, hPrev: prev.h, h: h}
}

func (c *simpleCell) backStep(cache any, dh, _ *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense) {
	k := cache.(*simpleCache)
	da := zip(dh, k.h, func(g, h float64) float64 { return g * (1 - h*h) })
	accumulate(c.kernel.grad, k.x.T(), da)
	accumulate(c.recurrent.grad, k.hPrev.T(), da)
	addColSums(c.bias.grad, da)
	return mulT(da, c.kernel.w), mulT(da, c.recurrent.w), nil
}

// gruCell uses gate order z, r, h and the update h = z·h₋₁ + (1-z)·ĥ.
type gruCell struct {
	gates
}

type gruCache struct {
	x, hPrev, z, r, rh, hh *mat.Dense
}

func newGRUCell(prefix string, inputs, n int, rng *rand.Rand) *gruCell {
	return &gruCell{gates: newGates(prefix, inputs, n, 3, rng)}
}

func (c *gruCell) step(x *mat.Dense, prev state) (state, any) {
	n := c.n
	xa := affine(x, c.kernel.w, nil, nil, c.bias.w)
	u := c.recurrent.w

	z := zip(block(xa, 0, n), affine(prev.h, view(u, 0, n), nil, nil, nil), sigmoidSum)
	r := zip(block(xa, 1, n), affine(prev.h, view(u, 1, n), nil, nil, nil), sigmoidSum)
	rh := prod(r, prev.h)
	hh := zip(block(xa, 2, n), affine(rh, view(u, 2, n), nil, nil, nil), func(a, b float64) float64 { return math.Tanh(a + b) })

	rows, _ := hh.Dims()
	h := mat.NewDense(rows, n, nil)
	for i := 0; i < rows; i++ {
		zr, hp, hr, dst := z.RawRowView(i), prev.h.RawRowView(i), hh.RawRowView(i), h.RawRowView(i)
		for j := range dst {
			dst[j] = zr[j]*hp[j] + (1-zr[j])*hr[j]
		}
	}
	return state{h: h}, &gruCache{x: x, hPrev: prev.h, z: z, r: r, rh: rh, hh: hh}
}

func (c *gruCell) backStep(cache any, dh, _ *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense) {
	k := cache.(*gruCache)
	n := c.n
	u := c.recurrent.w

	// dz = dh⊙(h₋₁-ĥ) through σ'
	daz := zip(prod(dh, sub(k.hPrev, k.hh)), k.z, func(g, z float64) float64 { return g * z * (1 - z) })
	dah := zip(prod(dh, mapm(k.z, func(z float64) float64 { return 1 - z })), k.hh,
		func(g, h float64) float64 { return g * (1 - h*h) })
	drh := mulT(dah, view(u, 2, n))
	dar := zip(prod(drh, k.hPrev), k.r, func(g, r float64) float64 { return g * r * (1 - r) })

	dhPrev = prod(dh, k.z)
	dhPrev.Add(dhPrev, prod(drh, k.r))
	dhPrev.Add(dhPrev, mulT(daz, view(u, 0, n)))
	dhPrev.Add(dhPrev, mulT(dar, view(u, 1, n)))

	dA := join(daz, dar, dah)
	accumulate(c.kernel.grad, k.x.T(), dA)
	addColSums(c.bias.grad, dA)
	accumulate(view(c.recurrent.grad, 0, n), k.hPrev.T(), daz)
	accumulate(view(c.recurrent.grad, 1, n), k.hPrev.T(), dar)
	accumulate(view(c.recurrent.grad, 2, n), k.rh.T(), dah)

	return mulT(dA, c.kernel.w), dhPrev, nil
}

// lstmCell uses gate order i, f, c, o with the forget bias initialised to one.
type lstmCell struct {
	gates
}

type lstmCache struct {
	x, hPrev, cPrev, i, f, g, o, tc *mat.Dense
}

func newLSTMCell(prefix string, inputs, n int, rng *rand.Rand) *lstmCell {
	c := &lstmCell{gates: newGates(prefix, inputs, n, 4, rng)}
	forget := c.bias.w.RawRowView(0)[n : 2*n]
	for j := range forget {
		forget[j] = 1
	}
	return c
}

func (c *lstmCell) step(x *mat.Dense, prev state) (state, any) {
	n := c.n
	a := affine(x, c.kernel.w, prev.h, c.recurrent.w, c.bias.w)
	i := mapm(block(a, 0, n), sigmoid)
	f := mapm(block(a, 1, n), sigmoid)
	g := mapm(block(a, 2, n), math.Tanh)
	o := mapm(block(a, 3, n), sigmoid)

	cNext := sum(prod(f, prev.c), prod(i, g))
	tc := mapm(cNext, math.Tanh)
	h := prod(o, tc)
	return state{h: h, c: cNext}, &lstmCache{x: x, hPrev: prev.h, cPrev: prev.c, i: i, f: f, g: g, o: o, tc: tc}
}

func (c *lstmCell) backStep(cache any, dh, dcNext *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense) {
	k := cache.(*lstmCache)

	do := prod(dh, k.tc)
	dc := zip(prod(dh, k.o), k.tc, func(g, t float64) float64 { return g * (1 - t*t) })
	if dcNext != nil {
		dc.Add(dc, dcNext)
	}
	dai := zip(prod(dc, k.g), k.i, func(g, v float64) float64 { return g * v * (1 - v) })
	daf := zip(prod(dc, k.cPrev), k.f, func(g, v float64) float64 { return g * v * (1 - v) })
	dag := zip(prod(dc, k.i), k.g, func(g, v float64) float64 { return g * (1 - v*v) })
	dao := zip(do, k.o, func(g, v float64) float64 { return g * v * (1 - v) })
	dcPrev = prod(dc, k.f)

	dA := join(dai, daf, dag, dao)
	accumulate(c.kernel.grad, k.x.T(), dA)
	accumulate(c.recurrent.grad, k.hPrev.T(), dA)
	addColSums(c.bias.grad, dA)
	return mulT(dA, c.kernel.w), mulT(dA, c.recurrent.w), dcPrev
}

func sigmoidSum(a, b float64) float64 { return sigmoid(a + b) }

func sub(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Sub(a, b)
	return &out
}
