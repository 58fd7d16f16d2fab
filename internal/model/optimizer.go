package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	adamBeta1  = 0.9
	adamBeta2  = 0.999
	rmspropRho = 0.9
	epsilon    = 1e-7
)

type optimizer interface {
	// apply updates every parameter from its accumulated gradient.
	apply(params []*param, lr float64)
}

func newOptimizer(kind Optimizer, params []*param) optimizer {
	slots := func() map[*param]*mat.Dense {
		m := make(map[*param]*mat.Dense, len(params))
		for _, p := range params {
			r, c := p.w.Dims()
			m[p] = mat.NewDense(r, c, nil)
		}
		return m
	}
	if kind == Adam {
		return &adam{m: slots(), v: slots()}
	}
	return &rmsprop{acc: slots()}
}

type adam struct {
	t    int
	m, v map[*param]*mat.Dense
}

func (a *adam) apply(params []*param, lr float64) {
	a.t++
	step := lr * math.Sqrt(1-math.Pow(adamBeta2, float64(a.t))) / (1 - math.Pow(adamBeta1, float64(a.t)))
	for _, p := range params {
		m, v := a.m[p], a.v[p]
		r, _ := p.w.Dims()
		for i := 0; i < r; i++ {
			w, g, mr, vr := p.w.RawRowView(i), p.grad.RawRowView(i), m.RawRowView(i), v.RawRowView(i)
			for j := range w {
				mr[j] = adamBeta1*mr[j] + (1-adamBeta1)*g[j]
				vr[j] = adamBeta2*vr[j] + (1-adamBeta2)*g[j]*g[j]
				w[j] -= step * mr[j] / (math.Sqrt(vr[j]) + epsilon)
			}
		}
	}
}

type rmsprop struct {
	acc map[*param]*mat.Dense
}

func (o *rmsprop) apply(params []*param, lr float64) {
	for _, p := range params {
		acc := o.acc[p]
		r, _ := p.w.Dims()
		for i := 0; i < r; i++ {
			w, g, a := p.w.RawRowView(i), p.grad.RawRowView(i), acc.RawRowView(i)
			for j := range w {
				a[j] = rmspropRho*a[j] + (1-rmspropRho)*g[j]*g[j]
				w[j] -= lr * g[j] / (math.Sqrt(a[j]) + epsilon)
			}
		}
	}
}
