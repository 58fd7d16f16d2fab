package model

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/metrics"
	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// Network is a stack of recurrent layers followed by a dense regression head.
// All layers but the last feed their full sequence upward; the last contributes
// only its final state.
type Network struct {
	opts    Options
	inputs  int
	outputs int

	layers    []cell
	kernel    *param
	bias      *param
	params    []*param
	initial   Weights
	rng       *rand.Rand
	optimizer optimizer
}

var _ Regressor = (*Network)(nil)

// New builds a network for sequences of the given feature width and target width.
func New(inputs, outputs int, opts Options) (*Network, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("model: inputs and outputs must be > 0 (got %d, %d)", inputs, outputs)
	}
	n := &Network{
		opts:    opts,
		inputs:  inputs,
		outputs: outputs,
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}
	width := inputs
	for l := 0; l < opts.Layers; l++ {
		c := newCell(opts.Cell, l+1, width, opts.Hidden, n.rng)
		n.layers = append(n.layers, c)
		n.params = append(n.params, c.params()...)
		width = opts.Hidden
	}
	n.kernel = newParam("dense/kernel", opts.Hidden, outputs)
	n.bias = newParam("dense/bias", 1, outputs)
	glorotUniform(n.kernel.w, opts.Hidden, outputs, n.rng)
	n.params = append(n.params, n.kernel, n.bias)
	n.initial = n.Weights()
	return n, nil
}

// Options returns the configuration the network was built with.
func (n *Network) Options() Options { return n.opts }

// Weights snapshots every parameter.
func (n *Network) Weights() Weights {
	w := make(Weights, len(n.params))
	for _, p := range n.params {
		w[p.name] = mat.DenseCopyOf(p.w)
	}
	return w
}

// SetWeights copies w into the network. Every parameter must be present with its shape.
func (n *Network) SetWeights(w Weights) error {
	for _, p := range n.params {
		src, ok := w[p.name]
		if !ok {
			return fmt.Errorf("model: weights missing %s", p.name)
		}
		r, c := p.w.Dims()
		if sr, sc := src.Dims(); sr != r || sc != c {
			return fmt.Errorf("model: %s is %dx%d, want %dx%d", p.name, sr, sc, r, c)
		}
	}
	for _, p := range n.params {
		p.w.Copy(w[p.name])
	}
	return nil
}

// Reset restores the construction-time weights.
func (n *Network) Reset() {
	for _, p := range n.params {
		p.w.Copy(n.initial[p.name])
	}
}

// Predict runs x through the network in batches.
func (n *Network) Predict(x *window.Sequences, checkpoint string) (*mat.Dense, error) {
	if err := n.prepare(x, checkpoint); err != nil {
		return nil, err
	}
	return n.collect(x, func(tr *trace) *mat.Dense { return tr.out }), nil
}

// LastLayerActivation returns the final recurrent state for each sequence, (n, Hidden).
func (n *Network) LastLayerActivation(x *window.Sequences, checkpoint string) (*mat.Dense, error) {
	if err := n.prepare(x, checkpoint); err != nil {
		return nil, err
	}
	return n.collect(x, func(tr *trace) *mat.Dense { return tr.act }), nil
}

// Eval scores predictions for set against its targets.
func (n *Network) Eval(set window.Set, checkpoint string) (Score, error) {
	if set.Len() == 0 {
		return Score{}, errors.New("model: eval on empty set")
	}
	pred, err := n.Predict(set.X, checkpoint)
	if err != nil {
		return Score{}, err
	}
	return Score{MSE: metrics.MSE(pred, set.Y), MeanDistance: metrics.MeanDistance(pred, set.Y)}, nil
}

// Gradients differentiates each mini-batch's mean squared error with respect to its inputs.
func (n *Network) Gradients(set window.Set, checkpoint string) (*window.Sequences, error) {
	if set.Len() == 0 {
		return nil, errors.New("model: gradients on empty set")
	}
	if err := n.prepare(set.X, checkpoint); err != nil {
		return nil, err
	}
	if err := n.checkTargets(set.Y); err != nil {
		return nil, err
	}
	out := window.NewSequences(set.Len(), set.X.Steps(), set.X.Features())
	for _, idx := range batches(identity(set.Len()), n.opts.BatchSize) {
		tr := n.forward(set.X, idx, false)
		_, dOut := squaredError(tr.out, rows(set.Y, idx))
		dx := n.backward(tr, dOut)
		for t, g := range dx {
			for i, k := range idx {
				copy(out.Step(k, t), g.RawRowView(i))
			}
		}
	}
	n.zeroGrad()
	return out, nil
}

func (n *Network) prepare(x *window.Sequences, checkpoint string) error {
	if x == nil || x.Len() == 0 {
		return errors.New("model: no sequences")
	}
	if x.Features() != n.inputs {
		return fmt.Errorf("model: sequences have %d features, network expects %d", x.Features(), n.inputs)
	}
	if checkpoint != "" {
		return n.Load(checkpoint)
	}
	return nil
}

func (n *Network) checkTargets(y *mat.Dense) error {
	if _, c := y.Dims(); c != n.outputs {
		return fmt.Errorf("model: targets have %d columns, network expects %d", c, n.outputs)
	}
	return nil
}

func (n *Network) collect(x *window.Sequences, pick func(*trace) *mat.Dense) *mat.Dense {
	var out *mat.Dense
	for _, idx := range batches(identity(x.Len()), n.opts.BatchSize) {
		m := pick(n.forward(x, idx, false))
		if out == nil {
			_, c := m.Dims()
			out = mat.NewDense(x.Len(), c, nil)
		}
		for i, k := range idx {
			out.SetRow(k, m.RawRowView(i))
		}
	}
	return out
}

// trace keeps what a forward pass needs for backpropagation.
type trace struct {
	inputs []*mat.Dense
	caches [][]any
	// masks[l][t] is the dropout mask applied to layer l's output at step t; the last
	// layer has a single mask on its final state.
	masks   [][]*mat.Dense
	act     *mat.Dense
	dropped *mat.Dense
	out     *mat.Dense
}

func (n *Network) forward(x *window.Sequences, idx []int, training bool) *trace {
	steps := x.Steps()
	tr := &trace{
		inputs: make([]*mat.Dense, steps),
		caches: make([][]any, len(n.layers)),
		masks:  make([][]*mat.Dense, len(n.layers)),
	}
	for t := 0; t < steps; t++ {
		tr.inputs[t] = stepBatch(x, idx, t)
	}
	seq := tr.inputs
	for l, c := range n.layers {
		prev := state{h: mat.NewDense(len(idx), c.units(), nil)}
		if n.opts.Cell == LSTM {
			prev.c = mat.NewDense(len(idx), c.units(), nil)
		}
		last := l == len(n.layers)-1
		tr.caches[l] = make([]any, steps)
		var next []*mat.Dense
		if !last {
			next = make([]*mat.Dense, steps)
			if training {
				tr.masks[l] = make([]*mat.Dense, steps)
			}
		}
		for t := 0; t < steps; t++ {
			st, cache := c.step(seq[t], prev)
			tr.caches[l][t] = cache
			prev = st
			if last {
				continue
			}
			next[t] = st.h
			if training {
				tr.masks[l][t] = n.dropoutMask(len(idx), c.units())
				next[t] = prod(st.h, tr.masks[l][t])
			}
		}
		if last {
			tr.act = prev.h
			tr.dropped = prev.h
			if training {
				tr.masks[l] = []*mat.Dense{n.dropoutMask(len(idx), c.units())}
				tr.dropped = prod(prev.h, tr.masks[l][0])
			}
		}
		seq = next
	}
	tr.out = affine(tr.dropped, n.kernel.w, nil, nil, n.bias.w)
	return tr
}

// backward accumulates parameter gradients for dOut and returns the gradient of each
// input step.
func (n *Network) backward(tr *trace, dOut *mat.Dense) []*mat.Dense {
	accumulate(n.kernel.grad, tr.dropped.T(), dOut)
	addColSums(n.bias.grad, dOut)
	dAct := mulT(dOut, n.kernel.w)

	steps := len(tr.inputs)
	top := len(n.layers) - 1
	if tr.masks[top] != nil {
		dAct = prod(dAct, tr.masks[top][0])
	}
	dh := make([]*mat.Dense, steps)
	dh[steps-1] = dAct

	var dx []*mat.Dense
	for l := top; l >= 0; l-- {
		c := n.layers[l]
		dx = make([]*mat.Dense, steps)
		var dhNext, dcNext *mat.Dense
		for t := steps - 1; t >= 0; t-- {
			g := dh[t]
			switch {
			case g == nil:
				g = dhNext
			case dhNext != nil:
				g = sum(g, dhNext)
			}
			if g == nil {
				rows, _ := tr.inputs[t].Dims()
				g = mat.NewDense(rows, c.units(), nil)
			}
			dx[t], dhNext, dcNext = c.backStep(tr.caches[l][t], g, dcNext)
		}
		if l > 0 {
			dh = make([]*mat.Dense, steps)
			for t := range dx {
				dh[t] = dx[t]
				if tr.masks[l-1] != nil {
					dh[t] = prod(dx[t], tr.masks[l-1][t])
				}
			}
		}
	}
	return dx
}

// dropoutMask draws an inverted dropout mask: kept units are scaled by 1/(1-p).
func (n *Network) dropoutMask(rows, cols int) *mat.Dense {
	p := n.opts.Dropout
	m := mat.NewDense(rows, cols, nil)
	if p == 0 {
		for i := 0; i < rows; i++ {
			row := m.RawRowView(i)
			for j := range row {
				row[j] = 1
			}
		}
		return m
	}
	keep := 1 / (1 - p)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			if n.rng.Float64() >= p {
				row[j] = keep
			}
		}
	}
	return m
}

func (n *Network) zeroGrad() {
	for _, p := range n.params {
		p.grad.Zero()
	}
}

// squaredError returns the mean squared error over batch×outputs and its gradient.
func squaredError(out, y *mat.Dense) (float64, *mat.Dense) {
	r, c := out.Dims()
	scale := 2 / float64(r*c)
	loss := 0.0
	grad := zip(out, y, func(o, t float64) float64 {
		d := o - t
		loss += d * d
		return scale * d
	})
	return loss / float64(r*c), grad
}

func stepBatch(x *window.Sequences, idx []int, t int) *mat.Dense {
	m := mat.NewDense(len(idx), x.Features(), nil)
	for i, k := range idx {
		copy(m.RawRowView(i), x.Step(k, t))
	}
	return m
}

func rows(y *mat.Dense, idx []int) *mat.Dense {
	_, c := y.Dims()
	m := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		m.SetRow(i, y.RawRowView(k))
	}
	return m
}

// batches splits order into consecutive chunks of at most size.
func batches(order []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(order); start += size {
		end := start + size
		if end > len(order) {
			end = len(order)
		}
		out = append(out, order[start:end])
	}
	return out
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
