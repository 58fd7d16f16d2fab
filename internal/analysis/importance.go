// Package analysis summarises trained decoders: which channels and timesteps their
// gradients depend on, and how much knocking out a channel hurts decoding.
package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// FeatureImportance is the mean absolute gradient of each channel over all sequences
// and timesteps, as a percentage of the largest channel's.
func FeatureImportance(grads *window.Sequences) []float64 {
	imp := make([]float64, grads.Features())
	for k := 0; k < grads.Len(); k++ {
		for t := 0; t < grads.Steps(); t++ {
			for f, v := range grads.Step(k, t) {
				if v < 0 {
					v = -v
				}
				imp[f] += v
			}
		}
	}
	if top := floats.Max(imp); top > 0 {
		floats.Scale(100/top, imp)
	}
	return imp
}

// Ranking returns channel indices ordered from least to most important.
func Ranking(importance []float64) []int {
	idx := make([]int, len(importance))
	floats.Argsort(append([]float64(nil), importance...), idx)
	return idx
}

// TimestepImportance is the mean absolute gradient per timestep, followed by the same
// after L1 normalising each step's gradient vector and the mean square after L2
// normalising it.
func TimestepImportance(grads *window.Sequences) (raw, l1, l2 []float64) {
	abs, n1, n2 := NeuronTimestepImportance(grads)
	return rowMeans(abs), rowMeans(n1), rowMeans(n2)
}

// NeuronTimestepImportance averages over sequences only, giving (steps, channels)
// tables in the same three variants as TimestepImportance.
func NeuronTimestepImportance(grads *window.Sequences) (raw, l1, l2 *mat.Dense) {
	steps, feats := grads.Steps(), grads.Features()
	raw = mat.NewDense(steps, feats, nil)
	l1 = mat.NewDense(steps, feats, nil)
	l2 = mat.NewDense(steps, feats, nil)
	for k := 0; k < grads.Len(); k++ {
		for t := 0; t < steps; t++ {
			g := grads.Step(k, t)
			n1, n2 := floats.Norm(g, 1), floats.Norm(g, 2)
			r, a, b := raw.RawRowView(t), l1.RawRowView(t), l2.RawRowView(t)
			for f, v := range g {
				av := v
				if av < 0 {
					av = -av
				}
				r[f] += av
				// an all-zero gradient vector contributes nothing to the normalised tables
				if n1 > 0 {
					a[f] += av / n1
				}
				if n2 > 0 {
					b[f] += (v / n2) * (v / n2)
				}
			}
		}
	}
	if n := float64(grads.Len()); n > 0 {
		raw.Scale(1/n, raw)
		l1.Scale(1/n, l1)
		l2.Scale(1/n, l2)
	}
	return raw, l1, l2
}

func rowMeans(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = floats.Sum(m.RawRowView(i)) / float64(c)
	}
	return out
}
