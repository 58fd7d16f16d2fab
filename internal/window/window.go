// Package window turns per-timestep feature tables into fixed-length sequences.
package window

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidWindowLength indicates a window longer than the available samples, or shorter than one.
var ErrInvalidWindowLength = errors.New("window: invalid window length")

// Sequences is a dense (n, steps, features) array stored row-major.
type Sequences struct {
	n, steps, features int
	data               []float64
}

// NewSequences allocates a zeroed (n, steps, features) array.
func NewSequences(n, steps, features int) *Sequences {
	return &Sequences{n: n, steps: steps, features: features, data: make([]float64, n*steps*features)}
}

// Len returns the number of sequences.
func (s *Sequences) Len() int { return s.n }

// Steps returns the sequence length.
func (s *Sequences) Steps() int { return s.steps }

// Features returns the per-step width.
func (s *Sequences) Features() int { return s.features }

// Shape returns (n, steps, features).
func (s *Sequences) Shape() []int { return []int{s.n, s.steps, s.features} }

// Raw exposes the backing slice.
func (s *Sequences) Raw() []float64 { return s.data }

// At returns the value of feature f at step t of sequence k.
func (s *Sequences) At(k, t, f int) float64 {
	return s.data[(k*s.steps+t)*s.features+f]
}

// Step returns the feature vector of sequence k at step t. The slice aliases storage.
func (s *Sequences) Step(k, t int) []float64 {
	off := (k*s.steps + t) * s.features
	return s.data[off : off+s.features]
}

// Set holds sequences with their targets, one target row per sequence.
type Set struct {
	X *Sequences
	Y *mat.Dense
}

// Len returns the number of sequences, zero for an empty set.
func (s Set) Len() int {
	if s.X == nil {
		return 0
	}
	return s.X.Len()
}

// Subset copies the sequences at idx, in order.
func (s Set) Subset(idx []int) Set {
	if len(idx) == 0 {
		return Set{}
	}
	step := s.X.steps * s.X.features
	x := NewSequences(len(idx), s.X.steps, s.X.features)
	_, outs := s.Y.Dims()
	y := mat.NewDense(len(idx), outs, nil)
	for i, k := range idx {
		copy(x.data[i*step:(i+1)*step], s.X.data[k*step:(k+1)*step])
		y.SetRow(i, s.Y.RawRowView(k))
	}
	return Set{X: x, Y: y}
}

// Slide builds every length-seqLen window over x. Window k covers rows k..k+seqLen-1
// and is labelled with y's row k+seqLen-1, the window's last timestep.
func Slide(x, y *mat.Dense, seqLen int) (Set, error) {
	rows, feats := x.Dims()
	yRows, outs := y.Dims()
	if rows != yRows {
		return Set{}, fmt.Errorf("slide: %d feature rows vs %d label rows", rows, yRows)
	}
	if seqLen < 1 || seqLen > rows {
		return Set{}, fmt.Errorf("%w: %d for %d samples", ErrInvalidWindowLength, seqLen, rows)
	}
	n := rows - seqLen + 1
	seqs := NewSequences(n, seqLen, feats)
	for k := 0; k < n; k++ {
		for t := 0; t < seqLen; t++ {
			copy(seqs.Step(k, t), x.RawRowView(k+t))
		}
	}
	labels := mat.DenseCopyOf(y.Slice(seqLen-1, rows, 0, outs))
	return Set{X: seqs, Y: labels}, nil
}

// Concat stacks sets with matching step and feature counts. Empty sets are skipped.
func Concat(sets ...Set) (Set, error) {
	var first *Set
	total := 0
	for i := range sets {
		if sets[i].Len() == 0 {
			continue
		}
		if first == nil {
			first = &sets[i]
		} else if sets[i].X.steps != first.X.steps || sets[i].X.features != first.X.features {
			return Set{}, fmt.Errorf("concat: shape %v vs %v", sets[i].X.Shape()[1:], first.X.Shape()[1:])
		}
		total += sets[i].Len()
	}
	if first == nil {
		return Set{}, nil
	}
	_, outs := first.Y.Dims()
	x := NewSequences(total, first.X.steps, first.X.features)
	y := mat.NewDense(total, outs, nil)
	offset := 0
	row := 0
	for _, s := range sets {
		if s.Len() == 0 {
			continue
		}
		if _, c := s.Y.Dims(); c != outs {
			return Set{}, fmt.Errorf("concat: %d label columns vs %d", c, outs)
		}
		offset += copy(x.data[offset:], s.X.data)
		for i := 0; i < s.Len(); i++ {
			y.SetRow(row, s.Y.RawRowView(i))
			row++
		}
	}
	return Set{X: x, Y: y}, nil
}

// ConcatRows stacks matrices with equal column counts.
func ConcatRows(ms ...*mat.Dense) *mat.Dense {
	total, cols := 0, 0
	for _, m := range ms {
		r, c := m.Dims()
		total += r
		cols = c
	}
	if total == 0 {
		return nil
	}
	out := mat.NewDense(total, cols, nil)
	row := 0
	for _, m := range ms {
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			out.SetRow(row, m.RawRowView(i))
			row++
		}
	}
	return out
}

// ConcatSequences stacks sequence arrays with equal step and feature counts.
func ConcatSequences(ss ...*Sequences) *Sequences {
	total := 0
	for _, s := range ss {
		total += s.n
	}
	if total == 0 {
		return nil
	}
	out := NewSequences(total, ss[0].steps, ss[0].features)
	offset := 0
	for _, s := range ss {
		offset += copy(out.data[offset:], s.data)
	}
	return out
}
