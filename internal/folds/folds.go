// Package folds partitions time-ordered recordings into train, validation and test data
// without letting sliding windows straddle a partition boundary.
package folds

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// ErrDegenerateFold indicates a fold whose training pool would be empty.
var ErrDegenerateFold = errors.New("folds: degenerate fold")

// Fold is one cross-validation split with a contiguous test block [TestStart, TestEnd).
type Fold struct {
	Index     int
	N         int
	TestStart int
	TestEnd   int
}

// TestLen returns the number of test samples before windowing.
func (f Fold) TestLen() int { return f.TestEnd - f.TestStart }

// TestIndices lists the held-out sample indices.
func (f Fold) TestIndices() []int {
	return span(f.TestStart, f.TestEnd)
}

// TrainIndices lists every sample outside the test block, in order.
func (f Fold) TrainIndices() []int {
	return append(span(0, f.TestStart), span(f.TestEnd, f.N)...)
}

// KFold partitions n samples into k contiguous test blocks. The first n%k folds hold
// one extra sample.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("kfold: need at least 2 folds, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("kfold: %d folds for %d samples", k, n)
	}
	out := make([]Fold, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		out[i] = Fold{Index: i, N: n, TestStart: start, TestEnd: start + size}
		start += size
	}
	return out, nil
}

// Build windows the fold's test block and the pieces before and after it independently,
// so no window mixes test and training samples. The pieces are concatenated into the
// training pool. A non-empty piece shorter than seqLen yields no windows.
func (f Fold) Build(x, y *mat.Dense, seqLen int) (rest, test window.Set, err error) {
	rows, feats := x.Dims()
	_, outs := y.Dims()
	if rows != f.N {
		return window.Set{}, window.Set{}, fmt.Errorf("fold %d: built for %d samples, got %d", f.Index+1, f.N, rows)
	}
	if f.TestStart == 0 && f.TestEnd == f.N {
		return window.Set{}, window.Set{}, fmt.Errorf("%w: fold %d holds out every sample", ErrDegenerateFold, f.Index+1)
	}

	test, err = f.TestSet(x, y, seqLen)
	if err != nil {
		return window.Set{}, window.Set{}, err
	}

	var pieces []window.Set
	for _, r := range [][2]int{{0, f.TestStart}, {f.TestEnd, f.N}} {
		lo, hi := r[0], r[1]
		if hi <= lo {
			continue
		}
		if hi-lo < seqLen {
			log.Printf("fold=%d piece [%d,%d) shorter than window %d, dropped", f.Index+1, lo, hi, seqLen)
			continue
		}
		piece, err := window.Slide(
			x.Slice(lo, hi, 0, feats).(*mat.Dense),
			y.Slice(lo, hi, 0, outs).(*mat.Dense),
			seqLen)
		if err != nil {
			return window.Set{}, window.Set{}, fmt.Errorf("fold %d piece [%d,%d): %w", f.Index+1, lo, hi, err)
		}
		pieces = append(pieces, piece)
	}
	if len(pieces) == 0 {
		return window.Set{}, window.Set{}, fmt.Errorf("%w: fold %d has no training windows", ErrDegenerateFold, f.Index+1)
	}
	rest, err = window.Concat(pieces...)
	if err != nil {
		return window.Set{}, window.Set{}, err
	}
	log.Printf("fold=%d test=%d rest=%d test_windows=%d rest_windows=%d",
		f.Index+1, f.TestLen(), f.N-f.TestLen(), test.Len(), rest.Len())
	return rest, test, nil
}

// TestSet windows only the fold's test block.
func (f Fold) TestSet(x, y *mat.Dense, seqLen int) (window.Set, error) {
	rows, feats := x.Dims()
	_, outs := y.Dims()
	if rows != f.N {
		return window.Set{}, fmt.Errorf("fold %d: built for %d samples, got %d", f.Index+1, f.N, rows)
	}
	test, err := window.Slide(
		x.Slice(f.TestStart, f.TestEnd, 0, feats).(*mat.Dense),
		y.Slice(f.TestStart, f.TestEnd, 0, outs).(*mat.Dense),
		seqLen)
	if err != nil {
		return window.Set{}, fmt.Errorf("fold %d test block: %w", f.Index+1, err)
	}
	return test, nil
}

// Split divides n samples into train and validation indices. A trainSet in [0,1] is a
// fraction of n; larger values are an absolute count. Without shuffling the train indices
// lead and validation trails.
func Split(n int, trainSet float64, shuffle bool, rng *rand.Rand) (train, valid []int, err error) {
	ntrain := int(trainSet)
	if trainSet >= 0 && trainSet <= 1 {
		ntrain = int(float64(n) * trainSet)
	}
	if ntrain < 0 || ntrain > n {
		return nil, nil, fmt.Errorf("split: train size %d out of range for %d samples", ntrain, n)
	}
	if !shuffle {
		return span(0, ntrain), span(ntrain, n), nil
	}

	log.Printf("WARNING: shuffling samples before splitting leaks temporal context between train and validation")
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	perm := rng.Perm(n)
	train = append([]int(nil), perm[:ntrain]...)
	valid = append([]int(nil), perm[ntrain:]...)
	sort.Ints(valid)
	return train, valid, nil
}

// SplitSet applies Split to already windowed data.
func SplitSet(set window.Set, trainSet float64, shuffle bool, rng *rand.Rand) (train, valid window.Set, err error) {
	ti, vi, err := Split(set.Len(), trainSet, shuffle, rng)
	if err != nil {
		return window.Set{}, window.Set{}, err
	}
	return set.Subset(ti), set.Subset(vi), nil
}

// SplitTransform splits raw rows contiguously and then windows each part on its own,
// so train and validation windows never overlap. A validation part shorter than seqLen
// is returned empty.
func SplitTransform(x, y *mat.Dense, trainSet float64, seqLen int) (train, valid window.Set, err error) {
	rows, feats := x.Dims()
	_, outs := y.Dims()
	ti, vi, err := Split(rows, trainSet, false, nil)
	if err != nil {
		return window.Set{}, window.Set{}, err
	}
	if len(ti) == 0 {
		return window.Set{}, window.Set{}, fmt.Errorf("split transform: %w: no training samples", window.ErrInvalidWindowLength)
	}
	ntrain := len(ti)
	train, err = window.Slide(x.Slice(0, ntrain, 0, feats).(*mat.Dense), y.Slice(0, ntrain, 0, outs).(*mat.Dense), seqLen)
	if err != nil {
		return window.Set{}, window.Set{}, fmt.Errorf("split transform train: %w", err)
	}
	if len(vi) < seqLen {
		if len(vi) > 0 {
			log.Printf("validation part of %d samples shorter than window %d, dropped", len(vi), seqLen)
		}
		return train, window.Set{}, nil
	}
	valid, err = window.Slide(x.Slice(ntrain, rows, 0, feats).(*mat.Dense), y.Slice(ntrain, rows, 0, outs).(*mat.Dense), seqLen)
	if err != nil {
		return window.Set{}, window.Set{}, fmt.Errorf("split transform valid: %w", err)
	}
	log.Printf("split train=%d valid=%d train_windows=%d valid_windows=%d", ntrain, len(vi), train.Len(), valid.Len())
	return train, valid, nil
}

func span(lo, hi int) []int {
	if hi <= lo {
		return nil
	}
	out := make([]int, hi-lo)
	for i := range out {
		out[i] = lo + i
	}
	return out
}
