package model

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// Regressor is the training and inference surface the experiment drivers need.
// Every method that takes a checkpoint path loads it first; an empty path uses the
// current weights. Fit writes to its checkpoint path instead of reading it.
type Regressor interface {
	Fit(ctx context.Context, train, valid window.Set, checkpoint string) (History, error)
	Eval(set window.Set, checkpoint string) (Score, error)
	Predict(x *window.Sequences, checkpoint string) (*mat.Dense, error)
	// Gradients returns d(loss)/d(input) with the shape of set.X.
	Gradients(set window.Set, checkpoint string) (*window.Sequences, error)
	LastLayerActivation(x *window.Sequences, checkpoint string) (*mat.Dense, error)
	Weights() Weights
	SetWeights(w Weights) error
	// Reset restores the weights drawn at construction.
	Reset()
}

// Weights maps parameter names to copies of their values.
type Weights map[string]*mat.Dense

// Clone deep-copies w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for name, m := range w {
		out[name] = mat.DenseCopyOf(m)
	}
	return out
}

// Score is the result of evaluating a set.
type Score struct {
	MSE          float64
	MeanDistance float64
}

// EpochStats summarises one training epoch.
type EpochStats struct {
	Epoch         int
	LearningRate  float64
	Loss          float64
	ValLoss       float64
	Samples       int
	SamplesPerSec float64
	Duration      time.Duration
}

// History is the per-epoch record of a Fit call.
type History struct {
	Epochs      []EpochStats
	BestEpoch   int
	BestValLoss float64
	// EarlyStopped is set when patience ran out before the last epoch.
	EarlyStopped bool
}

// CheckpointPath names the checkpoint of a one-based fold.
func CheckpointPath(save string, fold int) string {
	return fmt.Sprintf("%s-%d.json.zlib", save, fold)
}
