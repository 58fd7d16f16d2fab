package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidModelChoice indicates an unknown recurrent cell or optimizer name.
var ErrInvalidModelChoice = errors.New("model: invalid model choice")

// Cell selects the recurrent cell variant.
type Cell int

const (
	SimpleRNN Cell = iota
	GRU
	LSTM
)

var cellNames = map[Cell]string{SimpleRNN: "simple", GRU: "gru", LSTM: "lstm"}

func (c Cell) String() string {
	if name, ok := cellNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cell(%d)", int(c))
}

// gateCount is the number of n-wide blocks in the cell's kernels.
func (c Cell) gateCount() int {
	switch c {
	case GRU:
		return 3
	case LSTM:
		return 4
	default:
		return 1
	}
}

// ParseCell resolves "simple", "gru" or "lstm".
func ParseCell(s string) (Cell, error) {
	for c, name := range cellNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: rnn %q (want simple, gru or lstm)", ErrInvalidModelChoice, s)
}

// Optimizer selects the gradient descent variant.
type Optimizer int

const (
	RMSProp Optimizer = iota
	Adam
)

func (o Optimizer) String() string {
	switch o {
	case RMSProp:
		return "rmsprop"
	case Adam:
		return "adam"
	default:
		return fmt.Sprintf("Optimizer(%d)", int(o))
	}
}

// ParseOptimizer resolves "adam" or "rmsprop".
func ParseOptimizer(s string) (Optimizer, error) {
	switch strings.ToLower(s) {
	case "rmsprop":
		return RMSProp, nil
	case "adam":
		return Adam, nil
	default:
		return 0, fmt.Errorf("%w: optimizer %q (want adam or rmsprop)", ErrInvalidModelChoice, s)
	}
}

// Options is the complete, validated model configuration. A Network keeps its own copy.
type Options struct {
	Cell      Cell
	Layers    int
	Hidden    int
	Dropout   float64
	BatchSize int
	Epochs    int
	// Patience stops training after this many epochs without validation improvement; 0 disables.
	Patience     int
	Optimizer    Optimizer
	LearningRate float64
	// LREpochs decays the learning rate by LRFactor every LREpochs epochs; 0 disables.
	LREpochs     int
	LRFactor     float64
	SaveBestOnly bool
	Shuffle      bool
	Seed         int64
	// Verbose is 0 for silence, 1 for a line per epoch and 2 to also log batch progress.
	Verbose int
}

// DefaultOptions mirrors the defaults the decoding experiments were run with.
func DefaultOptions() Options {
	return Options{
		Cell:         LSTM,
		Layers:       2,
		Hidden:       512,
		Dropout:      0.5,
		BatchSize:    64,
		Epochs:       50,
		Optimizer:    RMSProp,
		LearningRate: 0.001,
		LRFactor:     0.1,
		Shuffle:      true,
		Seed:         42,
		Verbose:      1,
	}
}

// Validate checks every option.
func (o Options) Validate() error {
	if _, ok := cellNames[o.Cell]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidModelChoice, o.Cell)
	}
	if o.Optimizer != RMSProp && o.Optimizer != Adam {
		return fmt.Errorf("%w: %s", ErrInvalidModelChoice, o.Optimizer)
	}
	if o.Layers < 1 || o.Layers > 3 {
		return fmt.Errorf("layers must be 1, 2 or 3 (got %d)", o.Layers)
	}
	if o.Hidden <= 0 {
		return fmt.Errorf("hidden_nodes must be > 0 (got %d)", o.Hidden)
	}
	if o.Dropout < 0 || o.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1) (got %g)", o.Dropout)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", o.BatchSize)
	}
	if o.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", o.Epochs)
	}
	if o.Patience < 0 {
		return fmt.Errorf("patience must be >= 0 (got %d)", o.Patience)
	}
	if o.LearningRate <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", o.LearningRate)
	}
	if o.LREpochs < 0 {
		return fmt.Errorf("lr_epochs must be >= 0 (got %d)", o.LREpochs)
	}
	if o.LREpochs > 0 && o.LRFactor <= 0 {
		return fmt.Errorf("lr_factor must be > 0 (got %g)", o.LRFactor)
	}
	if o.Verbose < 0 || o.Verbose > 2 {
		return fmt.Errorf("verbose must be 0, 1 or 2 (got %d)", o.Verbose)
	}
	return nil
}

// LearningRateAt returns the rate for a zero-based epoch under the stepped decay schedule.
func (o Options) LearningRateAt(epoch int) float64 {
	if o.LREpochs <= 0 {
		return o.LearningRate
	}
	return o.LearningRate * math.Pow(o.LRFactor, float64(epoch/o.LREpochs))
}
