package config

import (
	"flag"
	"fmt"
)

// Overrides captures CLI supplied values. Nil fields were not given on the command line.
type Overrides struct {
	Features         *string
	Locations        *string
	CutFirstSecs     *int
	KO               *int
	DownsampleFile   *string
	DownsampleRepeat *int

	SeqLen       *int
	TrainSet     *float64
	Folds        *int
	SplitShuffle *bool

	RNN               *string
	Layers            *int
	HiddenNodes       *int
	Dropout           *float64
	BatchSize         *int
	Epochs            *int
	Patience          *int
	Optimizer         *string
	LR                *float64
	LREpochs          *int
	LRFactor          *float64
	SaveBestModelOnly *bool
	TrainShuffle      *bool
	Seed              *int64
	Verbose           *int
}

// ApplyOverrides updates c using every non-nil override.
func (c *Config) ApplyOverrides(o Overrides) {
	set(&c.Data.Features, o.Features)
	set(&c.Data.Locations, o.Locations)
	set(&c.Data.CutFirstSecs, o.CutFirstSecs)
	set(&c.Data.KO, o.KO)
	set(&c.Data.DownsampleFile, o.DownsampleFile)
	set(&c.Data.DownsampleRepeat, o.DownsampleRepeat)

	set(&c.CV.SeqLen, o.SeqLen)
	set(&c.CV.TrainSet, o.TrainSet)
	set(&c.CV.Folds, o.Folds)
	set(&c.CV.SplitShuffle, o.SplitShuffle)

	set(&c.Model.RNN, o.RNN)
	set(&c.Model.Layers, o.Layers)
	set(&c.Model.HiddenNodes, o.HiddenNodes)
	set(&c.Model.Dropout, o.Dropout)
	set(&c.Model.BatchSize, o.BatchSize)
	set(&c.Model.Epochs, o.Epochs)
	set(&c.Model.Patience, o.Patience)
	set(&c.Model.Optimizer, o.Optimizer)
	set(&c.Model.LR, o.LR)
	set(&c.Model.LREpochs, o.LREpochs)
	set(&c.Model.LRFactor, o.LRFactor)
	set(&c.Model.SaveBestModelOnly, o.SaveBestModelOnly)
	set(&c.Model.TrainShuffle, o.TrainShuffle)
	set(&c.Model.Seed, o.Seed)
	set(&c.Model.Verbose, o.Verbose)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Flags binds the shared experiment flags to a FlagSet.
type Flags struct {
	fs     *flag.FlagSet
	Config *string
	values Config
	bound  map[string]func(*Overrides)
}

// BindFlags registers -config plus one flag per Config field on fs. Help text shows
// the built-in defaults; only flags given explicitly end up in Overrides.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: *Default(), bound: map[string]func(*Overrides){}}
	f.Config = fs.String("config", "", "Path to TOML config")
	d, cv, m := &f.values.Data, &f.values.CV, &f.values.Model

	f.str("features", &d.Features, "Spike-count feature file (.mat, .dat or .npy)", func(o *Overrides) { o.Features = &d.Features })
	f.str("locations", &d.Locations, "Position label file (.mat, .dat or .npy)", func(o *Overrides) { o.Locations = &d.Locations })
	f.integer("cut-first-secs", &d.CutFirstSecs, "Seconds to drop from the start of the recording", func(o *Overrides) { o.CutFirstSecs = &d.CutFirstSecs })
	f.integer("ko", &d.KO, "Feature channel to knock out, -1 for none", func(o *Overrides) { o.KO = &d.KO })
	f.str("downsample-file", &d.DownsampleFile, "Table of channel subsets, one row per repeat", func(o *Overrides) { o.DownsampleFile = &d.DownsampleFile })
	f.integer("downsample-repeat", &d.DownsampleRepeat, "Row of -downsample-file to use", func(o *Overrides) { o.DownsampleRepeat = &d.DownsampleRepeat })

	f.integer("seqlen", &cv.SeqLen, "Sequence length in samples", func(o *Overrides) { o.SeqLen = &cv.SeqLen })
	f.float("train-set", &cv.TrainSet, "Training fraction in [0,1] or absolute sample count", func(o *Overrides) { o.TrainSet = &cv.TrainSet })
	f.integer("cvfolds", &cv.Folds, "Number of cross-validation folds", func(o *Overrides) { o.Folds = &cv.Folds })
	f.boolean("split-shuffle", &cv.SplitShuffle, "Shuffle samples before the train/validation split", func(o *Overrides) { o.SplitShuffle = &cv.SplitShuffle })

	f.str("rnn", &m.RNN, "Recurrent cell: simple, gru or lstm", func(o *Overrides) { o.RNN = &m.RNN })
	f.integer("layers", &m.Layers, "Recurrent layers (1-3)", func(o *Overrides) { o.Layers = &m.Layers })
	f.integer("hidden-nodes", &m.HiddenNodes, "Units per recurrent layer", func(o *Overrides) { o.HiddenNodes = &m.HiddenNodes })
	f.float("dropout", &m.Dropout, "Dropout rate after each recurrent layer", func(o *Overrides) { o.Dropout = &m.Dropout })
	f.integer("batch-size", &m.BatchSize, "Batch size", func(o *Overrides) { o.BatchSize = &m.BatchSize })
	f.integer("epochs", &m.Epochs, "Training epochs", func(o *Overrides) { o.Epochs = &m.Epochs })
	f.integer("patience", &m.Patience, "Early stopping patience in epochs, 0 disables", func(o *Overrides) { o.Patience = &m.Patience })
	f.str("optimizer", &m.Optimizer, "Optimizer: adam or rmsprop", func(o *Overrides) { o.Optimizer = &m.Optimizer })
	f.float("lr", &m.LR, "Learning rate", func(o *Overrides) { o.LR = &m.LR })
	f.integer("lr-epochs", &m.LREpochs, "Decay the learning rate every N epochs, 0 disables", func(o *Overrides) { o.LREpochs = &m.LREpochs })
	f.float("lr-factor", &m.LRFactor, "Learning rate decay factor", func(o *Overrides) { o.LRFactor = &m.LRFactor })
	f.boolean("save-best-model-only", &m.SaveBestModelOnly, "Checkpoint only when validation loss improves", func(o *Overrides) { o.SaveBestModelOnly = &m.SaveBestModelOnly })
	f.boolean("train-shuffle", &m.TrainShuffle, "Shuffle training sequences every epoch", func(o *Overrides) { o.TrainShuffle = &m.TrainShuffle })
	fs.Int64Var(&m.Seed, "seed", m.Seed, "PRNG seed")
	f.bound["seed"] = func(o *Overrides) { o.Seed = &m.Seed }
	f.integer("verbose", &m.Verbose, "Log level: 0 quiet, 1 per epoch, 2 per batch", func(o *Overrides) { o.Verbose = &m.Verbose })
	return f
}

func (f *Flags) str(name string, p *string, usage string, bind func(*Overrides)) {
	f.fs.StringVar(p, name, *p, usage)
	f.bound[name] = bind
}

func (f *Flags) integer(name string, p *int, usage string, bind func(*Overrides)) {
	f.fs.IntVar(p, name, *p, usage)
	f.bound[name] = bind
}

func (f *Flags) float(name string, p *float64, usage string, bind func(*Overrides)) {
	f.fs.Float64Var(p, name, *p, usage)
	f.bound[name] = bind
}

func (f *Flags) boolean(name string, p *bool, usage string, bind func(*Overrides)) {
	f.fs.BoolVar(p, name, *p, usage)
	f.bound[name] = bind
}

// Overrides collects the flags set on the command line. Call it after parsing.
func (f *Flags) Overrides() Overrides {
	var o Overrides
	f.fs.Visit(func(fl *flag.Flag) {
		if bind, ok := f.bound[fl.Name]; ok {
			bind(&o)
		}
	})
	return o
}

// Resolve loads the -config file, applies explicit flags and validates the result.
func (f *Flags) Resolve() (*Config, error) {
	cfg, err := Load(*f.Config)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(f.Overrides())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Args returns the first len(names) positional arguments, failing when any is absent.
func Args(fs *flag.FlagSet, names ...string) ([]string, error) {
	if fs.NArg() < len(names) {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredArgument, names[fs.NArg()])
	}
	return fs.Args()[:len(names)], nil
}
