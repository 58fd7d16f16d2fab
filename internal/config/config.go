package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/NeuroCSUT/RatGPS/internal/model"
)

// ErrMissingRequiredArgument indicates an input the run cannot do without, or one half
// of an option pair given without the other.
var ErrMissingRequiredArgument = errors.New("missing required argument")

// Config captures the runtime knobs for a decoding experiment.
type Config struct {
	Data  Data  `toml:"data"`
	CV    CV    `toml:"cv"`
	Model Model `toml:"model"`
}

// Data selects the recording and the transforms applied after loading.
type Data struct {
	Features     string `toml:"features"`
	Locations    string `toml:"locations"`
	CutFirstSecs int    `toml:"cut_first_secs"`
	// KO is the feature channel to zero, or -1.
	KO int `toml:"ko"`
	// DownsampleFile lists channel subsets, one row per repeat; DownsampleRepeat picks the row.
	DownsampleFile   string `toml:"downsample_file"`
	DownsampleRepeat int    `toml:"downsample_repeat"`
}

// CV controls windowing and how samples are split.
type CV struct {
	SeqLen int `toml:"seqlen"`
	// TrainSet is a fraction in [0,1] or an absolute sample count above 1.
	TrainSet     float64 `toml:"train_set"`
	Folds        int     `toml:"cvfolds"`
	SplitShuffle bool    `toml:"split_shuffle"`
}

// Model mirrors model.Options with names as they appear in config files.
type Model struct {
	RNN               string  `toml:"rnn"`
	Layers            int     `toml:"layers"`
	HiddenNodes       int     `toml:"hidden_nodes"`
	Dropout           float64 `toml:"dropout"`
	BatchSize         int     `toml:"batch_size"`
	Epochs            int     `toml:"epochs"`
	Patience          int     `toml:"patience"`
	Optimizer         string  `toml:"optimizer"`
	LR                float64 `toml:"lr"`
	LREpochs          int     `toml:"lr_epochs"`
	LRFactor          float64 `toml:"lr_factor"`
	SaveBestModelOnly bool    `toml:"save_best_model_only"`
	TrainShuffle      bool    `toml:"train_shuffle"`
	Seed              int64   `toml:"seed"`
	Verbose           int     `toml:"verbose"`
}

// Default returns the configuration used when neither a file nor flags say otherwise.
func Default() *Config {
	opts := model.DefaultOptions()
	return &Config{
		Data: Data{
			Features:         "data/R2192_1x1400_at35_step200_bin100-RAW_feat.dat",
			Locations:        "data/R2192_1x1400_at35_step200_bin100-RAW_pos.dat",
			KO:               -1,
			DownsampleRepeat: -1,
		},
		CV: CV{
			SeqLen:   100,
			TrainSet: 1,
			Folds:    10,
		},
		Model: Model{
			RNN:               opts.Cell.String(),
			Layers:            opts.Layers,
			HiddenNodes:       opts.Hidden,
			Dropout:           opts.Dropout,
			BatchSize:         opts.BatchSize,
			Epochs:            opts.Epochs,
			Patience:          opts.Patience,
			Optimizer:         opts.Optimizer.String(),
			LR:                opts.LearningRate,
			LREpochs:          opts.LREpochs,
			LRFactor:          opts.LRFactor,
			SaveBestModelOnly: opts.SaveBestOnly,
			TrainShuffle:      opts.Shuffle,
			Seed:              opts.Seed,
			Verbose:           opts.Verbose,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path yields the defaults.
// Keys the Config does not know are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config %s: unknown key %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Data.Features == "" {
		return fmt.Errorf("%w: features", ErrMissingRequiredArgument)
	}
	if c.Data.Locations == "" {
		return fmt.Errorf("%w: locations", ErrMissingRequiredArgument)
	}
	if c.Data.CutFirstSecs < 0 {
		return fmt.Errorf("cut_first_secs must be >= 0 (got %d)", c.Data.CutFirstSecs)
	}
	if c.Data.KO < -1 {
		return fmt.Errorf("ko must be a channel index or -1 (got %d)", c.Data.KO)
	}
	if c.Data.DownsampleFile != "" && c.Data.DownsampleRepeat < 0 {
		return fmt.Errorf("%w: downsample_repeat is required with downsample_file", ErrMissingRequiredArgument)
	}
	if c.Data.DownsampleFile == "" && c.Data.DownsampleRepeat >= 0 {
		return fmt.Errorf("%w: downsample_file is required with downsample_repeat", ErrMissingRequiredArgument)
	}
	if c.CV.SeqLen <= 0 {
		return fmt.Errorf("seqlen must be > 0 (got %d)", c.CV.SeqLen)
	}
	if c.CV.TrainSet < 0 {
		return fmt.Errorf("train_set must be >= 0 (got %g)", c.CV.TrainSet)
	}
	if c.CV.Folds < 2 {
		return fmt.Errorf("cvfolds must be >= 2 (got %d)", c.CV.Folds)
	}
	_, err := c.ModelOptions()
	return err
}

// ModelOptions converts the [model] section into validated model options.
func (c *Config) ModelOptions() (model.Options, error) {
	cell, err := model.ParseCell(c.Model.RNN)
	if err != nil {
		return model.Options{}, err
	}
	optimizer, err := model.ParseOptimizer(c.Model.Optimizer)
	if err != nil {
		return model.Options{}, err
	}
	opts := model.Options{
		Cell:         cell,
		Layers:       c.Model.Layers,
		Hidden:       c.Model.HiddenNodes,
		Dropout:      c.Model.Dropout,
		BatchSize:    c.Model.BatchSize,
		Epochs:       c.Model.Epochs,
		Patience:     c.Model.Patience,
		Optimizer:    optimizer,
		LearningRate: c.Model.LR,
		LREpochs:     c.Model.LREpochs,
		LRFactor:     c.Model.LRFactor,
		SaveBestOnly: c.Model.SaveBestModelOnly,
		Shuffle:      c.Model.TrainShuffle,
		Seed:         c.Model.Seed,
		Verbose:      c.Model.Verbose,
	}
	if err := opts.Validate(); err != nil {
		return model.Options{}, err
	}
	return opts, nil
}
