// Package trainer runs decoding experiments: it prepares a recording, splits it into
// folds and drives a model through fitting, prediction and gradient extraction.
package trainer

import (
	"fmt"
	"log"

	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/dataset"
	"github.com/NeuroCSUT/RatGPS/internal/model"
)

// PrepareRecording loads the recording named by d, then cuts the leading seconds,
// knocks out a channel and down-samples channels, in that order.
func PrepareRecording(d config.Data) (*dataset.Recording, error) {
	rec, err := dataset.Load(d.Features, d.Locations)
	if err != nil {
		return nil, err
	}
	if err := rec.CutLeading(d.CutFirstSecs); err != nil {
		return nil, err
	}
	if err := rec.Knockout(d.KO); err != nil {
		return nil, err
	}
	if d.DownsampleFile != "" {
		table, err := dataset.ReadIndexTable(d.DownsampleFile)
		if err != nil {
			return nil, err
		}
		if d.DownsampleRepeat < 0 || d.DownsampleRepeat >= len(table) {
			return nil, fmt.Errorf("downsample repeat %d: %s has %d rows", d.DownsampleRepeat, d.DownsampleFile, len(table))
		}
		log.Printf("downsample file=%s repeats=%d repeat=%d", d.DownsampleFile, len(table), d.DownsampleRepeat)
		if err := rec.SelectChannels(table[d.DownsampleRepeat]); err != nil {
			return nil, err
		}
	}
	log.Printf("recording samples=%d channels=%d outputs=%d", rec.Len(), rec.Channels(), rec.Outputs())
	return rec, nil
}

// NewModel builds a network sized for rec from the [model] section of cfg.
func NewModel(cfg *config.Config, rec *dataset.Recording) (*model.Network, error) {
	opts, err := cfg.ModelOptions()
	if err != nil {
		return nil, err
	}
	log.Printf("model rnn=%s layers=%d hidden=%d dropout=%g optimizer=%s lr=%g batch=%d epochs=%d",
		opts.Cell, opts.Layers, opts.Hidden, opts.Dropout, opts.Optimizer, opts.LearningRate, opts.BatchSize, opts.Epochs)
	return model.New(rec.Channels(), rec.Outputs(), opts)
}
