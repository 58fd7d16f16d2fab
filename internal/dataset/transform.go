package dataset

import (
	"errors"
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// SamplesPerSecond is the number of feature rows per second of recording.
const SamplesPerSecond = 5

// CutLeading drops the first seconds of the recording, where tracking is unreliable.
func (r *Recording) CutLeading(seconds int) error {
	if seconds <= 0 {
		return nil
	}
	drop := seconds * SamplesPerSecond
	n := r.Len()
	if drop >= n {
		return fmt.Errorf("cut %d seconds: recording has only %d samples", seconds, n)
	}
	_, fc := r.Features.Dims()
	_, pc := r.Positions.Dims()
	r.Features = mat.DenseCopyOf(r.Features.Slice(drop, n, 0, fc))
	r.Positions = mat.DenseCopyOf(r.Positions.Slice(drop, n, 0, pc))
	log.Printf("cut first %ds: features=%dx%d", seconds, n-drop, fc)
	return nil
}

// Knockout zeroes one feature channel across all samples. A negative channel is a no-op.
func (r *Recording) Knockout(channel int) error {
	if channel < 0 {
		return nil
	}
	if channel >= r.Channels() {
		return fmt.Errorf("knockout channel %d: recording has %d channels", channel, r.Channels())
	}
	n := r.Len()
	for i := 0; i < n; i++ {
		r.Features.Set(i, channel, 0)
	}
	log.Printf("knocked out channel %d", channel)
	return nil
}

// SelectChannels keeps only the given feature columns, in the given order.
func (r *Recording) SelectChannels(indices []int) error {
	if len(indices) == 0 {
		return errors.New("select channels: empty index list")
	}
	c := r.Channels()
	for _, idx := range indices {
		if idx < 0 || idx >= c {
			return fmt.Errorf("select channels: index %d out of range [0,%d)", idx, c)
		}
	}
	n := r.Len()
	out := mat.NewDense(n, len(indices), nil)
	for i := 0; i < n; i++ {
		src := r.Features.RawRowView(i)
		dst := out.RawRowView(i)
		for j, idx := range indices {
			dst[j] = src[idx]
		}
	}
	r.Features = out
	log.Printf("down-sampled to %d channels: %v", len(indices), indices)
	return nil
}

// ChannelTotals sums each feature column over every stride-th row.
func (r *Recording) ChannelTotals(stride int) []float64 {
	if stride <= 0 {
		stride = 1
	}
	totals := make([]float64, r.Channels())
	for i := 0; i < r.Len(); i += stride {
		for j, v := range r.Features.RawRowView(i) {
			totals[j] += v
		}
	}
	return totals
}
