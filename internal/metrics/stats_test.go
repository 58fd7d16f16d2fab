package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, 1.2)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, 0.8)
	snap := w.Snapshot()
	if math.Abs(snap.SamplesPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.SamplesPerSec)
	}
	if w.samples != 0 || w.steps != 0 {
		t.Fatalf("window was not reset")
	}
	if snap.LastLoss != 0.8 {
		t.Fatalf("expected last loss 0.8, got %.2f", snap.LastLoss)
	}
	if math.Abs(snap.MeanLoss-1.0) > 1e-12 {
		t.Fatalf("expected mean loss 1.0, got %.4f", snap.MeanLoss)
	}
}

func TestWindowMeanLossWeightsPartialBatch(t *testing.T) {
	var w Window
	w.Record(3, 0, time.Millisecond, 2)
	w.Record(1, 0, time.Millisecond, 6)
	if snap := w.Snapshot(); math.Abs(snap.MeanLoss-3) > 1e-12 || snap.Samples != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
