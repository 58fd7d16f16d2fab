package analysis

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/archive"
	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// twoByTwo holds 2 sequences of 2 steps over 2 channels.
func twoByTwo() *window.Sequences {
	g := window.NewSequences(2, 2, 2)
	copy(g.Raw(), []float64{
		// sequence 0: steps (3,-4), (0,0)
		3, -4, 0, 0,
		// sequence 1: steps (1,0), (0,-2)
		1, 0, 0, -2,
	})
	return g
}

func TestFeatureImportanceAndRanking(t *testing.T) {
	imp := FeatureImportance(twoByTwo())
	// channel sums 4 and 6
	if math.Abs(imp[0]-100*4.0/6) > 1e-12 || imp[1] != 100 {
		t.Fatalf("importance=%v", imp)
	}
	rank := Ranking(imp)
	if rank[0] != 0 || rank[1] != 1 {
		t.Fatalf("ranking=%v", rank)
	}
	if imp[1] != 100 {
		t.Fatalf("Ranking modified its input: %v", imp)
	}
}

func TestTimestepImportance(t *testing.T) {
	raw, l1, l2 := TimestepImportance(twoByTwo())
	// step 0: |g| means over (seq, channel) = (3+4+1+0)/4
	if raw[0] != 2 || raw[1] != 0.5 {
		t.Fatalf("raw=%v", raw)
	}
	// step 0 L1: (3/7+4/7 + 1+0)/4; step 1: only sequence 1 is non-zero, (0+1)/4
	if math.Abs(l1[0]-0.5) > 1e-12 || math.Abs(l1[1]-0.25) > 1e-12 {
		t.Fatalf("l1=%v", l1)
	}
	// squares of unit vectors sum to one per non-zero step vector
	if math.Abs(l2[0]-0.5) > 1e-12 || math.Abs(l2[1]-0.25) > 1e-12 {
		t.Fatalf("l2=%v", l2)
	}

	nt, _, _ := NeuronTimestepImportance(twoByTwo())
	want := mat.NewDense(2, 2, []float64{2, 2, 0, 1})
	if !mat.EqualApprox(nt, want, 1e-12) {
		t.Fatalf("neuron timestep=%v", mat.Formatted(nt))
	}
}

func writeKnockout(t *testing.T, dir string, channel, repeat int, offset float64) {
	t.Helper()
	targets := mat.NewDense(3, 2, nil)
	preds := mat.NewDense(3, 2, []float64{offset, 0, offset, 0, 0, 2 * offset})
	path := filepath.Join(dir, KnockoutName(channel, repeat))
	if err := archive.Write(path, archive.Matrix("preds", preds), archive.Matrix("targets", targets)); err != nil {
		t.Fatalf("write knockout: %v", err)
	}
}

func TestRankKnockouts(t *testing.T) {
	dir := t.TempDir()
	writeKnockout(t, dir, 0, 1, 1)
	writeKnockout(t, dir, 0, 2, 3)
	writeKnockout(t, filepath.Join(dir, "nested"), 5, 1, 10)
	if err := os.WriteFile(filepath.Join(dir, "ko-x-1.npz"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	kos, err := DiscoverKnockouts(dir)
	if err != nil {
		t.Fatalf("DiscoverKnockouts: %v", err)
	}
	if len(kos) != 3 || kos[0].Channel != 0 || kos[0].Repeat != 1 || kos[2].Channel != 5 {
		t.Fatalf("knockouts=%+v", kos)
	}

	ranked, err := RankKnockouts(kos, []float64{100, 0, 0, 0, 0, 7})
	if err != nil {
		t.Fatalf("RankKnockouts: %v", err)
	}
	if len(ranked) != 2 || ranked[0].Channel != 5 || ranked[1].Channel != 0 {
		t.Fatalf("ranking=%+v", ranked)
	}
	// channel 0: mean distances 4/3 and 4, medians 1 and 3
	ch0 := ranked[1]
	if ch0.Repeats != 2 || math.Abs(ch0.MeanDist-8.0/3) > 1e-12 || math.Abs(ch0.MeanDistStd-4.0/3) > 1e-12 {
		t.Fatalf("channel 0 %+v", ch0)
	}
	if ch0.MedianDist != 2 || ch0.MedianDistStd != 1 || ch0.Spikes != 100 {
		t.Fatalf("channel 0 %+v", ch0)
	}
	if ranked[0].Spikes != 7 || ranked[0].MeanDistStd != 0 {
		t.Fatalf("channel 5 %+v", ranked[0])
	}
}

func TestPredictionsPathNamesKnockouts(t *testing.T) {
	if got := PredictionsPath("preds.npz", -1, 4); got != "preds.npz" {
		t.Fatalf("plain run path %s", got)
	}
	dir := t.TempDir()
	path := PredictionsPath(filepath.Join(dir, "run"), 12, 4)
	m := mat.NewDense(2, 2, nil)
	if err := archive.Write(path, archive.Matrix("preds", m), archive.Matrix("targets", m)); err != nil {
		t.Fatalf("write: %v", err)
	}
	kos, err := DiscoverKnockouts(dir)
	if err != nil {
		t.Fatalf("DiscoverKnockouts: %v", err)
	}
	if len(kos) != 1 || kos[0].Channel != 12 || kos[0].Repeat != 4 || kos[0].Path != path {
		t.Fatalf("knockouts=%+v", kos)
	}
}
