package dataset

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newRecording(rows, channels int) *Recording {
	x := mat.NewDense(rows, channels, nil)
	y := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < channels; j++ {
			x.Set(i, j, float64(i*channels+j+1))
		}
		y.Set(i, 0, float64(i))
		y.Set(i, 1, float64(-i))
	}
	return &Recording{Features: x, Positions: y}
}

func TestCutLeading(t *testing.T) {
	rec := newRecording(20, 3)
	if err := rec.CutLeading(2); err != nil {
		t.Fatalf("CutLeading: %v", err)
	}
	if rec.Len() != 10 {
		t.Fatalf("expected 10 rows after cutting 2s, got %d", rec.Len())
	}
	if got := rec.Positions.At(0, 0); got != 10 {
		t.Fatalf("first position %g want 10", got)
	}
	if err := rec.CutLeading(2); err == nil {
		t.Fatal("expected error when cutting the whole recording")
	}
}

func TestKnockout(t *testing.T) {
	rec := newRecording(5, 4)
	if err := rec.Knockout(2); err != nil {
		t.Fatalf("Knockout: %v", err)
	}
	for i := 0; i < rec.Len(); i++ {
		if rec.Features.At(i, 2) != 0 {
			t.Fatalf("channel 2 not zeroed at row %d", i)
		}
		if rec.Features.At(i, 1) == 0 {
			t.Fatalf("channel 1 zeroed at row %d", i)
		}
	}
	if err := rec.Knockout(-1); err != nil {
		t.Fatalf("disabled knockout: %v", err)
	}
	if err := rec.Knockout(4); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestSelectChannels(t *testing.T) {
	rec := newRecording(3, 5)
	if err := rec.SelectChannels([]int{4, 0}); err != nil {
		t.Fatalf("SelectChannels: %v", err)
	}
	if rec.Channels() != 2 {
		t.Fatalf("expected 2 channels, got %d", rec.Channels())
	}
	if got := rec.Features.At(1, 0); got != 10 {
		t.Fatalf("features[1,0]=%g want 10", got)
	}
	if got := rec.Features.At(1, 1); got != 6 {
		t.Fatalf("features[1,1]=%g want 6", got)
	}
	if err := rec.SelectChannels([]int{7}); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestChannelTotals(t *testing.T) {
	rec := newRecording(4, 2)
	got := rec.ChannelTotals(2)
	// rows 0 and 2: {1,2} + {5,6}
	if got[0] != 6 || got[1] != 8 {
		t.Fatalf("unexpected totals %v", got)
	}
}
