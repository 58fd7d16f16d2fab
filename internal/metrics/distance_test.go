package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIdenticalPredictionsHaveZeroError(t *testing.T) {
	p := mat.NewDense(3, 2, []float64{1, 2, -3, 4, 0.5, 9})
	if got := MSE(p, p); got != 0 {
		t.Fatalf("MSE(p,p)=%g", got)
	}
	if got := MeanDistance(p, p); got != 0 {
		t.Fatalf("MeanDistance(p,p)=%g", got)
	}
	if got := MedianDistance(p, p); got != 0 {
		t.Fatalf("MedianDistance(p,p)=%g", got)
	}
}

func TestDistances(t *testing.T) {
	pred := mat.NewDense(3, 2, []float64{3, 4, 0, 0, 1, 1})
	target := mat.NewDense(3, 2, []float64{0, 0, 0, 1, 1, 1})
	if got := MSE(pred, target); math.Abs(got-26.0/6) > 1e-12 {
		t.Fatalf("MSE=%g want %g", got, 26.0/6)
	}
	if got := MeanDistance(pred, target); math.Abs(got-2) > 1e-12 {
		t.Fatalf("MeanDistance=%g want 2", got)
	}
	if got := MedianDistance(pred, target); got != 1 {
		t.Fatalf("MedianDistance=%g want 1", got)
	}

	even := mat.NewDense(2, 1, []float64{1, 4})
	zero := mat.NewDense(2, 1, nil)
	if got := MedianDistance(even, zero); got != 2.5 {
		t.Fatalf("even MedianDistance=%g want 2.5", got)
	}
}

func TestWeightedMean(t *testing.T) {
	if got := WeightedMean([]float64{1, 4}, []float64{3, 1}); math.Abs(got-1.75) > 1e-12 {
		t.Fatalf("WeightedMean=%g want 1.75", got)
	}
}
