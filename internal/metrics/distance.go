// Package metrics computes decoding errors and training throughput.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MSE is the mean squared error over every element.
func MSE(pred, target mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(pred, target)
	r, c := diff.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		row := diff.RawRowView(i)
		sum += floats.Dot(row, row)
	}
	return sum / float64(r*c)
}

// Distances returns the Euclidean distance between each predicted and true row.
func Distances(pred, target mat.Matrix) []float64 {
	var diff mat.Dense
	diff.Sub(pred, target)
	r, _ := diff.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = floats.Norm(diff.RawRowView(i), 2)
	}
	return out
}

// MeanDistance is the mean Euclidean error per sample.
func MeanDistance(pred, target mat.Matrix) float64 {
	return stat.Mean(Distances(pred, target), nil)
}

// MedianDistance is the median Euclidean error per sample, averaging the two middle
// values for an even count.
func MedianDistance(pred, target mat.Matrix) float64 {
	d := Distances(pred, target)
	sort.Float64s(d)
	n := len(d)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return d[n/2]
	}
	return (d[n/2-1] + d[n/2]) / 2
}

// WeightedMean averages values with the given weights, e.g. per-fold errors weighted
// by test fold size.
func WeightedMean(values, weights []float64) float64 {
	return stat.Mean(values, weights)
}
