// Command ratimportance turns a gradients archive written by ratcvgrad into channel and
// timestep importance tables.
//
//	ratimportance [flags] grads_path out_path
package main

import (
	"flag"
	"log"

	"github.com/NeuroCSUT/RatGPS/internal/analysis"
	"github.com/NeuroCSUT/RatGPS/internal/archive"
	"github.com/NeuroCSUT/RatGPS/internal/config"
)

func main() {
	top := flag.Int("top", 6, "Number of most and least important channels to log")
	flag.Parse()

	args, err := config.Args(flag.CommandLine, "grads_path", "out_path")
	if err != nil {
		log.Fatalf("usage: ratimportance [flags] grads_path out_path: %v", err)
	}

	arrays, err := archive.Read(args[0])
	if err != nil {
		log.Fatalf("read gradients: %v", err)
	}
	found, err := archive.Lookup(arrays, "grads")
	if err != nil {
		log.Fatalf("read gradients: %v", err)
	}
	grads, err := found[0].Seqs()
	if err != nil {
		log.Fatalf("read gradients: %v", err)
	}
	log.Printf("grads=%v", grads.Shape())

	feature := analysis.FeatureImportance(grads)
	ranking := analysis.Ranking(feature)
	steps, stepsL1, stepsL2 := analysis.TimestepImportance(grads)
	neuron, neuronL1, neuronL2 := analysis.NeuronTimestepImportance(grads)

	n := *top
	if n > len(ranking) {
		n = len(ranking)
	}
	for i := 1; i <= n; i++ {
		ch := ranking[len(ranking)-i]
		log.Printf("most_important rank=%d channel=%d importance=%.2f", i, ch, feature[ch])
	}
	for i := 0; i < n; i++ {
		ch := ranking[i]
		log.Printf("least_important rank=%d channel=%d importance=%.2f", i+1, ch, feature[ch])
	}

	rank := make([]float64, len(ranking))
	for i, ch := range ranking {
		rank[i] = float64(ch)
	}
	err = archive.Write(args[1],
		archive.Array{Name: "feature_importance", Shape: []int{len(feature)}, Data: feature},
		archive.Array{Name: "ranking", Shape: []int{len(rank)}, Data: rank},
		archive.Array{Name: "timesteps", Shape: []int{len(steps)}, Data: steps},
		archive.Array{Name: "timesteps_l1", Shape: []int{len(stepsL1)}, Data: stepsL1},
		archive.Array{Name: "timesteps_l2", Shape: []int{len(stepsL2)}, Data: stepsL2},
		archive.Matrix("neuron_timesteps", neuron),
		archive.Matrix("neuron_timesteps_l1", neuronL1),
		archive.Matrix("neuron_timesteps_l2", neuronL2),
	)
	if err != nil {
		log.Fatalf("save importance: %v", err)
	}
}
