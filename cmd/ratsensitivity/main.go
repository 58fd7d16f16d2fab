// Command ratsensitivity ranks channels by how much knocking each out degrades
// decoding. It reads ko-<channel>-<repeat>.npz archives written by ratcvpred -ko.
//
//	ratsensitivity [flags] knockout_dir
package main

import (
	"flag"
	"log"

	"github.com/NeuroCSUT/RatGPS/internal/analysis"
	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/dataset"
)

func main() {
	features := flag.String("features", "", "Spike-count feature file for per-channel spike totals")
	stride := flag.Int("stride", 7, "Count spikes on every n-th sample")
	flag.Parse()

	args, err := config.Args(flag.CommandLine, "knockout_dir")
	if err != nil {
		log.Fatalf("usage: ratsensitivity [flags] knockout_dir: %v", err)
	}

	var totals []float64
	if *features != "" {
		x, err := dataset.LoadFeatures(*features)
		if err != nil {
			log.Fatalf("load features: %v", err)
		}
		rec := &dataset.Recording{Features: x}
		totals = rec.ChannelTotals(*stride)
	}

	kos, err := analysis.DiscoverKnockouts(args[0])
	if err != nil {
		log.Fatalf("discover knockouts: %v", err)
	}
	if len(kos) == 0 {
		log.Fatalf("no knockout archives under %s", args[0])
	}
	log.Printf("knockout_archives=%d", len(kos))

	ranked, err := analysis.RankKnockouts(kos, totals)
	if err != nil {
		log.Fatalf("rank knockouts: %v", err)
	}
	for i, s := range ranked {
		log.Printf("rank=%d channel=%d repeats=%d mean=%.4f+-%.4f median=%.4f+-%.4f spikes=%g",
			i+1, s.Channel, s.Repeats, s.MeanDist, s.MeanDistStd, s.MedianDist, s.MedianDistStd, s.Spikes)
	}
}
