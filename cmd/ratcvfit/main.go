// Command ratcvfit trains one decoder per contiguous cross-validation fold and reports
// fold-weighted mean distances. Checkpoints go to save_path-<fold>.json.zlib.
//
//	ratcvfit [flags] save_path
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/trainer"
)

func main() {
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	args, err := config.Args(flag.CommandLine, "save_path")
	if err != nil {
		log.Fatalf("usage: ratcvfit [flags] save_path: %v", err)
	}
	cfg, err := flags.Resolve()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	rec, err := trainer.PrepareRecording(cfg.Data)
	if err != nil {
		log.Fatalf("load data: %v", err)
	}
	net, err := trainer.NewModel(cfg, rec)
	if err != nil {
		log.Fatalf("build model: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := trainer.CrossValidate(ctx, net, rec, cfg.CV, cfg.Model.Seed, args[0])
	if err != nil {
		log.Fatalf("cross-validation failed: %v", err)
	}
	log.Printf("folds=%d mean_test_dist=%g", len(summary.Folds), summary.MeanTestDist)
}
