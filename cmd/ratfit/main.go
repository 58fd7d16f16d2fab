// Command ratfit trains one decoder on a contiguous train/validation split.
//
//	ratfit [flags] save_path
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
		log.Fatalf("usage: ratfit [flags] save_path: %v", err)
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

	if _, err := trainer.FitSplit(ctx, net, rec, cfg.CV, args[0]); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}
