// Command ratcvact saves the last recurrent layer's activations for each fold's test
// windows.
//
//	ratcvact [flags] save_path activations_path
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeuroCSUT/RatGPS/internal/archive"
	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/trainer"
)

func main() {
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	args, err := config.Args(flag.CommandLine, "save_path", "activations_path")
	if err != nil {
		log.Fatalf("usage: ratcvact [flags] save_path activations_path: %v", err)
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

	acts, targets, err := trainer.CrossActivations(ctx, net, rec, cfg.CV, args[0])
	if err != nil {
		log.Fatalf("activations failed: %v", err)
	}
	r, c := acts.Dims()
	log.Printf("activations=%dx%d", r, c)
	if err := archive.Write(args[1], archive.Matrix("activations", acts), archive.Matrix("targets", targets)); err != nil {
		log.Fatalf("save activations: %v", err)
	}
}
