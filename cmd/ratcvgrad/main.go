// Command ratcvgrad saves the input gradients of each fold's test windows.
//
//	ratcvgrad [flags] save_path grads_path
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

	args, err := config.Args(flag.CommandLine, "save_path", "grads_path")
	if err != nil {
		log.Fatalf("usage: ratcvgrad [flags] save_path grads_path: %v", err)
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

	grads, targets, err := trainer.CrossGradients(ctx, net, rec, cfg.CV, args[0])
	if err != nil {
		log.Fatalf("gradients failed: %v", err)
	}
	log.Printf("grads=%v", grads.Shape())
	if err := archive.Write(args[1], archive.Sequences("grads", grads), archive.Matrix("targets", targets)); err != nil {
		log.Fatalf("save gradients: %v", err)
	}
}
