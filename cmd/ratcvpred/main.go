// Command ratcvpred predicts each fold's test windows with that fold's checkpoint and
// saves preds and targets to an .npz archive. With -ko, preds_path is a directory and
// the archive is named ko-<channel>-<repeat>.npz for ratsensitivity.
//
//	ratcvpred [flags] save_path preds_path
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeuroCSUT/RatGPS/internal/analysis"
	"github.com/NeuroCSUT/RatGPS/internal/archive"
	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/trainer"
)

func main() {
	flags := config.BindFlags(flag.CommandLine)
	repeat := flag.Int("ko-repeat", 0, "Repeat number recorded in the knockout archive name")
	flag.Parse()

	args, err := config.Args(flag.CommandLine, "save_path", "preds_path")
	if err != nil {
		log.Fatalf("usage: ratcvpred [flags] save_path preds_path: %v", err)
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

	preds, targets, err := trainer.CrossPredict(ctx, net, rec, cfg.CV, args[0])
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}
	out := analysis.PredictionsPath(args[1], cfg.Data.KO, *repeat)
	r, c := preds.Dims()
	log.Printf("preds=%dx%d out=%s", r, c, out)
	if err := archive.Write(out, archive.Matrix("preds", preds), archive.Matrix("targets", targets)); err != nil {
		log.Fatalf("save predictions: %v", err)
	}
	trainer.LogPredictionErrors(preds, targets)
}
