package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/NeuroCSUT/RatGPS/internal/metrics"
	"github.com/NeuroCSUT/RatGPS/internal/window"
)

const batchLogEvery = 50

// Fit trains on train, monitoring the loss on valid (or on train when valid is empty).
// With a checkpoint path the weights are saved after every epoch, or only on
// improvement when SaveBestOnly is set. Optimizer state starts fresh on every call.
func (n *Network) Fit(ctx context.Context, train, valid window.Set, checkpoint string) (History, error) {
	if train.Len() == 0 {
		return History{}, errors.New("model: fit on empty training set")
	}
	if err := n.prepare(train.X, ""); err != nil {
		return History{}, err
	}
	if err := n.checkTargets(train.Y); err != nil {
		return History{}, err
	}
	if valid.Len() > 0 {
		if err := n.prepare(valid.X, ""); err != nil {
			return History{}, fmt.Errorf("validation: %w", err)
		}
	}

	n.optimizer = newOptimizer(n.opts.Optimizer, n.params)
	n.zeroGrad()
	hist := History{BestEpoch: -1, BestValLoss: math.Inf(1)}
	order := identity(train.Len())
	wait := 0

	for epoch := 0; epoch < n.opts.Epochs; epoch++ {
		started := time.Now()
		lr := n.opts.LearningRateAt(epoch)
		if n.opts.Shuffle {
			n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		// progress is drained by the periodic batch log; total spans the whole epoch.
		var progress, total metrics.Window
		var lossSum float64
		for b, idx := range batches(order, n.opts.BatchSize) {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			startData := time.Now()
			y := rows(train.Y, idx)
			dataTime := time.Since(startData)

			startCompute := time.Now()
			tr := n.forward(train.X, idx, true)
			loss, dOut := squaredError(tr.out, y)
			n.backward(tr, dOut)
			n.optimizer.apply(n.params, lr)
			n.zeroGrad()
			computeTime := time.Since(startCompute)

			lossSum += loss * float64(len(idx))
			progress.Record(len(idx), dataTime, computeTime, loss)
			total.Record(len(idx), dataTime, computeTime, loss)
			if n.opts.Verbose >= 2 && (b+1)%batchLogEvery == 0 {
				snap := progress.Snapshot()
				log.Printf("epoch=%d batch=%d samples_per_sec=%.1f data_ms=%.2f compute_ms=%.2f loss=%.4f",
					epoch+1, b+1, snap.SamplesPerSec, snap.AvgDataMS, snap.AvgComputeMS, snap.MeanLoss)
			}
		}
		snap := total.Snapshot()

		stats := EpochStats{
			Epoch:         epoch + 1,
			LearningRate:  lr,
			Loss:          lossSum / float64(train.Len()),
			Samples:       snap.Samples,
			SamplesPerSec: snap.SamplesPerSec,
		}
		stats.ValLoss = stats.Loss
		if valid.Len() > 0 {
			score, err := n.Eval(valid, "")
			if err != nil {
				return hist, err
			}
			stats.ValLoss = score.MSE
		}
		stats.Duration = time.Since(started)
		hist.Epochs = append(hist.Epochs, stats)

		improved := stats.ValLoss < hist.BestValLoss
		if improved {
			hist.BestEpoch = stats.Epoch
			hist.BestValLoss = stats.ValLoss
			wait = 0
		} else {
			wait++
		}
		if n.opts.Verbose >= 1 {
			log.Printf("epoch=%d/%d lr=%g loss=%.4f val_loss=%.4f samples_per_sec=%.1f elapsed=%s",
				stats.Epoch, n.opts.Epochs, lr, stats.Loss, stats.ValLoss, stats.SamplesPerSec, stats.Duration.Round(time.Millisecond))
		}
		if checkpoint != "" && (improved || !n.opts.SaveBestOnly) {
			if err := n.Save(checkpoint); err != nil {
				return hist, err
			}
		}
		if n.opts.Patience > 0 && wait >= n.opts.Patience {
			hist.EarlyStopped = epoch+1 < n.opts.Epochs
			if n.opts.Verbose >= 1 {
				log.Printf("early stop epoch=%d best_epoch=%d best_val_loss=%.4f", stats.Epoch, hist.BestEpoch, hist.BestValLoss)
			}
			break
		}
	}
	return hist, nil
}
