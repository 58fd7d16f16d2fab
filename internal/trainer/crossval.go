package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/NeuroCSUT/RatGPS/internal/config"
	"github.com/NeuroCSUT/RatGPS/internal/dataset"
	"github.com/NeuroCSUT/RatGPS/internal/folds"
	"github.com/NeuroCSUT/RatGPS/internal/metrics"
	"github.com/NeuroCSUT/RatGPS/internal/model"
	"github.com/NeuroCSUT/RatGPS/internal/window"
)

// SplitReport is the outcome of a single train/validation fit.
type SplitReport struct {
	Train   model.Score
	Valid   model.Score
	History model.History
}

// FitSplit splits rec contiguously, windows each part, fits m and scores both parts
// from the checkpoint <savePath>.json.zlib.
func FitSplit(ctx context.Context, m model.Regressor, rec *dataset.Recording, cv config.CV, savePath string) (SplitReport, error) {
	train, valid, err := folds.SplitTransform(rec.Features, rec.Positions, cv.TrainSet, cv.SeqLen)
	if err != nil {
		return SplitReport{}, err
	}
	checkpoint := savePath + ".json.zlib"
	hist, err := m.Fit(ctx, train, valid, checkpoint)
	if err != nil {
		return SplitReport{}, fmt.Errorf("fit: %w", err)
	}
	report := SplitReport{History: hist}
	if report.Train, err = m.Eval(train, checkpoint); err != nil {
		return SplitReport{}, err
	}
	if valid.Len() > 0 {
		if report.Valid, err = m.Eval(valid, checkpoint); err != nil {
			return SplitReport{}, err
		}
	}
	log.Printf("train_mse=%g valid_mse=%g", report.Train.MSE, report.Valid.MSE)
	log.Printf("train_dist=%g valid_dist=%g", report.Train.MeanDistance, report.Valid.MeanDistance)
	return report, nil
}

// FoldResult is one cross-validation fold's outcome.
type FoldResult struct {
	Fold     int
	TestSize int
	Train    model.Score
	Valid    model.Score
	Test     model.Score
	History  model.History
}

// Summary aggregates folds, weighting each by its test block size.
type Summary struct {
	Folds         []FoldResult
	MeanTrainDist float64
	MeanValidDist float64
	MeanTestDist  float64
}

// CrossValidate trains one model per contiguous fold, starting each from the model's
// construction weights and checkpointing to <savePath>-<fold>.json.zlib. With
// TrainSet == 1 the test windows double as validation; otherwise the training pool
// is split again, shuffled from seed when SplitShuffle is set.
func CrossValidate(ctx context.Context, m model.Regressor, rec *dataset.Recording, cv config.CV, seed int64, savePath string) (Summary, error) {
	ks, err := folds.KFold(rec.Len(), cv.Folds)
	if err != nil {
		return Summary{}, err
	}
	rng := rand.New(rand.NewSource(seed))
	var summary Summary
	for _, f := range ks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rest, test, err := f.Build(rec.Features, rec.Positions, cv.SeqLen)
		if err != nil {
			return summary, err
		}
		train, valid := rest, test
		if cv.TrainSet != 1 {
			train, valid, err = folds.SplitSet(rest, cv.TrainSet, cv.SplitShuffle, rng)
			if err != nil {
				return summary, fmt.Errorf("fold %d: %w", f.Index+1, err)
			}
			if train.Len() == 0 {
				return summary, fmt.Errorf("fold %d: %w: no training windows after split", f.Index+1, folds.ErrDegenerateFold)
			}
		}

		checkpoint := model.CheckpointPath(savePath, f.Index+1)
		m.Reset()
		hist, err := m.Fit(ctx, train, valid, checkpoint)
		if err != nil {
			return summary, fmt.Errorf("fold %d: %w", f.Index+1, err)
		}
		res := FoldResult{Fold: f.Index + 1, TestSize: f.TestLen(), History: hist}
		if res.Train, err = m.Eval(train, checkpoint); err != nil {
			return summary, err
		}
		if valid.Len() > 0 {
			if res.Valid, err = m.Eval(valid, checkpoint); err != nil {
				return summary, err
			}
		}
		if res.Test, err = m.Eval(test, checkpoint); err != nil {
			return summary, err
		}
		log.Printf("fold=%d/%d train_mse=%g valid_mse=%g test_mse=%g", res.Fold, len(ks), res.Train.MSE, res.Valid.MSE, res.Test.MSE)
		log.Printf("fold=%d/%d train_dist=%g valid_dist=%g test_dist=%g", res.Fold, len(ks), res.Train.MeanDistance, res.Valid.MeanDistance, res.Test.MeanDistance)
		summary.Folds = append(summary.Folds, res)
	}

	weights := make([]float64, len(summary.Folds))
	trainD := make([]float64, len(summary.Folds))
	validD := make([]float64, len(summary.Folds))
	testD := make([]float64, len(summary.Folds))
	for i, r := range summary.Folds {
		weights[i] = float64(r.TestSize)
		trainD[i], validD[i], testD[i] = r.Train.MeanDistance, r.Valid.MeanDistance, r.Test.MeanDistance
	}
	summary.MeanTrainDist = metrics.WeightedMean(trainD, weights)
	summary.MeanValidDist = metrics.WeightedMean(validD, weights)
	summary.MeanTestDist = metrics.WeightedMean(testD, weights)
	log.Printf("mean_train_dist=%g mean_valid_dist=%g mean_test_dist=%g", summary.MeanTrainDist, summary.MeanValidDist, summary.MeanTestDist)
	return summary, nil
}

// eachTestFold windows every fold's test block and hands it to fn with the fold's
// checkpoint path.
func eachTestFold(ctx context.Context, rec *dataset.Recording, cv config.CV, savePath string, fn func(test window.Set, checkpoint string) error) error {
	ks, err := folds.KFold(rec.Len(), cv.Folds)
	if err != nil {
		return err
	}
	if err := RequireCheckpoints(savePath, len(ks)); err != nil {
		return err
	}
	for _, f := range ks {
		if err := ctx.Err(); err != nil {
			return err
		}
		test, err := f.TestSet(rec.Features, rec.Positions, cv.SeqLen)
		if err != nil {
			return err
		}
		log.Printf("fold=%d/%d test_windows=%d", f.Index+1, len(ks), test.Len())
		if err := fn(test, model.CheckpointPath(savePath, f.Index+1)); err != nil {
			return fmt.Errorf("fold %d: %w", f.Index+1, err)
		}
	}
	return nil
}

// CrossPredict predicts every fold's test windows with that fold's checkpoint and
// concatenates predictions and targets in fold order.
func CrossPredict(ctx context.Context, m model.Regressor, rec *dataset.Recording, cv config.CV, savePath string) (preds, targets *mat.Dense, err error) {
	var ps, ts []*mat.Dense
	err = eachTestFold(ctx, rec, cv, savePath, func(test window.Set, checkpoint string) error {
		p, err := m.Predict(test.X, checkpoint)
		if err != nil {
			return err
		}
		ps, ts = append(ps, p), append(ts, test.Y)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return window.ConcatRows(ps...), window.ConcatRows(ts...), nil
}

// CrossGradients collects input gradients of every fold's test windows.
func CrossGradients(ctx context.Context, m model.Regressor, rec *dataset.Recording, cv config.CV, savePath string) (*window.Sequences, *mat.Dense, error) {
	var gs []*window.Sequences
	var ts []*mat.Dense
	err := eachTestFold(ctx, rec, cv, savePath, func(test window.Set, checkpoint string) error {
		g, err := m.Gradients(test, checkpoint)
		if err != nil {
			return err
		}
		gs, ts = append(gs, g), append(ts, test.Y)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return window.ConcatSequences(gs...), window.ConcatRows(ts...), nil
}

// CrossActivations collects the last recurrent layer's state for every fold's test windows.
func CrossActivations(ctx context.Context, m model.Regressor, rec *dataset.Recording, cv config.CV, savePath string) (*mat.Dense, *mat.Dense, error) {
	var as, ts []*mat.Dense
	err := eachTestFold(ctx, rec, cv, savePath, func(test window.Set, checkpoint string) error {
		a, err := m.LastLayerActivation(test.X, checkpoint)
		if err != nil {
			return err
		}
		as, ts = append(as, a), append(ts, test.Y)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return window.ConcatRows(as...), window.ConcatRows(ts...), nil
}

// LogPredictionErrors reports the error summary printed after cross-validated prediction.
func LogPredictionErrors(preds, targets *mat.Dense) {
	log.Printf("mse=%g mean_dist=%g median_dist=%g",
		metrics.MSE(preds, targets), metrics.MeanDistance(preds, targets), metrics.MedianDistance(preds, targets))
}
