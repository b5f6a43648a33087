// Package metrics holds the accuracy scores reported next to benchmark
// timings. Every function takes predictions first and ground truth second
// and has no side effects.
package metrics

import (
	"math"

	"github.com/weiihann/mlbench/bencherr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names as they appear in result records.
const (
	NameRMSE              = "rmse"
	NameR2                = "r2_score"
	NameMAE               = "mae"
	NameExplainedVariance = "explained_variance"
)

// Func is the common signature of all metrics.
type Func func(pred, truth []float64) (float64, error)

// ByName maps metric names to their functions.
var ByName = map[string]Func{
	NameRMSE:              RMSE,
	NameR2:                R2,
	NameMAE:               MAE,
	NameExplainedVariance: ExplainedVariance,
}

func check(name string, pred, truth []float64) error {
	if len(pred) != len(truth) {
		return bencherr.ShapeMismatch(name,
			"predictions have %d values, ground truth %d", len(pred), len(truth))
	}

	if len(truth) == 0 {
		return bencherr.Configuration(name, "empty input")
	}

	return nil
}

func residuals(pred, truth []float64) []float64 {
	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, pred)

	return diff
}

// RMSE returns the root of the mean squared difference.
func RMSE(pred, truth []float64) (float64, error) {
	if err := check(NameRMSE, pred, truth); err != nil {
		return 0, err
	}

	diff := residuals(pred, truth)

	return math.Sqrt(floats.Dot(diff, diff) / float64(len(diff))), nil
}

// MAE returns the mean absolute difference.
func MAE(pred, truth []float64) (float64, error) {
	if err := check(NameMAE, pred, truth); err != nil {
		return 0, err
	}

	return floats.Distance(pred, truth, 1) / float64(len(truth)), nil
}

// R2 returns the coefficient of determination 1 - SSres/SStot, with SStot
// taken about the mean of truth. Constant ground truth has no defined score.
func R2(pred, truth []float64) (float64, error) {
	if err := check(NameR2, pred, truth); err != nil {
		return 0, err
	}

	mean := stat.Mean(truth, nil)

	var ssTot float64
	for _, y := range truth {
		ssTot += (y - mean) * (y - mean)
	}

	if ssTot == 0 {
		return 0, bencherr.DegenerateInput(NameR2, "ground truth is constant")
	}

	diff := residuals(pred, truth)

	return 1 - floats.Dot(diff, diff)/ssTot, nil
}

// ExplainedVariance returns 1 - Var(truth - pred) / Var(truth).
func ExplainedVariance(pred, truth []float64) (float64, error) {
	if err := check(NameExplainedVariance, pred, truth); err != nil {
		return 0, err
	}

	_, varTruth := stat.PopMeanVariance(truth, nil)
	if varTruth == 0 {
		return 0, bencherr.DegenerateInput(NameExplainedVariance, "ground truth is constant")
	}

	_, varRes := stat.PopMeanVariance(residuals(pred, truth), nil)

	return 1 - varRes/varTruth, nil
}

// Pair computes fn on a train and a test split and returns [train, test],
// the layout result records use for supervised metrics.
func Pair(fn Func, trainPred, trainTruth, testPred, testTruth []float64) ([]float64, error) {
	train, err := fn(trainPred, trainTruth)
	if err != nil {
		return nil, err
	}

	test, err := fn(testPred, testTruth)
	if err != nil {
		return nil, err
	}

	return []float64{train, test}, nil
}
