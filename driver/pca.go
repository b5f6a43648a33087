package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/weiihann/mlbench/algo/pca"
	"github.com/weiihann/mlbench/dataset"
	"github.com/weiihann/mlbench/harness"
	"github.com/weiihann/mlbench/params"
	"github.com/weiihann/mlbench/report"
)

// PCA options.
const (
	OptSVDSolver   = "svd-solver"
	OptNComponents = "n-components"
	OptWhiten      = "whiten"
)

// MetricNoiseVariance is the only metric the PCA benchmark reports.
const MetricNoiseVariance = "noise_variance"

// PCA benchmarks principal component analysis: fit on the train split and
// project it back onto the kept components.
func PCA() Driver {
	return Driver{
		Name:  "pca",
		Short: "Principal component analysis",
		Schema: params.CommonOptions().Extend(
			params.Option{Name: OptSVDSolver, Kind: params.String, Default: pca.SolverFull,
				Choices: []string{pca.SolverFull},
				Usage:   "SVD solver"},
			params.Option{Name: OptNComponents, Kind: params.FloatOrIntKind,
				Usage: "Components to keep as a count, or as a fraction of explained variance to reach (default derived from the data shape)"},
			params.Option{Name: OptWhiten, Kind: params.Bool, Default: false,
				Usage: "Scale projections to unit variance"},
		),
		Run: runPCA,
	}
}

func runPCA(ctx context.Context, scope *harness.Scope, bag params.Bag, policy harness.Policy) (report.Input, error) {
	data, err := dataset.Load(ctx, dataset.SourceFromBag(bag, false), scope.Source)
	if err != nil {
		return report.Input{}, err
	}

	rows, cols := data.XTrain.Dims()

	cfg := pca.Config{
		Whiten:    bag.Bool(OptWhiten),
		SVDSolver: bag.String(OptSVDSolver),
	}

	v, ok := bag.FloatOrInt(OptNComponents)

	switch {
	case !ok:
		cfg.NComponents = pca.DefaultComponents(rows, cols)
	case v.IsFraction():
		cfg.VarianceRatio = v.Ratio()
	default:
		cfg.NComponents = v.Resolve(cols)
	}

	model, err := pca.New(cfg)
	if err != nil {
		return report.Input{}, err
	}

	scope.Logger.DebugContext(ctx, "data loaded",
		slog.Int("train_rows", rows),
		slog.Int("features", cols),
		slog.Int("components", cfg.NComponents),
		slog.Float64("variance_ratio", cfg.VarianceRatio),
	)

	fitTime, err := harness.MeasureErr(policy, func() error {
		return model.Fit(data.XTrain)
	})
	if err != nil {
		return report.Input{}, err
	}

	// Record the component count the fit settled on.
	bag = bag.With(OptNComponents, mustCount(model.Components()))

	if err := ctx.Err(); err != nil {
		return report.Input{}, err
	}

	transformTime, err := harness.MeasureErr(policy, func() error {
		_, err := model.Transform(data.XTrain)
		return err
	})
	if err != nil {
		return report.Input{}, err
	}

	noise := model.NoiseVariance()

	return report.Input{
		Dataset:    data.Name,
		Stages:     []string{"training", "transformation"},
		Params:     bag,
		Functions:  []string{"PCA.fit", "PCA.transform"},
		Times:      []time.Duration{fitTime, transformTime},
		MetricType: []string{MetricNoiseVariance},
		Metrics:    [][]float64{{noise, noise}},
		Data:       []report.Dimensioned{data.XTrain, data.XTest},
		Instance:   model,
	}, nil
}
