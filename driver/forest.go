package driver

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/weiihann/mlbench/algo/forest"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/dataset"
	"github.com/weiihann/mlbench/harness"
	"github.com/weiihann/mlbench/metrics"
	"github.com/weiihann/mlbench/params"
	"github.com/weiihann/mlbench/report"
)

// Random forest regression options.
const (
	OptCriterion           = "criterion"
	OptNumTrees            = "num-trees"
	OptMaxFeatures         = "max-features"
	OptMaxDepth            = "max-depth"
	OptMinSamplesSplit     = "min-samples-split"
	OptMaxLeafNodes        = "max-leaf-nodes"
	OptMinImpurityDecrease = "min-impurity-decrease"
	OptNoBootstrap         = "no-bootstrap"
	OptMetrics             = "metrics"
)

// DFRegr benchmarks random forest regression: fit on the train split,
// predict the test split, score both splits.
func DFRegr() Driver {
	return Driver{
		Name:  "df_regr",
		Short: "Random forest regression",
		Schema: params.CommonOptions().Extend(
			params.Option{Name: OptCriterion, Kind: params.String, Default: forest.MSE,
				Choices: []string{forest.MSE, forest.MAE},
				Usage:   "Split quality criterion"},
			params.Option{Name: OptNumTrees, Kind: params.Int, Default: 100,
				Usage: "Number of trees in the forest"},
			params.Option{Name: OptMaxFeatures, Kind: params.FloatOrIntKind,
				Usage: "Features considered per split, as fraction or count (default all)"},
			params.Option{Name: OptMaxDepth, Kind: params.Int,
				Usage: "Maximum tree depth (default unlimited)"},
			params.Option{Name: OptMinSamplesSplit, Kind: params.FloatOrIntKind, Default: mustCount(2),
				Usage: "Minimum samples to split a node, as fraction or count"},
			params.Option{Name: OptMaxLeafNodes, Kind: params.Int,
				Usage: "Maximum leaves per tree (default unlimited)"},
			params.Option{Name: OptMinImpurityDecrease, Kind: params.Float, Default: 0.0,
				Usage: "Minimum weighted impurity decrease for a split"},
			params.Option{Name: OptNoBootstrap, Kind: params.Bool, Default: false,
				Usage: "Grow every tree on the whole training set"},
			params.Option{Name: OptMetrics, Kind: params.StringList,
				Default: []string{metrics.NameRMSE, metrics.NameR2},
				Usage:   "Accuracy metrics to report for train and test, e.g. rmse,mae"},
		),
		Run: runForest,
	}
}

func forestConfig(bag params.Bag, rows, cols int, scope *harness.Scope) forest.Config {
	cfg := forest.Config{
		Criterion:           bag.String(OptCriterion),
		NumTrees:            bag.Int(OptNumTrees),
		MinImpurityDecrease: bag.Float(OptMinImpurityDecrease),
		Bootstrap:           !bag.Bool(OptNoBootstrap),
		Seed:                uint64(scope.Env.Seed),
		Workers:             scope.Workers(),
		MinSamplesSplit:     2,
	}

	if v, ok := bag.FloatOrInt(OptMaxFeatures); ok {
		cfg.MaxFeatures = v.Resolve(cols)
	}

	if v, ok := bag.FloatOrInt(OptMinSamplesSplit); ok {
		cfg.MinSamplesSplit = max(2, v.Resolve(rows))
	}

	if v, ok := bag.OptInt(OptMaxDepth); ok {
		cfg.MaxDepth = v
	}

	if v, ok := bag.OptInt(OptMaxLeafNodes); ok {
		cfg.MaxLeafNodes = v
	}

	return cfg
}

// scorers looks up the requested metrics, rejecting unknown and repeated
// names.
func scorers(bag params.Bag) ([]string, []metrics.Func, error) {
	names := bag.Strings(OptMetrics)
	if len(names) == 0 {
		return nil, nil, bencherr.Validation(OptMetrics, "at least one metric is required")
	}

	fns := make([]metrics.Func, len(names))

	for i, name := range names {
		fn, ok := metrics.ByName[name]
		if !ok {
			return nil, nil, bencherr.Validation(OptMetrics, "unknown metric %q (choose from %s)",
				name, strings.Join(slices.Sorted(maps.Keys(metrics.ByName)), ", "))
		}

		if slices.Contains(names[:i], name) {
			return nil, nil, bencherr.Validation(OptMetrics, "metric %q given twice", name)
		}

		fns[i] = fn
	}

	return names, fns, nil
}

func runForest(ctx context.Context, scope *harness.Scope, bag params.Bag, policy harness.Policy) (report.Input, error) {
	names, fns, err := scorers(bag)
	if err != nil {
		return report.Input{}, err
	}

	data, err := dataset.Load(ctx, dataset.SourceFromBag(bag, true), scope.Source)
	if err != nil {
		return report.Input{}, err
	}

	rows, cols := data.XTrain.Dims()
	cfg := forestConfig(bag, rows, cols, scope)

	model, err := forest.New(cfg)
	if err != nil {
		return report.Input{}, err
	}

	scope.Logger.DebugContext(ctx, "data loaded",
		slog.Int("train_rows", rows),
		slog.Int("features", cols),
		slog.Int("trees", cfg.NumTrees),
	)

	fitTime, err := harness.MeasureErr(policy, func() error {
		return model.Fit(data.XTrain, data.YTrain)
	})
	if err != nil {
		return report.Input{}, err
	}

	if err := ctx.Err(); err != nil {
		return report.Input{}, err
	}

	predict, err := harness.Measure(policy, func() ([]float64, error) {
		return model.Predict(data.XTest)
	})
	if err != nil {
		return report.Input{}, err
	}

	testPred := predict.Value

	trainPred, err := model.Predict(data.XTrain)
	if err != nil {
		return report.Input{}, err
	}

	scores := make([][]float64, len(fns))

	for i, fn := range fns {
		scores[i], err = metrics.Pair(fn, trainPred, data.YTrain, testPred, data.YTest)
		if err != nil {
			return report.Input{}, err
		}
	}

	return report.Input{
		Dataset:    data.Name,
		Stages:     []string{"training", "prediction"},
		Params:     bag,
		Functions:  []string{"df_regr.fit", "df_regr.predict"},
		Times:      []time.Duration{fitTime, predict.Duration},
		MetricType: names,
		Metrics:    scores,
		Data: []report.Dimensioned{
			data.XTrain, data.XTest,
			report.Vector(data.YTrain), report.Vector(data.YTest),
		},
		Instance: model,
	}, nil
}
