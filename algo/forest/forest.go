// Package forest implements a random forest regressor: bootstrap-sampled
// CART trees grown best-first, averaged at prediction time.
package forest

import (
	"fmt"
	"math/rand/v2"

	"github.com/weiihann/mlbench/bencherr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Split criteria.
const (
	// MSE splits on variance reduction; leaves predict the mean.
	MSE = "mse"
	// MAE splits on absolute deviation from the median; leaves predict
	// the median.
	MAE = "mae"
)

// Config mirrors the regressor hyperparameters. Zero MaxFeatures,
// MaxDepth and MaxLeafNodes mean "no limit".
type Config struct {
	Criterion           string
	NumTrees            int
	MaxFeatures         int
	MaxDepth            int
	MinSamplesSplit     int
	MaxLeafNodes        int
	MinImpurityDecrease float64
	Bootstrap           bool
	Seed                uint64
	// Workers bounds how many trees are grown at once.
	Workers int
}

// Regressor is a random forest for scalar regression targets.
type Regressor struct {
	cfg       Config
	trees     []*tree
	nFeatures int
}

// New validates cfg and returns an unfitted regressor.
func New(cfg Config) (*Regressor, error) {
	switch {
	case cfg.Criterion != MSE && cfg.Criterion != MAE:
		return nil, bencherr.Configuration("criterion", "unknown criterion %q", cfg.Criterion)
	case cfg.NumTrees < 1:
		return nil, bencherr.Configuration("num-trees", "must be at least 1, got %d", cfg.NumTrees)
	case cfg.MinSamplesSplit < 2:
		return nil, bencherr.Configuration("min-samples-split", "must be at least 2, got %d", cfg.MinSamplesSplit)
	case cfg.MaxFeatures < 0, cfg.MaxDepth < 0, cfg.MaxLeafNodes < 0:
		return nil, bencherr.Configuration("forest", "tree limits must not be negative")
	case cfg.MaxLeafNodes == 1:
		return nil, bencherr.Configuration("max-leaf-nodes", "must be at least 2")
	case cfg.MinImpurityDecrease < 0:
		return nil, bencherr.Configuration("min-impurity-decrease", "must not be negative")
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Regressor{cfg: cfg}, nil
}

// Fit grows the forest on x and y, replacing any previous fit.
func (r *Regressor) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return bencherr.ShapeMismatch("fit", "%d rows for %d targets", rows, len(y))
	}

	if rows == 0 {
		return bencherr.Configuration("fit", "empty training set")
	}

	maxFeatures := r.cfg.MaxFeatures
	if maxFeatures == 0 || maxFeatures > cols {
		maxFeatures = cols
	}

	// Feature-major copy so split search scans contiguous memory.
	columns := make([][]float64, cols)
	for j := range columns {
		columns[j] = mat.Col(nil, j, x)
	}

	trees := make([]*tree, r.cfg.NumTrees)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for t := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(t)))
			b := &builder{
				cfg:         r.cfg,
				columns:     columns,
				y:           y,
				maxFeatures: maxFeatures,
				rng:         rng,
			}
			trees[t] = b.grow(r.sample(rows, rng))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("grow trees: %w", err)
	}

	r.trees = trees
	r.nFeatures = cols

	return nil
}

func (r *Regressor) sample(rows int, rng *rand.Rand) []int {
	idx := make([]int, rows)

	for i := range idx {
		if r.cfg.Bootstrap {
			idx[i] = rng.IntN(rows)
		} else {
			idx[i] = i
		}
	}

	return idx
}

// Predict returns the forest average for every row of x.
func (r *Regressor) Predict(x mat.Matrix) ([]float64, error) {
	if r.trees == nil {
		return nil, bencherr.Configuration("predict", "regressor is not fitted")
	}

	rows, cols := x.Dims()
	if cols != r.nFeatures {
		return nil, bencherr.ShapeMismatch("predict",
			"fitted on %d features, got %d", r.nFeatures, cols)
	}

	out := make([]float64, rows)
	row := make([]float64, cols)

	for i := 0; i < rows; i++ {
		mat.Row(row, i, x)

		var sum float64
		for _, t := range r.trees {
			sum += t.predict(row)
		}

		out[i] = sum / float64(len(r.trees))
	}

	return out, nil
}

// NodeCount returns the total number of nodes across all trees.
func (r *Regressor) NodeCount() int {
	n := 0
	for _, t := range r.trees {
		n += len(t.nodes)
	}

	return n
}

// Params describes the effective configuration.
func (r *Regressor) Params() map[string]any {
	return map[string]any{
		"criterion":             r.cfg.Criterion,
		"n_estimators":          r.cfg.NumTrees,
		"max_features":          r.cfg.MaxFeatures,
		"max_depth":             r.cfg.MaxDepth,
		"min_samples_split":     r.cfg.MinSamplesSplit,
		"max_leaf_nodes":        r.cfg.MaxLeafNodes,
		"min_impurity_decrease": r.cfg.MinImpurityDecrease,
		"bootstrap":             r.cfg.Bootstrap,
		"random_state":          r.cfg.Seed,
		"n_jobs":                r.cfg.Workers,
	}
}
