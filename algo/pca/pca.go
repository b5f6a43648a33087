// Package pca implements principal component analysis on top of gonum's
// stat.PC.
package pca

import (
	"math"

	"github.com/weiihann/mlbench/bencherr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SolverFull is the only supported solver: a full SVD of the centered data.
const SolverFull = "full"

// Config selects how many components are kept and how projections are
// scaled. Exactly one of NComponents and VarianceRatio must be set.
type Config struct {
	// NComponents is a fixed component count.
	NComponents int
	// VarianceRatio in (0, 1] keeps the fewest leading components whose
	// cumulative share of the total variance reaches it. The count is
	// chosen by Fit.
	VarianceRatio float64
	Whiten        bool
	SVDSolver     string
}

// Model holds a fitted decomposition.
type Model struct {
	cfg Config

	mean    []float64
	vectors *mat.Dense
	vars    []float64
	// k is the number of kept components, set by Fit.
	k int
}

// New validates cfg and returns an unfitted model.
func New(cfg Config) (*Model, error) {
	if cfg.SVDSolver == "" {
		cfg.SVDSolver = SolverFull
	}

	if cfg.SVDSolver != SolverFull {
		return nil, bencherr.Configuration("svd-solver", "unsupported solver %q", cfg.SVDSolver)
	}

	switch {
	case cfg.VarianceRatio != 0 && cfg.NComponents != 0:
		return nil, bencherr.Configuration("n-components", "count and variance ratio are exclusive")
	case cfg.VarianceRatio != 0:
		if math.IsNaN(cfg.VarianceRatio) || cfg.VarianceRatio < 0 || cfg.VarianceRatio > 1 {
			return nil, bencherr.Configuration("n-components",
				"variance ratio %v outside (0, 1]", cfg.VarianceRatio)
		}
	case cfg.NComponents < 1:
		return nil, bencherr.Configuration("n-components", "must be at least 1, got %d", cfg.NComponents)
	}

	return &Model{cfg: cfg, k: cfg.NComponents}, nil
}

// DefaultComponents is the component count used when none is requested.
func DefaultComponents(rows, cols int) int {
	return min(cols, (2+min(cols, rows))/3)
}

// Fit computes the principal axes of x.
func (m *Model) Fit(x mat.Matrix) error {
	rows, cols := x.Dims()
	if rows < 2 {
		return bencherr.DegenerateInput("fit", "need at least 2 rows, got %d", rows)
	}

	if m.cfg.NComponents > min(rows, cols) {
		return bencherr.Configuration("n-components",
			"%d components for a %dx%d matrix", m.cfg.NComponents, rows, cols)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return bencherr.DegenerateInput("fit", "singular value decomposition failed")
	}

	vectors := new(mat.Dense)
	pc.VectorsTo(vectors)

	mean := make([]float64, cols)
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	m.mean = mean
	m.vectors = vectors
	m.vars = pc.VarsTo(nil)

	if m.cfg.VarianceRatio > 0 {
		k, err := componentsFor(m.vars, m.cfg.VarianceRatio)
		if err != nil {
			return err
		}

		m.k = k
	}

	return nil
}

// componentsFor returns the first k with sum(vars[:k]) / sum(vars) >= ratio.
func componentsFor(vars []float64, ratio float64) (int, error) {
	total := floats.Sum(vars)
	if total <= 0 {
		return 0, bencherr.DegenerateInput("fit", "data has no variance")
	}

	var cum float64
	for i, v := range vars {
		cum += v
		if cum/total >= ratio {
			return i + 1, nil
		}
	}

	// Rounding can leave the full sum a hair below a ratio of 1.
	return len(vars), nil
}

// Components returns the number of kept components. Before Fit it is zero
// in variance ratio mode.
func (m *Model) Components() int {
	return m.k
}

// Transform projects x onto the fitted components.
func (m *Model) Transform(x mat.Matrix) (*mat.Dense, error) {
	if m.vectors == nil {
		return nil, bencherr.Configuration("transform", "model is not fitted")
	}

	rows, cols := x.Dims()
	if cols != len(m.mean) {
		return nil, bencherr.ShapeMismatch("transform",
			"fitted on %d features, got %d", len(m.mean), cols)
	}

	centered := mat.DenseCopyOf(x)
	for i := 0; i < rows; i++ {
		row := centered.RawRowView(i)
		for j := range row {
			row[j] -= m.mean[j]
		}
	}

	axes := m.vectors.Slice(0, cols, 0, m.k)

	out := mat.NewDense(rows, m.k, nil)
	out.Mul(centered, axes)

	if m.cfg.Whiten {
		for j := 0; j < m.k; j++ {
			scale := math.Sqrt(m.vars[j])
			if scale == 0 {
				continue
			}

			for i := 0; i < rows; i++ {
				out.Set(i, j, out.At(i, j)/scale)
			}
		}
	}

	return out, nil
}

// ExplainedVariance returns the variance along each kept component.
func (m *Model) ExplainedVariance() []float64 {
	if m.vars == nil {
		return nil
	}

	return append([]float64(nil), m.vars[:m.k]...)
}

// NoiseVariance is the mean variance of the discarded components, zero when
// every component is kept.
func (m *Model) NoiseVariance() float64 {
	rest := m.vars[min(m.k, len(m.vars)):]
	if len(rest) == 0 {
		return 0
	}

	return stat.Mean(rest, nil)
}

// Params describes the effective configuration, with the component count
// as resolved by the last Fit.
func (m *Model) Params() map[string]any {
	p := map[string]any{
		"n_components": m.k,
		"whiten":       m.cfg.Whiten,
		"svd_solver":   m.cfg.SVDSolver,
	}

	if m.cfg.VarianceRatio > 0 {
		p["variance_ratio"] = m.cfg.VarianceRatio
	}

	return p
}
