// Package dataset produces the train/test arrays benchmark drivers run on:
// deterministic synthetic data from a seed, or CSV files from disk.
package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Feature distributions understood by the generator.
const (
	Gaussian = "gaussian"
	Uniform  = "uniform"
	Blobs    = "blobs"
)

// Config controls synthetic data generation.
type Config struct {
	Samples  int
	Features int
	// Informative is the number of features the regression target
	// depends on. Zero means all of them.
	Informative  int
	Noise        float64
	Distribution string
	// Centers is the number of clusters for the blobs distribution.
	Centers int
}

// Generator produces deterministic datasets from a Config and a seeded
// source.
type Generator struct {
	cfg Config
	src rand.Source
	rng *rand.Rand
}

// NewGenerator creates a Generator drawing from src.
func NewGenerator(cfg Config, src rand.Source) *Generator {
	if cfg.Informative <= 0 || cfg.Informative > cfg.Features {
		cfg.Informative = cfg.Features
	}

	if cfg.Centers <= 0 {
		cfg.Centers = 3
	}

	return &Generator{
		cfg: cfg,
		src: src,
		rng: rand.New(src),
	}
}

// Features draws a Samples x Features matrix from the configured
// distribution.
func (g *Generator) Features() (*mat.Dense, error) {
	if g.cfg.Samples <= 0 || g.cfg.Features <= 0 {
		return nil, fmt.Errorf(
			"generate %dx%d: samples and features must be positive",
			g.cfg.Samples, g.cfg.Features,
		)
	}

	x := mat.NewDense(g.cfg.Samples, g.cfg.Features, nil)

	switch g.cfg.Distribution {
	case Gaussian, "":
		norm := distuv.Normal{Mu: 0, Sigma: 1, Src: g.src}
		for i := 0; i < g.cfg.Samples; i++ {
			for j := 0; j < g.cfg.Features; j++ {
				x.Set(i, j, norm.Rand())
			}
		}

	case Uniform:
		unif := distuv.Uniform{Min: -1, Max: 1, Src: g.src}
		for i := 0; i < g.cfg.Samples; i++ {
			for j := 0; j < g.cfg.Features; j++ {
				x.Set(i, j, unif.Rand())
			}
		}

	case Blobs:
		centers := g.centers()
		norm := distuv.Normal{Mu: 0, Sigma: 1, Src: g.src}

		for i := 0; i < g.cfg.Samples; i++ {
			c := centers[g.rng.IntN(len(centers))]
			for j := 0; j < g.cfg.Features; j++ {
				x.Set(i, j, c[j]+norm.Rand())
			}
		}

	default:
		return nil, fmt.Errorf("unknown distribution %q", g.cfg.Distribution)
	}

	return x, nil
}

func (g *Generator) centers() [][]float64 {
	box := distuv.Uniform{Min: -10, Max: 10, Src: g.src}
	centers := make([][]float64, g.cfg.Centers)

	for k := range centers {
		centers[k] = make([]float64, g.cfg.Features)
		for j := range centers[k] {
			centers[k][j] = box.Rand()
		}
	}

	return centers
}

// Regression draws features plus a target that is a random linear
// combination of the informative features with Gaussian noise.
func (g *Generator) Regression() (*mat.Dense, []float64, error) {
	x, err := g.Features()
	if err != nil {
		return nil, nil, err
	}

	coef := mat.NewVecDense(g.cfg.Features, nil)
	weights := distuv.Uniform{Min: 0, Max: 100, Src: g.src}

	for j := 0; j < g.cfg.Informative; j++ {
		coef.SetVec(j, weights.Rand())
	}

	var target mat.VecDense
	target.MulVec(x, coef)

	y := make([]float64, g.cfg.Samples)
	for i := range y {
		y[i] = target.AtVec(i)
	}

	if g.cfg.Noise > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: g.cfg.Noise, Src: g.src}
		for i := range y {
			y[i] += noise.Rand()
		}
	}

	return x, y, nil
}
