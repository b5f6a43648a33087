package pca

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/mlbench/bencherr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// planar returns points on the plane z = x + y with a little noise on z.
func planar(rows int) *mat.Dense {
	rng := rand.New(rand.NewPCG(1, 2))
	x := mat.NewDense(rows, 3, nil)

	for i := 0; i < rows; i++ {
		a, b := rng.NormFloat64()*5, rng.NormFloat64()*2
		x.SetRow(i, []float64{a, b, a + b + rng.NormFloat64()*0.01})
	}

	return x
}

// dominant returns data whose first column carries nearly all variance.
func dominant(rows, cols int) *mat.Dense {
	rng := rand.New(rand.NewPCG(3, 4))
	x := mat.NewDense(rows, cols, nil)

	for i := 0; i < rows; i++ {
		x.Set(i, 0, rng.NormFloat64()*10)
		for j := 1; j < cols; j++ {
			x.Set(i, j, rng.NormFloat64()*0.1)
		}
	}

	return x
}

func TestVarianceRatio(t *testing.T) {
	x := dominant(200, 4)

	tests := []struct {
		ratio float64
		want  int
	}{
		{0.5, 1},
		{0.9, 1},
		{1.0, 4},
	}

	for _, tt := range tests {
		m, err := New(Config{VarianceRatio: tt.ratio})
		require.NoError(t, err)
		assert.Zero(t, m.Components())

		require.NoError(t, m.Fit(x))
		assert.Equal(t, tt.want, m.Components(), "ratio %v", tt.ratio)
		assert.Equal(t, tt.want, m.Params()["n_components"])

		out, err := m.Transform(x)
		require.NoError(t, err)

		_, c := out.Dims()
		assert.Equal(t, tt.want, c)
	}

	_, err := New(Config{VarianceRatio: 1.5})
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)

	_, err = New(Config{VarianceRatio: 0.5, NComponents: 2})
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)
}

func TestDefaultComponents(t *testing.T) {
	assert.Equal(t, 7, DefaultComponents(7500, 20))
	assert.Equal(t, 1, DefaultComponents(1, 20))
	assert.Equal(t, 1, DefaultComponents(100, 1))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{NComponents: 0})
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)

	_, err = New(Config{NComponents: 1, SVDSolver: "randomized"})
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)

	m, err := New(Config{NComponents: 2})
	require.NoError(t, err)
	assert.Equal(t, SolverFull, m.Params()["svd_solver"])
}

func TestFitTransform(t *testing.T) {
	x := planar(200)

	m, err := New(Config{NComponents: 2})
	require.NoError(t, err)
	require.NoError(t, m.Fit(x))

	vars := m.ExplainedVariance()
	require.Len(t, vars, 2)
	assert.Greater(t, vars[0], vars[1])

	// The third axis only carries the injected noise.
	assert.Less(t, m.NoiseVariance(), 1e-3)

	out, err := m.Transform(x)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 200, r)
	assert.Equal(t, 2, c)

	// Projections of the training data are centered.
	for j := 0; j < 2; j++ {
		assert.InDelta(t, 0, stat.Mean(mat.Col(nil, j, out), nil), 1e-9)
	}
}

func TestWhiten(t *testing.T) {
	x := planar(300)

	m, err := New(Config{NComponents: 2, Whiten: true})
	require.NoError(t, err)
	require.NoError(t, m.Fit(x))

	out, err := m.Transform(x)
	require.NoError(t, err)

	for j := 0; j < 2; j++ {
		v := stat.Variance(mat.Col(nil, j, out), nil)
		assert.InDelta(t, 1, v, 1e-6)
	}
}

func TestNoiseVarianceAllComponents(t *testing.T) {
	m, err := New(Config{NComponents: 3})
	require.NoError(t, err)
	require.NoError(t, m.Fit(planar(50)))
	assert.Zero(t, m.NoiseVariance())
}

func TestErrors(t *testing.T) {
	m, err := New(Config{NComponents: 2})
	require.NoError(t, err)

	_, err = m.Transform(planar(5))
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)

	err = m.Fit(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, bencherr.ErrDegenerateInput)

	big, err := New(Config{NComponents: 4})
	require.NoError(t, err)
	assert.ErrorIs(t, big.Fit(planar(10)), bencherr.ErrConfiguration)

	require.NoError(t, m.Fit(planar(10)))
	_, err = m.Transform(mat.NewDense(2, 4, nil))
	assert.ErrorIs(t, err, bencherr.ErrShapeMismatch)
	assert.False(t, math.IsNaN(m.NoiseVariance()))
}
