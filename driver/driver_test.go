package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/report"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func execute(t *testing.T, d Driver, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	bag, err := d.Schema.Parse(args)
	require.NoError(t, err)

	var out bytes.Buffer
	err = Execute(context.Background(), quietLogger(), d, bag, &out, false)

	return &out, err
}

func TestDFRegrEndToEnd(t *testing.T) {
	out, err := execute(t, DFRegr(),
		"--samples", "80", "--features", "4",
		"--num-trees", "5", "--repetitions", "2", "--max-depth", "6",
	)
	require.NoError(t, err)

	recs, err := report.ReadRecords(out)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, Library, rec.Library)
	assert.Equal(t, "df_regr", rec.Algorithm)
	assert.Equal(t, "synthetic", rec.Dataset)
	assert.Equal(t, []string{"training", "prediction"}, rec.Stages)
	assert.Equal(t, []string{"df_regr.fit", "df_regr.predict"}, rec.Functions)
	require.Len(t, rec.Times, 2)
	assert.Contains(t, rec.Timings, "df_regr.fit")

	require.Len(t, rec.Metrics, 2)
	assert.Equal(t, "rmse", rec.Metrics[0].Type)
	assert.Len(t, rec.Metrics[0].Values, 2)
	assert.Equal(t, "r2_score", rec.Metrics[1].Type)

	assert.Equal(t, []report.Shape{
		{Rows: 60, Columns: 4},
		{Rows: 20, Columns: 4},
		{Rows: 60, Columns: 1},
		{Rows: 20, Columns: 1},
	}, rec.Data)
	assert.Equal(t, 5, int(rec.AlgParams["n_estimators"].(float64)))

	var bag map[string]any
	require.NoError(t, json.Unmarshal(rec.Params, &bag))
	assert.Equal(t, "mse", bag["criterion"])
	assert.EqualValues(t, 2, bag["min-samples-split"])
}

func TestDFRegrDeterministicMetrics(t *testing.T) {
	args := []string{"--samples", "60", "--features", "3", "--num-trees", "3", "--repetitions", "1"}

	first, err := execute(t, DFRegr(), args...)
	require.NoError(t, err)

	second, err := execute(t, DFRegr(), args...)
	require.NoError(t, err)

	a, err := report.ReadRecords(first)
	require.NoError(t, err)

	b, err := report.ReadRecords(second)
	require.NoError(t, err)

	assert.Equal(t, a[0].Metrics, b[0].Metrics)
	assert.NotEqual(t, a[0].RunID, b[0].RunID)
}

func TestPCAEndToEnd(t *testing.T) {
	out, err := execute(t, PCA(),
		"--samples", "100", "--features", "6", "--repetitions", "2",
	)
	require.NoError(t, err)

	recs, err := report.ReadRecords(out)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, []string{"PCA.fit", "PCA.transform"}, rec.Functions)
	require.Len(t, rec.Metrics, 1)
	assert.Equal(t, MetricNoiseVariance, rec.Metrics[0].Type)
	assert.Equal(t, rec.Metrics[0].Values[0], rec.Metrics[0].Values[1])

	// Only the input arrays are described.
	assert.Equal(t, []report.Shape{{Rows: 75, Columns: 6}, {Rows: 25, Columns: 6}}, rec.Data)
	assert.EqualValues(t, 2, rec.AlgParams["n_components"], "min(6, (2+6)/3)")

	var bag map[string]any
	require.NoError(t, json.Unmarshal(rec.Params, &bag))
	assert.EqualValues(t, 2, bag["n-components"], "derived component count is recorded")
}

// writeDominant writes train and test CSVs whose first column carries
// nearly all of the variance.
func writeDominant(t *testing.T, dir string, cols int) (string, string) {
	t.Helper()

	rng := rand.New(rand.NewPCG(5, 6))

	write := func(name string, rows int) string {
		var b strings.Builder

		for i := 0; i < rows; i++ {
			fields := make([]string, cols)
			fields[0] = fmt.Sprint(rng.NormFloat64() * 10)

			for j := 1; j < cols; j++ {
				fields[j] = fmt.Sprint(rng.NormFloat64() * 0.1)
			}

			b.WriteString(strings.Join(fields, ",") + "\n")
		}

		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

		return path
	}

	return write("x_train.csv", 150), write("x_test.csv", 50)
}

func TestPCAVarianceFractionComponents(t *testing.T) {
	xTrain, xTest := writeDominant(t, t.TempDir(), 10)

	out, err := execute(t, PCA(),
		"--file-x-train", xTrain, "--file-x-test", xTest,
		"--repetitions", "1", "--n-components", "0.5", "--whiten",
	)
	require.NoError(t, err)

	recs, err := report.ReadRecords(out)
	require.NoError(t, err)

	rec := recs[0]
	assert.EqualValues(t, 1, rec.AlgParams["n_components"], "one axis explains over half the variance")
	assert.Equal(t, 0.5, rec.AlgParams["variance_ratio"])

	var bag map[string]any
	require.NoError(t, json.Unmarshal(rec.Params, &bag))
	assert.EqualValues(t, 1, bag["n-components"])

	assert.Greater(t, rec.Metrics[0].Values[0], 0.0, "nine discarded axes keep some variance")
}

func TestPCACountComponents(t *testing.T) {
	out, err := execute(t, PCA(),
		"--samples", "40", "--features", "4", "--repetitions", "1", "--n-components", "3",
	)
	require.NoError(t, err)

	recs, err := report.ReadRecords(out)
	require.NoError(t, err)
	assert.EqualValues(t, 3, recs[0].AlgParams["n_components"])
}

func TestDFRegrMetricsOption(t *testing.T) {
	out, err := execute(t, DFRegr(),
		"--samples", "60", "--features", "3", "--num-trees", "3", "--repetitions", "1",
		"--metrics", "mae,explained_variance", "--metrics", "rmse",
	)
	require.NoError(t, err)

	recs, err := report.ReadRecords(out)
	require.NoError(t, err)

	rec := recs[0]
	assert.Equal(t, []string{"mae", "explained_variance", "rmse"}, rec.MetricType)
	require.Len(t, rec.Metrics, 3)

	for _, m := range rec.Metrics {
		assert.Len(t, m.Values, 2, m.Type)
	}

	for _, bad := range [][]string{{"--metrics", "accuracy"}, {"--metrics", "mae,mae"}} {
		out, err := execute(t, DFRegr(), bad...)
		assert.ErrorIs(t, err, bencherr.ErrValidation, bad)
		assert.Zero(t, out.Len())
	}
}

func TestExecuteFailuresEmitNothing(t *testing.T) {
	tests := []struct {
		name string
		d    Driver
		args []string
		want error
	}{
		{
			name: "zero repetitions",
			d:    DFRegr(),
			args: []string{"--repetitions", "0"},
			want: bencherr.ErrConfiguration,
		},
		{
			name: "bad cpu",
			d:    PCA(),
			args: []string{"--pin-cpus", "x"},
			want: bencherr.ErrValidation,
		},
		{
			name: "too many components",
			d:    PCA(),
			args: []string{"--samples", "20", "--features", "3", "--n-components", "5"},
			want: bencherr.ErrConfiguration,
		},
		{
			name: "split leaves no test rows",
			d:    DFRegr(),
			args: []string{"--samples", "10", "--test-size", "10"},
			want: bencherr.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.d, tt.args...)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, out.Len())
		})
	}
}

func TestExecuteCancelled(t *testing.T) {
	d := DFRegr()

	bag, err := d.Schema.Parse([]string{"--samples", "40", "--num-trees", "2", "--repetitions", "1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err = Execute(ctx, quietLogger(), d, bag, &out, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}

func TestAllNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range All() {
		assert.False(t, seen[d.Name], d.Name)
		seen[d.Name] = true
		assert.NotNil(t, d.Run)
	}
}
