package dataset

import (
	"math/rand/v2"

	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
	"gonum.org/v1/gonum/mat"
)

// Split shuffles the rows of x (and y, when given) with rng and cuts off
// testSize rows for the test set.
func Split(x *mat.Dense, y []float64, testSize params.FloatOrInt, rng *rand.Rand) (*Data, error) {
	rows, cols := x.Dims()

	if y != nil && len(y) != rows {
		return nil, bencherr.ShapeMismatch("dataset", "%d targets for %d rows", len(y), rows)
	}

	nTest := testSize.Resolve(rows)
	if nTest <= 0 || nTest >= rows {
		return nil, bencherr.Configuration(params.OptTestSize,
			"%s of %d rows leaves an empty split", testSize, rows)
	}

	perm := rng.Perm(rows)
	nTrain := rows - nTest

	data := &Data{
		XTrain: mat.NewDense(nTrain, cols, nil),
		XTest:  mat.NewDense(nTest, cols, nil),
	}

	if y != nil {
		data.YTrain = make([]float64, nTrain)
		data.YTest = make([]float64, nTest)
	}

	for i, src := range perm {
		dstX, dstY, row := data.XTrain, data.YTrain, i
		if i >= nTrain {
			dstX, dstY, row = data.XTest, data.YTest, i-nTrain
		}

		dstX.SetRow(row, x.RawRowView(src))

		if y != nil {
			dstY[row] = y[src]
		}
	}

	return data, nil
}
