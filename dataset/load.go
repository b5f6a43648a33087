package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
	"gonum.org/v1/gonum/mat"
)

// Data is the train/test split handed to a driver. Targets are nil for
// unsupervised datasets.
type Data struct {
	Name   string
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []float64
	YTest  []float64
}

// Supervised reports whether d carries targets.
func (d *Data) Supervised() bool {
	return d.YTrain != nil
}

// Source says where a driver's data comes from: files when XTrain is set,
// the generator otherwise.
type Source struct {
	Name string

	XTrain string
	XTest  string
	YTrain string
	YTest  string

	Samples      int
	Features     int
	TestSize     params.FloatOrInt
	Distribution string
	Noise        float64
	// Targets asks for regression targets.
	Targets bool
}

// SourceFromBag reads the data source options from bag.
func SourceFromBag(bag params.Bag, targets bool) Source {
	src := Source{
		Name:         bag.String(params.OptDatasetName),
		XTrain:       bag.String(params.OptFileXTrain),
		XTest:        bag.String(params.OptFileXTest),
		YTrain:       bag.String(params.OptFileYTrain),
		YTest:        bag.String(params.OptFileYTest),
		Samples:      bag.Int(params.OptSamples),
		Features:     bag.Int(params.OptFeatures),
		Distribution: bag.String(params.OptGenerator),
		Noise:        1.0,
		Targets:      targets,
	}

	if ts, ok := bag.FloatOrInt(params.OptTestSize); ok {
		src.TestSize = ts
	}

	return src
}

// Load produces the data described by src. Generated data draws from rnd
// so that a fixed seed yields the same split.
func Load(ctx context.Context, src Source, rnd rand.Source) (*Data, error) {
	if src.XTrain != "" {
		return loadFiles(ctx, src)
	}

	gen := NewGenerator(Config{
		Samples:      src.Samples,
		Features:     src.Features,
		Noise:        src.Noise,
		Distribution: src.Distribution,
	}, rnd)

	var (
		x   *mat.Dense
		y   []float64
		err error
	)

	if src.Targets {
		x, y, err = gen.Regression()
	} else {
		x, err = gen.Features()
	}

	if err != nil {
		return nil, bencherr.Configuration("dataset", "%v", err)
	}

	data, err := Split(x, y, src.TestSize, rand.New(rnd))
	if err != nil {
		return nil, err
	}

	data.Name = src.Name

	return data, nil
}

func loadFiles(ctx context.Context, src Source) (*Data, error) {
	if src.XTest == "" {
		return nil, bencherr.Configuration(params.OptFileXTest,
			"required together with --%s", params.OptFileXTrain)
	}

	data := &Data{Name: src.Name}

	var err error

	if data.XTrain, err = ReadMatrix(src.XTrain); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if data.XTest, err = ReadMatrix(src.XTest); err != nil {
		return nil, err
	}

	_, trainCols := data.XTrain.Dims()
	if _, testCols := data.XTest.Dims(); testCols != trainCols {
		return nil, bencherr.ShapeMismatch("dataset",
			"train has %d columns, test %d", trainCols, testCols)
	}

	if !src.Targets {
		return data, nil
	}

	if src.YTrain == "" || src.YTest == "" {
		return nil, bencherr.Configuration(params.OptFileYTrain,
			"supervised benchmarks need --%s and --%s",
			params.OptFileYTrain, params.OptFileYTest)
	}

	if data.YTrain, err = readTargets(src.YTrain, data.XTrain); err != nil {
		return nil, err
	}

	if data.YTest, err = readTargets(src.YTest, data.XTest); err != nil {
		return nil, err
	}

	return data, nil
}

func readTargets(path string, x *mat.Dense) ([]float64, error) {
	m, err := ReadMatrix(path)
	if err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	if cols != 1 {
		return nil, bencherr.ShapeMismatch(path, "targets need one column, got %d", cols)
	}

	if xRows, _ := x.Dims(); xRows != rows {
		return nil, bencherr.ShapeMismatch(path, "%d targets for %d rows", rows, xRows)
	}

	return mat.Col(nil, 0, m), nil
}

// ReadMatrix parses a numeric CSV file. A first row that does not parse as
// numbers is taken as a header and skipped.
func ReadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return m, nil
}

func readCSV(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		values []float64
		cols   int
		rows   int
	)

	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		row, perr := parseRow(record)
		if perr != nil {
			if line == 1 {
				continue
			}

			return nil, fmt.Errorf("line %d: %w", line, perr)
		}

		if cols == 0 {
			cols = len(row)
		}

		values = append(values, row...)
		rows++
	}

	if rows == 0 {
		return nil, errors.New("no data rows")
	}

	return mat.NewDense(rows, cols, values), nil
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))

	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}

		row[i] = v
	}

	return row, nil
}
