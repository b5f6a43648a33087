// Package report builds, emits and aggregates benchmark result records.
// One driver run emits exactly one Record as a single JSON line; the
// aggregation side reads any number of them back.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
)

// Shape is the row/column descriptor of one data array.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Dimensioned is anything with a queryable 2-D shape, e.g. a gonum
// mat.Matrix.
type Dimensioned interface {
	Dims() (r, c int)
}

// Vector adapts a 1-D array (targets, predictions) to Dimensioned as a
// single column.
type Vector []float64

// Dims returns len(v) rows and one column.
func (v Vector) Dims() (int, int) {
	return len(v), 1
}

// Parameterized is implemented by algorithm instances that can describe
// their effective configuration.
type Parameterized interface {
	Params() map[string]any
}

// Metric is one tagged metric entry, usually [train, test] values.
type Metric struct {
	Type   string    `json:"type"`
	Values []float64 `json:"values"`
}

// Record is the canonical output unit of a benchmark run. Key names are
// shared by every driver.
type Record struct {
	RunID      string             `json:"run_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Library    string             `json:"library"`
	Algorithm  string             `json:"algorithm"`
	Dataset    string             `json:"dataset,omitempty"`
	Stages     []string           `json:"stages"`
	Functions  []string           `json:"functions"`
	Times      []float64          `json:"times"`
	Timings    map[string]float64 `json:"timings"`
	MetricType []string           `json:"metric_type"`
	Metrics    []Metric           `json:"metrics"`
	Data       []Shape            `json:"data"`
	Params     json.RawMessage    `json:"params"`
	AlgParams  map[string]any     `json:"algorithm_parameters,omitempty"`
}

// Input is what a driver hands to Emit.
type Input struct {
	Library    string
	Algorithm  string
	Dataset    string
	Stages     []string
	Params     params.Bag
	Functions  []string
	Times      []time.Duration
	MetricType []string
	Metrics    [][]float64
	Data       []Dimensioned
	Instance   any
}

// Validate checks the length invariants between parallel lists of in.
func (in Input) Validate() error {
	if len(in.Stages) == 0 {
		return bencherr.Schema("stages", "no stages declared")
	}

	if len(in.Functions) != len(in.Stages) {
		return bencherr.Schema("functions",
			"%d functions for %d stages", len(in.Functions), len(in.Stages))
	}

	if len(in.Times) != len(in.Stages) {
		return bencherr.Schema("times",
			"%d times for %d stages", len(in.Times), len(in.Stages))
	}

	for i, d := range in.Times {
		if d < 0 {
			return bencherr.Schema("times",
				"stage %q has negative time %s", in.Stages[i], d)
		}
	}

	if len(in.MetricType) != len(in.Metrics) {
		return bencherr.Schema("metrics",
			"%d metric types for %d metric entries", len(in.MetricType), len(in.Metrics))
	}

	for i, values := range in.Metrics {
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return bencherr.Schema("metrics",
					"metric %q has non-finite value %v", in.MetricType[i], v)
			}
		}
	}

	seen := make(map[string]bool, len(in.Functions))
	for _, fn := range in.Functions {
		if seen[fn] {
			return bencherr.Schema("functions", "duplicate function %q", fn)
		}

		seen[fn] = true
	}

	return nil
}

// Build validates in and assembles the Record.
func Build(in Input) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	bag, err := json.Marshal(in.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	rec := &Record{
		RunID:      uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Library:    in.Library,
		Algorithm:  in.Algorithm,
		Dataset:    in.Dataset,
		Stages:     append([]string(nil), in.Stages...),
		Functions:  append([]string(nil), in.Functions...),
		Times:      make([]float64, len(in.Times)),
		Timings:    make(map[string]float64, len(in.Times)),
		MetricType: append([]string(nil), in.MetricType...),
		Metrics:    make([]Metric, len(in.Metrics)),
		Data:       make([]Shape, 0, len(in.Data)),
		Params:     bag,
	}

	for i, d := range in.Times {
		rec.Times[i] = d.Seconds()
		rec.Timings[in.Functions[i]] = d.Seconds()
	}

	for i, values := range in.Metrics {
		rec.Metrics[i] = Metric{
			Type:   in.MetricType[i],
			Values: append([]float64(nil), values...),
		}
	}

	for _, d := range in.Data {
		if d == nil {
			continue
		}

		r, c := d.Dims()
		rec.Data = append(rec.Data, Shape{Rows: r, Columns: c})
	}

	if p, ok := in.Instance.(Parameterized); ok {
		rec.AlgParams = p.Params()
	}

	return rec, nil
}

// Emit builds the record for in and writes it to w as one JSON document
// followed by a newline. Nothing is written when validation fails.
func Emit(w io.Writer, in Input, indent bool) error {
	rec, err := Build(in)
	if err != nil {
		return err
	}

	return Write(w, rec, indent)
}

// Write encodes rec to w with a single write call.
func Write(w io.Writer, rec *Record, indent bool) error {
	var (
		data []byte
		err  error
	)

	if indent {
		data, err = json.MarshalIndent(rec, "", "  ")
	} else {
		data, err = json.Marshal(rec)
	}

	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}
