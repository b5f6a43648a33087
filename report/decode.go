package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/weiihann/mlbench/bencherr"
)

// ReadRecords decodes a stream of concatenated JSON records, as produced
// by appending the stdout of several driver runs.
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)

	var records []Record

	for {
		var rec Record

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records), err)
		}

		if err := rec.check(); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}

		records = append(records, rec)
	}
}

// check re-applies the list invariants to a decoded record.
func (r *Record) check() error {
	if r.Algorithm == "" {
		return bencherr.Schema("algorithm", "missing")
	}

	if len(r.Stages) != len(r.Times) || len(r.Stages) != len(r.Functions) {
		return bencherr.Schema("stages",
			"%d stages, %d functions, %d times",
			len(r.Stages), len(r.Functions), len(r.Times))
	}

	if len(r.MetricType) != len(r.Metrics) {
		return bencherr.Schema("metrics",
			"%d metric types for %d metric entries", len(r.MetricType), len(r.Metrics))
	}

	return nil
}
