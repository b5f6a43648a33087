package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateSpeedup(t *testing.T) {
	records := []Record{
		{
			Library:    "mlbench",
			Algorithm:  "df_regr",
			Stages:     []string{"training", "prediction"},
			Functions:  []string{"df_regr.fit", "df_regr.predict"},
			Times:      []float64{1.0, 0.01},
			MetricType: []string{"rmse"},
			Metrics:    []Metric{{Type: "rmse", Values: []float64{1.1, 1.25}}},
			Data:       []Shape{{Rows: 750, Columns: 20}, {Rows: 250, Columns: 20}},
		},
		{
			Library:   "mlbench",
			Algorithm: "df_regr",
			Stages:    []string{"training", "prediction"},
			Functions: []string{"df_regr.fit", "df_regr.predict"},
			Times:     []float64{2.0, 0.01},
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, records); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "2.00x") {
		t.Error("expected 2.00x speedup for the slower training run")
	}
	if !strings.Contains(output, "750x20, 250x20") {
		t.Error("expected data shapes in output")
	}
	if !strings.Contains(output, "1.1 / 1.25") {
		t.Error("expected metric values in output")
	}
	if !strings.Contains(output, "10.00ms") {
		t.Error("expected prediction time in milliseconds")
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, nil)
	if err == nil {
		t.Error("expected error for empty results")
	}
}

func TestGenerateJSON(t *testing.T) {
	records := []Record{
		{Algorithm: "PCA", Stages: []string{"training"}, Times: []float64{0.5}},
	}

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, records); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var parsed []Record
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(parsed) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed))
	}
	if parsed[0].Algorithm != "PCA" {
		t.Errorf("algorithm = %q, want PCA", parsed[0].Algorithm)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0.00ms"},
		{0.0005, "0.50ms"},
		{0.42, "420.00ms"},
		{1, "1.00s"},
		{1.5, "1.50s"},
		{60, "60.00s"},
	}

	for _, tt := range tests {
		got := formatSeconds(tt.input)
		if got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatValues(t *testing.T) {
	tests := []struct {
		input []float64
		want  string
	}{
		{nil, "-"},
		{[]float64{0.5}, "0.5"},
		{[]float64{1, 0.12345}, "1 / 0.1235"},
		{[]float64{100}, "100"},
	}

	for _, tt := range tests {
		got := formatValues(tt.input)
		if got != tt.want {
			t.Errorf("formatValues(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
