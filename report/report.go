package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Generate writes a markdown comparison table for the given records.
func Generate(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := findFastest(records)

	// Header.
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	// Timing table.
	fmt.Fprintln(w, "| Algorithm | Library | Stage | Function "+
		"| Data | Time | Speedup |")
	fmt.Fprintln(w, "|-----------|---------|-------|----------"+
		"|------|------|---------|")

	for _, r := range records {
		for i, stage := range r.Stages {
			speedup := 1.0
			if best := fastest[stageKey(r.Algorithm, stage)]; best > 0 && r.Times[i] > 0 {
				speedup = r.Times[i] / best
			}

			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %.2fx |\n",
				r.Algorithm,
				r.Library,
				stage,
				r.Functions[i],
				formatShapes(r.Data),
				formatSeconds(r.Times[i]),
				speedup,
			)
		}
	}

	fmt.Fprintln(w)

	// Metric rows.
	fmt.Fprintln(w, "| Algorithm | Library | Metric | Values |")
	fmt.Fprintln(w, "|-----------|---------|--------|--------|")

	for _, r := range records {
		for _, m := range r.Metrics {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				r.Algorithm,
				r.Library,
				m.Type,
				formatValues(m.Values),
			)
		}
	}

	return nil
}

// GenerateJSON writes records as a JSON array to w.
func GenerateJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

func stageKey(algorithm, stage string) string {
	return algorithm + "\x00" + stage
}

// findFastest returns the lowest positive time per algorithm and stage.
func findFastest(records []Record) map[string]float64 {
	fastest := make(map[string]float64)

	for _, r := range records {
		for i, stage := range r.Stages {
			t := r.Times[i]
			if t <= 0 {
				continue
			}

			key := stageKey(r.Algorithm, stage)
			if best, ok := fastest[key]; !ok || t < best {
				fastest[key] = t
			}
		}
	}

	return fastest
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.2fms", s*1000)
	}

	return fmt.Sprintf("%.2fs", s)
}

func formatShapes(shapes []Shape) string {
	if len(shapes) == 0 {
		return "-"
	}

	parts := make([]string, len(shapes))
	for i, s := range shapes {
		parts[i] = fmt.Sprintf("%dx%d", s.Rows, s.Columns)
	}

	return strings.Join(parts, ", ")
}

func formatValues(values []float64) string {
	if len(values) == 0 {
		return "-"
	}

	parts := make([]string, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			parts[i] = "NaN"

			continue
		}

		formatted := strconv.FormatFloat(v, 'f', 4, 64)
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
		parts[i] = formatted
	}

	return strings.Join(parts, " / ")
}
