// Package harness times library calls under a repetition policy and
// establishes the process-wide run context (seed, threads, CPU affinity,
// environment) a benchmark executes in.
package harness

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
)

// Reduction selects how trial durations collapse into one reported time.
type Reduction string

const (
	// ReduceMin reports the fastest kept trial.
	ReduceMin Reduction = "min"
	// ReduceBox reports the mean of the kept trials inside the
	// 1.5 IQR fences.
	ReduceBox Reduction = "box"
)

// Policy governs how many times a function is invoked and how the
// resulting samples are reduced.
type Policy struct {
	// Repetitions is the number of trials to run.
	Repetitions int
	// Warmup leading trials are dropped before reduction. At least one
	// sample is always kept.
	Warmup int
	// TimeLimit stops repeating once the cumulative trial time exceeds
	// it. Zero disables the limit. A running trial is never interrupted.
	TimeLimit time.Duration
	Reduction Reduction
}

// DefaultPolicy returns 5 trials with the first one discarded, no time
// limit, minimum reduction.
func DefaultPolicy() Policy {
	return Policy{
		Repetitions: 5,
		Warmup:      1,
		Reduction:   ReduceMin,
	}
}

// PolicyFromBag builds the policy from the repetition options in bag,
// keeping DefaultPolicy values for options the bag does not carry.
func PolicyFromBag(bag params.Bag) Policy {
	p := DefaultPolicy()

	if n, ok := bag.OptInt(params.OptRepetitions); ok {
		p.Repetitions = n
	}

	if n, ok := bag.OptInt(params.OptWarmup); ok {
		p.Warmup = n
	}

	if s, ok := bag.OptFloat(params.OptTimeLimit); ok {
		p.TimeLimit = time.Duration(s * float64(time.Second))
	}

	if r := bag.String(params.OptReduction); r != "" {
		p.Reduction = Reduction(r)
	}

	return p
}

// Validate reports a ConfigurationError for policies that cannot produce a
// timing.
func (p Policy) Validate() error {
	if p.Repetitions <= 0 {
		return bencherr.Configuration(params.OptRepetitions,
			"must be at least 1, got %d", p.Repetitions)
	}

	if p.Warmup < 0 {
		return bencherr.Configuration(params.OptWarmup,
			"must not be negative, got %d", p.Warmup)
	}

	if p.TimeLimit < 0 {
		return bencherr.Configuration(params.OptTimeLimit,
			"must not be negative, got %s", p.TimeLimit)
	}

	switch p.Reduction {
	case ReduceMin, ReduceBox:
	default:
		return bencherr.Configuration(params.OptReduction,
			"unknown reduction %q", p.Reduction)
	}

	return nil
}

// Timing is the outcome of one measurement.
type Timing[T any] struct {
	// Duration is the reduced trial time.
	Duration time.Duration
	// Value is what the last executed trial returned.
	Value T
	// Trials is the number of trials actually executed.
	Trials int
}

// Seconds returns the reduced duration in seconds.
func (t Timing[T]) Seconds() float64 {
	return t.Duration.Seconds()
}

// Measure runs fn as governed by policy and reduces the per-trial wall
// clock times to one duration. The first failing trial aborts the whole
// measurement.
func Measure[T any](policy Policy, fn func() (T, error)) (Timing[T], error) {
	var timing Timing[T]

	if err := policy.Validate(); err != nil {
		return timing, err
	}

	samples := make([]time.Duration, 0, policy.Repetitions)

	var total time.Duration

	for trial := 0; trial < policy.Repetitions; trial++ {
		start := time.Now()
		value, err := fn()
		elapsed := time.Since(start)

		if err != nil {
			return Timing[T]{}, fmt.Errorf("trial %d: %w", trial, err)
		}

		samples = append(samples, elapsed)
		timing.Value = value
		total += elapsed

		if policy.TimeLimit > 0 && total > policy.TimeLimit {
			break
		}
	}

	timing.Trials = len(samples)
	timing.Duration = reduce(policy, samples)

	return timing, nil
}

// MeasureErr is Measure for functions that return only an error.
func MeasureErr(policy Policy, fn func() error) (time.Duration, error) {
	timing, err := Measure(policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return timing.Duration, err
}

func reduce(policy Policy, samples []time.Duration) time.Duration {
	drop := min(policy.Warmup, len(samples)-1)
	kept := slices.Clone(samples[drop:])

	if policy.Reduction == ReduceBox {
		return boxFilter(kept)
	}

	return slices.Min(kept)
}

// boxFilter averages the samples strictly inside the 1.5 IQR fences
// around the first and third quartiles.
func boxFilter(samples []time.Duration) time.Duration {
	slices.Sort(samples)

	n := len(samples)
	if n == 1 {
		return samples[0]
	}

	q1 := float64(samples[int(float64(n)*0.25)])
	q3 := float64(samples[int(float64(n)*0.75)])
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	var (
		sum  float64
		kept int
	)

	for _, s := range samples {
		if v := float64(s); v > lower && v < upper {
			sum += v
			kept++
		}
	}

	// All samples equal: the open fences exclude every one of them.
	if kept == 0 {
		return samples[n/2]
	}

	return time.Duration(math.Round(sum / float64(kept)))
}
