package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
)

func TestMeasureReturnsDirectCallValue(t *testing.T) {
	square := func(x int) int { return x * x }

	for reps := 1; reps <= 4; reps++ {
		timing, err := Measure(Policy{Repetitions: reps, Reduction: ReduceMin}, func() (int, error) {
			return square(7), nil
		})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, timing.Duration, time.Duration(0))
		assert.Equal(t, square(7), timing.Value)
		assert.Equal(t, reps, timing.Trials)
	}
}

func TestMeasureZeroRepetitions(t *testing.T) {
	calls := 0

	_, err := Measure(Policy{Repetitions: 0, Reduction: ReduceMin}, func() (int, error) {
		calls++
		return 0, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, bencherr.ErrConfiguration)
	assert.Zero(t, calls, "no trial may run for an invalid policy")
}

func TestMeasureInvalidPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"negative repetitions", Policy{Repetitions: -1, Reduction: ReduceMin}},
		{"negative warmup", Policy{Repetitions: 3, Warmup: -1, Reduction: ReduceMin}},
		{"negative time limit", Policy{Repetitions: 3, TimeLimit: -time.Second, Reduction: ReduceMin}},
		{"unknown reduction", Policy{Repetitions: 3, Reduction: "mean"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MeasureErr(tt.policy, func() error { return nil })
			assert.ErrorIs(t, err, bencherr.ErrConfiguration)
		})
	}
}

func TestMeasureReturnsLastTrialValue(t *testing.T) {
	calls := 0

	timing, err := Measure(DefaultPolicy(), func() (int, error) {
		calls++
		return calls, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, timing.Value)
}

func TestMeasureFailFast(t *testing.T) {
	boom := errors.New("fit diverged")
	calls := 0

	timing, err := Measure(Policy{Repetitions: 5, Reduction: ReduceMin}, func() (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}

		return calls, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "no trial runs after a failure")
	assert.Zero(t, timing.Value)
	assert.Zero(t, timing.Duration)
}

func TestMeasureOverrideFromBag(t *testing.T) {
	bag, err := params.CommonOptions().Parse([]string{
		"--repetitions", "5", "--warmup", "2",
	})
	require.NoError(t, err)

	policy := PolicyFromBag(bag)
	require.Equal(t, 5, policy.Repetitions)
	require.Equal(t, 2, policy.Warmup)

	// Trial i sleeps longer the earlier it runs, except the first two
	// which are fast: a reduction over all five would pick them.
	delays := []time.Duration{0, 0, 30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond}
	calls := 0

	timing, err := Measure(policy, func() (int, error) {
		time.Sleep(delays[calls])
		calls++

		return calls, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, timing.Trials)
	assert.GreaterOrEqual(t, timing.Duration, 10*time.Millisecond,
		"warm-up trials must be excluded from the minimum")
	assert.Less(t, timing.Duration, 20*time.Millisecond)
}

func TestMeasureTimeLimit(t *testing.T) {
	calls := 0

	timing, err := Measure(Policy{
		Repetitions: 100,
		TimeLimit:   15 * time.Millisecond,
		Reduction:   ReduceMin,
	}, func() (int, error) {
		calls++
		time.Sleep(10 * time.Millisecond)

		return calls, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, timing.Trials)
	assert.Equal(t, 2, timing.Value)
}

func TestReduce(t *testing.T) {
	ms := func(vals ...int) []time.Duration {
		out := make([]time.Duration, len(vals))
		for i, v := range vals {
			out[i] = time.Duration(v) * time.Millisecond
		}

		return out
	}

	tests := []struct {
		name    string
		policy  Policy
		samples []time.Duration
		want    time.Duration
	}{
		{"min over all", Policy{Reduction: ReduceMin}, ms(5, 3, 4), 3 * time.Millisecond},
		{"warmup dropped", Policy{Warmup: 1, Reduction: ReduceMin}, ms(1, 3, 4), 3 * time.Millisecond},
		{"warmup keeps one sample", Policy{Warmup: 3, Reduction: ReduceMin}, ms(1, 3), 3 * time.Millisecond},
		{"single sample", Policy{Warmup: 1, Reduction: ReduceMin}, ms(7), 7 * time.Millisecond},
		{"box drops outlier", Policy{Reduction: ReduceBox}, ms(10, 10, 11, 11, 12, 12, 100), 11 * time.Millisecond},
		{"box equal samples", Policy{Reduction: ReduceBox}, ms(4, 4, 4), 4 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reduce(tt.policy, tt.samples))
		})
	}
}

func TestPolicyFromBagDefaults(t *testing.T) {
	assert.Equal(t, DefaultPolicy(), PolicyFromBag(params.NewBag(nil)))

	bag := params.NewBag(map[string]any{
		params.OptTimeLimit: 1.5,
		params.OptReduction: "box",
	})
	p := PolicyFromBag(bag)

	assert.Equal(t, 1500*time.Millisecond, p.TimeLimit)
	assert.Equal(t, ReduceBox, p.Reduction)
	assert.Equal(t, 5, p.Repetitions)
}
