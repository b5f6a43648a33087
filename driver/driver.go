// Package driver holds the per-algorithm benchmarks. A driver maps its
// options onto an estimator, times the estimator's stages under the
// repetition policy and describes the outcome as a report.Input.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/weiihann/mlbench/harness"
	"github.com/weiihann/mlbench/params"
	"github.com/weiihann/mlbench/report"
)

// Library is recorded as the library of every record this binary emits.
const Library = "mlbench"

// Driver is one benchmark, exposed as a CLI subcommand.
type Driver struct {
	Name   string
	Short  string
	Schema params.Schema
	// Run executes the benchmark inside an established run context.
	Run func(ctx context.Context, scope *harness.Scope, bag params.Bag, policy harness.Policy) (report.Input, error)
}

// All returns every driver in subcommand order.
func All() []Driver {
	return []Driver{DFRegr(), PCA()}
}

// Execute runs d with the resolved bag and writes exactly one record to w.
// Nothing is written when any stage fails.
func Execute(
	ctx context.Context,
	logger *slog.Logger,
	d Driver,
	bag params.Bag,
	w io.Writer,
	indent bool,
) error {
	policy := harness.PolicyFromBag(bag)
	if err := policy.Validate(); err != nil {
		return err
	}

	env, err := harness.EnvFromBag(bag)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.String("driver", d.Name),
		slog.Int("repetitions", policy.Repetitions),
		slog.Int("warmup", policy.Warmup),
		slog.String("reduction", string(policy.Reduction)),
		slog.Int64("seed", env.Seed),
	)

	in, err := harness.WithContext(ctx, logger, env,
		func(ctx context.Context, scope *harness.Scope) (report.Input, error) {
			return d.Run(ctx, scope, bag, policy)
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	in.Library = Library
	in.Algorithm = d.Name

	if err := report.Emit(w, in, indent); err != nil {
		return err
	}

	for i, stage := range in.Stages {
		logger.InfoContext(ctx, "stage timed",
			slog.String("stage", stage),
			slog.String("function", in.Functions[i]),
			slog.Duration("time", in.Times[i]),
		)
	}

	return nil
}

func mustCount(n int) params.FloatOrInt {
	v, err := params.Count(n)
	if err != nil {
		panic(err)
	}

	return v
}
