package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/params"
)

// Env describes the process-wide conditions one benchmark run executes
// under.
type Env struct {
	Seed    int64
	Threads int
	CPUs    []int
	// Vars are KEY=VALUE pairs exported for the duration of the run.
	Vars []string
}

// EnvFromBag reads the run context options from bag.
func EnvFromBag(bag params.Bag) (Env, error) {
	env := Env{
		Seed:    int64(bag.Int(params.OptSeed)),
		Threads: bag.Int(params.OptThreads),
	}

	if env.Threads < 0 {
		return Env{}, bencherr.Validation(params.OptThreads,
			"must not be negative, got %d", env.Threads)
	}

	for _, tok := range bag.Strings(params.OptPinCPUs) {
		cpu, err := strconv.Atoi(tok)
		if err != nil || cpu < 0 {
			return Env{}, bencherr.Validation(params.OptPinCPUs,
				"%q is not a CPU id", tok)
		}

		env.CPUs = append(env.CPUs, cpu)
	}

	for _, kv := range bag.Strings(params.OptEnv) {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return Env{}, bencherr.Validation(params.OptEnv,
				"%q is not KEY=VALUE", kv)
		}

		env.Vars = append(env.Vars, kv)
	}

	if env.Threads > 0 && !env.hasVar("OMP_NUM_THREADS") {
		env.Vars = append(env.Vars, "OMP_NUM_THREADS="+strconv.Itoa(env.Threads))
	}

	return env, nil
}

func (e Env) hasVar(key string) bool {
	for _, kv := range e.Vars {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			return true
		}
	}

	return false
}

// Scope is what a benchmark body receives from WithContext. All seeded
// randomness of the run must come from Rand or Source.
type Scope struct {
	Env    Env
	Source rand.Source
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Workers returns the parallelism the body may use internally.
func (s *Scope) Workers() int {
	if s.Env.Threads > 0 {
		return s.Env.Threads
	}

	return runtime.GOMAXPROCS(0)
}

// WithContext establishes env, runs body and restores the previous process
// state on every exit path, including a panic in body. Errors from body are
// returned as is; restore failures are joined onto them.
func WithContext[T any](
	ctx context.Context,
	logger *slog.Logger,
	env Env,
	body func(context.Context, *Scope) (T, error),
) (result T, err error) {
	var releases []func() error

	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			if rerr := releases[i](); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	for _, kv := range env.Vars {
		release, serr := setenv(kv)
		if serr != nil {
			return result, serr
		}

		releases = append(releases, release)
	}

	if env.Threads > 0 {
		prev := runtime.GOMAXPROCS(env.Threads)
		releases = append(releases, func() error {
			runtime.GOMAXPROCS(prev)

			return nil
		})
	}

	if len(env.CPUs) > 0 {
		release, perr := pinCPUs(env.CPUs)

		switch {
		case errors.Is(perr, errAffinityUnsupported):
			logger.WarnContext(ctx, "cpu pinning not supported, ignoring",
				slog.Any("cpus", env.CPUs),
			)
		case perr != nil:
			return result, bencherr.Configuration(params.OptPinCPUs, "%v", perr)
		default:
			releases = append(releases, release)
		}
	}

	src := rand.NewPCG(uint64(env.Seed), uint64(env.Seed))
	scope := &Scope{
		Env:    env,
		Source: src,
		Rand:   rand.New(src),
		Logger: logger,
	}

	logger.DebugContext(ctx, "run context established",
		slog.Int64("seed", env.Seed),
		slog.Int("threads", env.Threads),
		slog.Any("cpus", env.CPUs),
		slog.Any("env", env.Vars),
	)

	return body(ctx, scope)
}

func setenv(kv string) (func() error, error) {
	key, value, _ := strings.Cut(kv, "=")
	prev, had := os.LookupEnv(key)

	if err := os.Setenv(key, value); err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}

	return func() error {
		if had {
			return os.Setenv(key, prev)
		}

		return os.Unsetenv(key)
	}, nil
}
