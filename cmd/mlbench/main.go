// Package main provides the CLI entry point for mlbench, a benchmark
// harness for machine learning estimators.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/weiihann/mlbench/bencherr"
	"github.com/weiihann/mlbench/config"
	"github.com/weiihann/mlbench/driver"
	"github.com/weiihann/mlbench/params"
	"github.com/weiihann/mlbench/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line args and returns the process exit code.
// Failures are reported on stderr as "<Category>: <message>".
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger, level)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", bencherr.Category(err), err)
	}

	return bencherr.ExitCode(err)
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mlbench",
		Short: "Benchmark harness for machine learning estimators",
		Long: `Mlbench times the fit, predict and transform stages of machine learning
estimators under a fixed repetition policy and prints one JSON result
record per run on stdout. Records from many runs can be aggregated with
the summarize command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML or TOML file with option defaults (default: ./mlbench.{yaml,yml,toml} if present)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return bencherr.Validation("", "%v", err)
	})

	for _, d := range driver.All() {
		root.AddCommand(newDriverCmd(logger, level, &configPath, d))
	}

	root.AddCommand(newSummarizeCmd())

	return root
}

func newDriverCmd(
	logger *slog.Logger,
	level *slog.LevelVar,
	configPath *string,
	d driver.Driver,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   d.Name,
		Short: d.Short,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return bencherr.Validation("", "unexpected arguments %q", args)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			if err := cfg.Apply(cmd.Flags()); err != nil {
				return err
			}

			bag, err := d.Schema.Resolve(cmd.Flags())
			if err != nil {
				return err
			}

			if bag.Bool(params.OptVerbose) {
				level.Set(slog.LevelDebug)
			}

			if cfg.Path != "" {
				logger.DebugContext(cmd.Context(), "config loaded",
					slog.String("path", cfg.Path),
				)
			}

			out := cmd.OutOrStdout()

			return driver.Execute(cmd.Context(), logger, d, bag, out,
				wantIndent(out, bag.Bool(params.OptOutputIndent)))
		},
	}

	d.Schema.Register(cmd.Flags())

	return cmd
}

// wantIndent turns indentation on when asked for or when w is a terminal.
func wantIndent(w io.Writer, requested bool) bool {
	if requested {
		return true
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newSummarizeCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "summarize [files...]",
		Short: "Aggregate result records into a comparison table",
		Long: `Read result records from the given files, or stdin when none are given,
and print a markdown table comparing stage times across runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			if outputJSON {
				if err := report.GenerateJSON(cmd.OutOrStdout(), records); err != nil {
					return fmt.Errorf("generate JSON report: %w", err)
				}

				return nil
			}

			if err := report.Generate(cmd.OutOrStdout(), records); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output records as a JSON array instead of table")

	return cmd
}

func readRecords(stdin io.Reader, paths []string) ([]report.Record, error) {
	if len(paths) == 0 {
		return report.ReadRecords(stdin)
	}

	var all []report.Record

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		records, err := report.ReadRecords(f)
		cerr := f.Close()

		if err = errors.Join(err, cerr); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		all = append(all, records...)
	}

	return all, nil
}
