package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"polyfit/internal/stats"
	"polyfit/pkg/polyfit"
)

// newBenchCmd repeats one configuration over consecutive seeds and reports
// how often the best organism reaches the fitness floor.
func newBenchCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    runFlags
		trials   int
		parallel int
		floor    float64
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run independent trials of one configuration and summarize them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if trials <= 0 {
				return usageError("bench --trials must be > 0")
			}
			if parallel <= 0 {
				parallel = runtime.GOMAXPROCS(0)
			}
			base, err := flags.resolve(cmd.Flags(), opts.file.Run, opts.configPath != "")
			if err != nil {
				return err
			}

			started := time.Now()
			results := make([]stats.BenchmarkTrial, trials)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i := 0; i < trials; i++ {
				cfg := base
				cfg.ID = ""
				cfg.Seed = base.Seed + int64(i)
				cfg.Logger = opts.logger
				g.Go(func() error {
					trial, err := runTrial(ctx, cfg)
					if err != nil {
						return fmt.Errorf("trial seed=%d: %w", cfg.Seed, err)
					}
					results[i] = trial
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			summary, err := stats.SummarizeBenchmark(results, floor)
			if err != nil {
				return err
			}
			benchID := "bench-" + uuid.NewString()
			dir := filepath.Join(opts.file.Server.ArtifactsDir, benchID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create benchmark dir: %w", err)
			}
			if err := stats.WriteBenchmarkSummary(dir, summary); err != nil {
				return err
			}
			if jsonOut {
				return opts.printJSON(summary)
			}

			fmt.Fprintf(opts.out, "bench_id=%s trials=%s successes=%s success_rate=%.2f majority=%t elapsed=%s\n",
				benchID,
				humanize.Comma(int64(summary.Trials)),
				humanize.Comma(int64(summary.Successes)),
				summary.SuccessRate,
				summary.MajoritySucceeded,
				time.Since(started).Round(time.Millisecond),
			)
			fmt.Fprintf(opts.out, "best_fitness mean=%.4f std=%.4f best_error median=%s min=%s max=%s gens_mean=%.1f\n",
				summary.BestFitnessMean,
				summary.BestFitnessStd,
				humanize.FtoaWithDigits(summary.BestErrorMedian, 4),
				humanize.FtoaWithDigits(summary.BestErrorMin, 4),
				humanize.FtoaWithDigits(summary.BestErrorMax, 4),
				summary.GenerationsMean,
			)
			return nil
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().IntVar(&trials, "trials", 20, "number of independent trials")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent trials (0 uses GOMAXPROCS)")
	cmd.Flags().Float64Var(&floor, "floor", polyfit.DefaultFitnessFloor, "best fitness counted as a success")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	return cmd
}

// runTrial evolves one standalone run; trials are not persisted.
func runTrial(ctx context.Context, cfg polyfit.RunConfig) (stats.BenchmarkTrial, error) {
	run, err := polyfit.Configure(cfg)
	if err != nil {
		return stats.BenchmarkTrial{}, err
	}
	if err := run.Seed(); err != nil {
		return stats.BenchmarkTrial{}, err
	}
	history, err := run.Evolve(ctx)
	if err != nil {
		return stats.BenchmarkTrial{}, err
	}
	last := history[len(history)-1]
	return stats.BenchmarkTrial{
		RunID:       run.ID(),
		Seed:        cfg.Seed,
		Generations: len(history),
		BestFitness: last.BestFitness,
		BestError:   last.Best.Error,
	}, nil
}
