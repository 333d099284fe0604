package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"polyfit/internal/mesh"
	"polyfit/internal/model"
	"polyfit/internal/stats"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted runs",
	}
	cmd.AddCommand(newRunsListCmd(opts), newRunsShowCmd(opts), newRunsDeleteCmd(opts))
	return cmd
}

func newRunsListCmd(opts *rootOptions) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			entries, err := stats.ListRunIndex(opts.file.Server.ArtifactsDir)
			if err != nil {
				return err
			}
			if len(entries) > limit {
				entries = entries[:limit]
			}
			if jsonOut {
				return opts.printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(opts.out, "no runs found")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(opts.out, "run_id=%s created_at=%s kind=%s selection=%s state=%s seed=%d gens=%s final_best_fitness=%.6f final_best_error=%s\n",
					e.RunID,
					e.CreatedAtUTC,
					e.Kind,
					e.Selection,
					e.State,
					e.Seed,
					humanize.Comma(int64(e.Generations)),
					e.FinalBestFitness,
					humanize.FtoaWithDigits(e.FinalBestError, 6),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs list as JSON")
	return cmd
}

// newRunsShowCmd prints the stored record of a run, falling back to its
// artifacts when the store does not hold it. Benchmark ids print their
// summary.
func newRunsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|bench-id>",
		Short: "Print one run or benchmark as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			client, err := opts.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			record, ok, err := client.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if ok {
				return opts.printJSON(record)
			}

			base := opts.file.Server.ArtifactsDir
			cfg, ok, err := stats.ReadRunConfig(base, runID)
			if err != nil {
				return err
			}
			if !ok {
				summary, ok, err := stats.ReadBenchmarkSummary(base, runID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("run not found: %s", runID)
				}
				return opts.printJSON(summary)
			}
			history, _, err := stats.ReadHistory(base, runID)
			if err != nil {
				return err
			}
			series, _, err := stats.ReadAverageErrorSeries(base, runID)
			if err != nil {
				return err
			}
			return opts.printJSON(struct {
				Config       stats.RunConfig          `json:"config"`
				History      []model.GenerationRecord `json:"history"`
				AverageError []float64                `json:"average_error"`
			}{Config: cfg, History: history, AverageError: series})
		},
	}
}

func newRunsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run from the store; artifacts are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "deleted run_id=%s\n", args[0])
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts into an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := resolveRunID(opts, runID, latest)
			if err != nil {
				return err
			}
			exported, err := stats.ExportRunArtifacts(opts.file.Server.ArtifactsDir, id, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "exported run_id=%s to=%s\n", id, filepath.Clean(exported))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run from the run index")
	cmd.Flags().StringVar(&outDir, "out", exportsDir, "export output directory")
	return cmd
}

// newMeshCmd rebuilds plotting data for a saved run from its artifacts.
func newMeshCmd(opts *rootOptions) *cobra.Command {
	var (
		runID  string
		latest bool
		steps  int
	)
	cmd := &cobra.Command{
		Use:   "mesh",
		Short: "Print target and best-organism surfaces of a saved run as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := resolveRunID(opts, runID, latest)
			if err != nil {
				return err
			}
			base := opts.file.Server.ArtifactsDir
			cfg, ok, err := stats.ReadRunConfig(base, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("run not found: %s", id)
			}
			if len(cfg.Target) == 0 {
				return fmt.Errorf("run %s was fitted to explicit samples and has no target surface", id)
			}
			history, ok, err := stats.ReadHistory(base, id)
			if err != nil {
				return err
			}
			if !ok || len(history) == 0 {
				return fmt.Errorf("run %s has no history", id)
			}
			data, err := mesh.Build(cfg.Kind, cfg.Target, history[len(history)-1].Best.Coefficients, cfg.Domain, steps)
			if err != nil {
				return err
			}
			return opts.printJSON(data)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run from the run index")
	cmd.Flags().IntVar(&steps, "steps", mesh.DefaultSteps, "grid points per axis")
	return cmd
}

func resolveRunID(opts *rootOptions, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", usageError("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return "", usageError("--run-id or --latest is required")
	}
	if runID != "" {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(opts.file.Server.ArtifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
