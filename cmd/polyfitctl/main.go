package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"polyfit/internal/config"
	"polyfit/internal/model"
	"polyfit/internal/server"
	"polyfit/pkg/polyfit"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootOptions struct {
	out        io.Writer
	configPath string
	storeKind  string
	dbPath     string
	artifacts  string
	logLevel   string

	file   config.File
	logger *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}
	root := &cobra.Command{
		Use:           "polyfitctl",
		Short:         "Fit quadratic and quadric polynomials with a binary genetic algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file with server and run sections")
	pf.StringVar(&opts.storeKind, "store", "", "store backend: memory|sqlite|badger")
	pf.StringVar(&opts.dbPath, "db-path", "", "sqlite database file or badger directory")
	pf.StringVar(&opts.artifacts, "artifacts", benchmarksDir, "run artifacts directory")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		newRunCmd(opts),
		newBenchCmd(opts),
		newServeCmd(opts),
		newRunsCmd(opts),
		newExportCmd(opts),
		newMeshCmd(opts),
	)
	return root
}

// load reads the config file, if any, and lets persistent flags override
// its server section.
func (o *rootOptions) load(cmd *cobra.Command) error {
	var err error
	if o.configPath != "" {
		o.file, err = config.Load(o.configPath)
	} else {
		o.file, err = config.Parse(nil)
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		o.file.Server.StoreKind = o.storeKind
	}
	if flags.Changed("db-path") {
		o.file.Server.DBPath = o.dbPath
	}
	if flags.Changed("artifacts") || o.file.Server.ArtifactsDir == "" {
		o.file.Server.ArtifactsDir = o.artifacts
	}
	if flags.Changed("log-level") {
		o.file.Server.LogLevel = o.logLevel
	}
	if err := o.file.Validate(); err != nil {
		return err
	}
	o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: o.file.Server.Level()}))
	return nil
}

func (o *rootOptions) openClient(ctx context.Context) (*polyfit.Client, error) {
	client, err := polyfit.New(o.file.Server.Options(o.logger))
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (o *rootOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		flags   runFlags
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Configure, seed and evolve one run, then persist it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd.Flags(), opts.file.Run, opts.configPath != "")
			if err != nil {
				return err
			}

			client, err := opts.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			run, err := client.Configure(cfg)
			if err != nil {
				return err
			}
			if err := run.Seed(); err != nil {
				return err
			}
			history, err := run.Evolve(cmd.Context())
			if err != nil {
				return err
			}
			record, err := client.Save(cmd.Context(), run)
			if err != nil {
				return err
			}
			if jsonOut {
				return opts.printJSON(record)
			}

			best := history[len(history)-1].Best
			fmt.Fprintf(opts.out, "run_id=%s kind=%s state=%s pop=%s gens=%s best_fitness=%.6f best_error=%s\n",
				record.ID,
				record.Kind,
				record.State,
				humanize.Comma(int64(record.PopulationSize)),
				humanize.Comma(int64(len(history))),
				record.FinalBestFitness,
				humanize.FtoaWithDigits(best.Error, 6),
			)
			fmt.Fprintf(opts.out, "best %s genotype=%s\n", formatCoefficients(record.Kind, best.Coefficients), best.Genotype)
			return nil
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the persisted run record as JSON")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run handles over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				opts.file.Server.Addr = addr
			}
			if opts.file.Server.Level() > slog.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			client, err := opts.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			srv, err := server.New(server.Config{
				Client:    client,
				Logger:    opts.logger,
				RateLimit: opts.file.Server.Rate(),
				RateBurst: opts.file.Server.RateBurst,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), opts.file.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	return cmd
}

func formatCoefficients(kind model.Kind, values []float64) string {
	names := kind.CoefficientNames()
	parts := make([]string, 0, len(values))
	for i, v := range values {
		name := fmt.Sprintf("c%d", i)
		if i < len(names) {
			name = names[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, humanize.FtoaWithDigits(v, 4)))
	}
	return strings.Join(parts, " ")
}

func usageError(msg string) error {
	return errors.New("usage: " + msg)
}
