package polyfit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"polyfit/internal/model"
	"polyfit/internal/platform"
	"polyfit/internal/stats"
	"polyfit/internal/storage"
)

const defaultDBPath = "polyfit.db"

type Options struct {
	StoreKind string
	// DBPath is the sqlite file or badger directory.
	DBPath string
	// ArtifactsDir, when set, receives JSON and CSV artifacts of every saved
	// run plus a run index.
	ArtifactsDir string
	RunTTL       time.Duration
	Logger       *slog.Logger
}

// Client tracks live run handles and persists finished runs.
type Client struct {
	store        storage.Store
	polis        *platform.Polis
	artifactsDir string
	logger       *slog.Logger
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" && opts.StoreKind == "sqlite" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		store:        store,
		polis:        platform.NewPolis(platform.Config{Store: store, RunTTL: opts.RunTTL, Logger: logger}),
		artifactsDir: opts.ArtifactsDir,
		logger:       logger,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.polis.Init(ctx)
}

func (c *Client) Close() error {
	c.polis.Stop()
	return storage.CloseIfSupported(c.store)
}

// Configure builds a run and registers it for later lookup by id. An id held
// by a live handle or a persisted run fails with ErrRunExists.
func (c *Client) Configure(cfg RunConfig) (*Run, error) {
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	if cfg.ID != "" {
		_, ok, err := c.store.GetRun(context.Background(), cfg.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, fmt.Errorf("%w: %s is persisted", ErrRunExists, cfg.ID)
		}
	}
	run, err := Configure(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.polis.Track(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (c *Client) Lookup(id string) (*Run, bool) {
	h, ok := c.polis.Lookup(id)
	if !ok {
		return nil, false
	}
	run, ok := h.(*Run)
	return run, ok
}

func (c *Client) Forget(id string) {
	c.polis.Forget(id)
}

// Live lists the ids of registered run handles.
func (c *Client) Live() []string {
	return c.polis.Tracked()
}

// Save persists the run summary and, when an artifacts directory is
// configured, writes its artifacts.
func (c *Client) Save(ctx context.Context, run *Run) (model.RunRecord, error) {
	if run == nil {
		return model.RunRecord{}, errors.New("run is required")
	}
	record := storage.Stamp(run.Summary())
	if err := c.polis.Persist(ctx, record); err != nil {
		return model.RunRecord{}, err
	}
	if c.artifactsDir != "" {
		if _, err := stats.WriteRunArtifacts(c.artifactsDir, record); err != nil {
			return model.RunRecord{}, fmt.Errorf("write artifacts: %w", err)
		}
		if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntryOf(record)); err != nil {
			return model.RunRecord{}, fmt.Errorf("update run index: %w", err)
		}
	}
	return record, nil
}

func (c *Client) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	return c.store.GetRun(ctx, id)
}

// Runs lists persisted runs newest first, at most limit when limit > 0.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.store.DeleteRun(ctx, id)
}

// Export copies a saved run's artifacts into outDir/<run id>.
func (c *Client) Export(_ context.Context, runID, outDir string) (string, error) {
	if c.artifactsDir == "" {
		return "", errors.New("client has no artifacts directory")
	}
	dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}
