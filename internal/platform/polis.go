package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"polyfit/internal/model"
	"polyfit/internal/storage"
)

const (
	// DefaultRunTTL is how long an idle run handle stays registered.
	DefaultRunTTL   = 30 * time.Minute
	cleanupInterval = time.Minute
)

// Handle is a live run tracked by the polis.
type Handle interface {
	ID() string
	State() model.RunState
}

type Config struct {
	Store  storage.Store
	RunTTL time.Duration
	Logger *slog.Logger
}

// Polis owns the run store and the registry of live run handles. Handles
// expire after RunTTL without a Lookup.
type Polis struct {
	store  storage.Store
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	runs    *cache.Cache
	started bool
}

func NewPolis(cfg Config) *Polis {
	ttl := cfg.RunTTL
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Polis{
		store:  cfg.Store,
		ttl:    ttl,
		logger: logger,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	runs := cache.New(p.ttl, cleanupInterval)
	runs.OnEvicted(func(id string, _ interface{}) {
		p.logger.Debug("run handle evicted", slog.String("run_id", id))
	})
	p.runs = runs
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// Stop forgets every live handle. The store stays open; closing it is up to
// its owner.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.runs.Flush()
	p.started = false
}

// Track registers h under its ID. An ID held by a live handle is refused
// with model.ErrRunExists.
func (p *Polis) Track(h Handle) error {
	if h == nil || h.ID() == "" {
		return fmt.Errorf("run handle with an id is required")
	}
	runs, err := p.registry()
	if err != nil {
		return err
	}
	if err := runs.Add(h.ID(), h, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: %s", model.ErrRunExists, h.ID())
	}
	return nil
}

// Lookup returns the handle registered under id and renews its TTL.
func (p *Polis) Lookup(id string) (Handle, bool) {
	runs, err := p.registry()
	if err != nil {
		return nil, false
	}
	v, ok := runs.Get(id)
	if !ok {
		return nil, false
	}
	h := v.(Handle)
	// renew only; a handle forgotten meanwhile stays gone
	_ = runs.Replace(id, h, cache.DefaultExpiration)
	return h, true
}

func (p *Polis) Forget(id string) {
	runs, err := p.registry()
	if err != nil {
		return
	}
	runs.Delete(id)
}

// Tracked lists the ids of live handles in sorted order.
func (p *Polis) Tracked() []string {
	runs, err := p.registry()
	if err != nil {
		return nil
	}
	items := runs.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Persist stamps and saves a finished run.
func (p *Polis) Persist(ctx context.Context, run model.RunRecord) error {
	if !p.Started() {
		return fmt.Errorf("polis is not initialized")
	}
	if err := p.store.SaveRun(ctx, storage.Stamp(run)); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	p.logger.Info("run persisted",
		slog.String("run_id", run.ID),
		slog.String("state", string(run.State)),
		slog.Int("generations", len(run.History)))
	return nil
}

func (p *Polis) registry() (*cache.Cache, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		return nil, fmt.Errorf("polis is not initialized")
	}
	return p.runs, nil
}
