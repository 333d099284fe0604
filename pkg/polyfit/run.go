package polyfit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"polyfit/internal/evo"
	"polyfit/internal/genotype"
	"polyfit/internal/mesh"
	"polyfit/internal/model"
	"polyfit/internal/scape"
)

const (
	DefaultMaxGenerations = 100
	// DefaultFitnessFloor is the fitness an organism needs to be reported as
	// a good fit.
	DefaultFitnessFloor = 0.85
)

var tracer = otel.Tracer("polyfit")

// RunConfig describes one fitting run. Ground truth comes from Samples when
// set, otherwise from Target sampled over Domain.
type RunConfig struct {
	ID   string
	Kind string
	Bits int
	// Ranges holds one range per coefficient. A run may be configured
	// without ranges but cannot be seeded until they are set.
	Ranges []model.Range

	Samples model.SampleSet
	Target  []float64
	Domain  model.Range
	Points  int

	Selection      string
	Criterion      string
	Threshold      float64
	MaxGenerations int
	PopulationSize int
	MutationRate   float64
	Seed           int64

	Logger       *slog.Logger
	OnGeneration func(model.GenerationRecord)
}

// SeriesPoint is one generation's average population error.
type SeriesPoint struct {
	Generation   int     `json:"generation"`
	AverageError float64 `json:"average_error"`
}

// Run is a handle owning all state of one fitting run. Seed and Evolve may
// not overlap; readers always see the state left by the last finished
// operation.
type Run struct {
	id        string
	createdAt time.Time
	cfg       RunConfig
	kind      model.Kind
	selection evo.SelectionKind
	criterion evo.StoppingCriterion
	scape     scape.Scape
	logger    *slog.Logger

	op      sync.Mutex
	monitor *evo.PopulationMonitor

	mu         sync.RWMutex
	state      model.RunState
	size       int
	history    []model.GenerationRecord
	population []model.Organism
	elites     []model.Organism
}

// Configure validates cfg and returns a run handle in the uninitialized
// state.
func Configure(cfg RunConfig) (*Run, error) {
	kind, err := model.ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	cfg.Kind = string(kind)

	var codec *genotype.Codec
	if len(cfg.Ranges) > 0 {
		if len(cfg.Ranges) != kind.Coefficients() {
			return nil, fmt.Errorf("%w: %s needs %d coefficient ranges, got %d",
				ErrConfiguration, kind, kind.Coefficients(), len(cfg.Ranges))
		}
		codec, err = genotype.NewCodec(cfg.Ranges, cfg.Bits)
		if err != nil {
			return nil, err
		}
		cfg.Ranges = append([]model.Range(nil), cfg.Ranges...)
	}

	selection, err := evo.ParseSelection(cfg.Selection)
	if err != nil {
		return nil, err
	}
	selector, err := evo.NewSelector(selection)
	if err != nil {
		return nil, err
	}
	if cfg.MaxGenerations == 0 {
		cfg.MaxGenerations = DefaultMaxGenerations
	}
	criterion, err := evo.ParseCriterion(cfg.Criterion, cfg.Threshold, cfg.MaxGenerations)
	if err != nil {
		return nil, err
	}

	s, err := buildScape(kind, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	} else if err := model.ValidateRunID(cfg.ID); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("run_id", cfg.ID))

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Scape:          s,
		Codec:          codec,
		Selector:       selector,
		Criterion:      criterion,
		MaxGenerations: cfg.MaxGenerations,
		PopulationSize: cfg.PopulationSize,
		MutationRate:   cfg.MutationRate,
		Seed:           cfg.Seed,
		Logger:         logger,
		OnGeneration:   cfg.OnGeneration,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run configured",
		slog.String("kind", string(kind)),
		slog.String("selection", string(selection)),
		slog.String("criterion", criterion.String()),
		slog.Int("max_generations", cfg.MaxGenerations),
		slog.Int("samples", len(s.Samples())))

	return &Run{
		id:        cfg.ID,
		createdAt: time.Now().UTC(),
		cfg:       cfg,
		kind:      kind,
		selection: selection,
		criterion: criterion,
		scape:     s,
		logger:    logger,
		monitor:   monitor,
		state:     model.StateUninitialized,
	}, nil
}

func buildScape(kind model.Kind, cfg *RunConfig) (scape.Scape, error) {
	if len(cfg.Samples) > 0 {
		cfg.Target = nil
		return scape.NewPolynomialScape(kind, cfg.Samples)
	}
	if cfg.Target == nil && kind == model.KindQuadratic {
		cfg.Target = append([]float64(nil), scape.DefaultTarget...)
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("%w: %s runs need samples or target coefficients", ErrConfiguration, kind)
	}
	if cfg.Domain == (model.Range{}) {
		cfg.Domain = scape.DefaultDomain
	}
	cfg.Target = append([]float64(nil), cfg.Target...)
	return scape.NewTargetScape(kind, cfg.Target, cfg.Domain, cfg.Points)
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Kind() model.Kind {
	return r.kind
}

func (r *Run) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Run) State() model.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// PopulationSize is the size drawn at seed time, or 0 before seeding.
func (r *Run) PopulationSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Seed creates the initial population. It fails with ErrConfiguration when
// the run has no coefficient ranges.
func (r *Run) Seed() error {
	if !r.op.TryLock() {
		return ErrRunInFlight
	}
	defer r.op.Unlock()

	if err := r.monitor.Seed(); err != nil {
		return err
	}
	r.mu.Lock()
	r.state = r.monitor.State()
	r.size = r.monitor.PopulationSize()
	r.population = r.monitor.Population()
	r.history = nil
	r.elites = nil
	r.mu.Unlock()
	return nil
}

// Evolve runs the generational loop to completion and returns the history.
func (r *Run) Evolve(ctx context.Context) ([]model.GenerationRecord, error) {
	if !r.op.TryLock() {
		return nil, ErrRunInFlight
	}
	defer r.op.Unlock()

	ctx, span := tracer.Start(ctx, "polyfit.Run.Evolve",
		trace.WithAttributes(
			attribute.String("polyfit.run_id", r.id),
			attribute.String("polyfit.kind", string(r.kind)),
			attribute.String("polyfit.selection", string(r.selection)),
			attribute.String("polyfit.criterion", r.criterion.String()),
		),
	)
	defer span.End()

	r.mu.Lock()
	if r.state != model.StateUninitialized {
		r.state = model.StateEvolving
	}
	r.mu.Unlock()

	result, err := r.monitor.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.mu.Lock()
		r.state = r.monitor.State()
		if r.state == model.StateEvolving {
			// interrupted runs keep their population and may be evolved again
			r.state = model.StateSeeded
		}
		r.mu.Unlock()
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("polyfit.generations", result.Generations),
		attribute.String("polyfit.state", string(result.State)),
	)
	span.SetStatus(codes.Ok, "")

	r.mu.Lock()
	r.state = result.State
	r.history = result.History
	r.population = result.Final
	r.elites = result.Elites
	r.mu.Unlock()
	return cloneHistory(result.History), nil
}

// BestOrganisms returns the organisms of the latest evaluated population with
// fitness >= floor, fittest first.
func (r *Run) BestOrganisms(floor float64) ([]model.Organism, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == model.StateUninitialized {
		return nil, fmt.Errorf("%w: run has not been seeded", ErrEmptyPopulation)
	}
	return evo.AboveFloor(r.population, floor), nil
}

// Elites returns the elite stack left by the last evolve.
func (r *Run) Elites() []model.Organism {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Organism, len(r.elites))
	for i, o := range r.elites {
		out[i] = o.Clone()
	}
	return out
}

func (r *Run) History() []model.GenerationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneHistory(r.history)
}

func (r *Run) AverageErrorSeries() []SeriesPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SeriesPoint, len(r.history))
	for i, record := range r.history {
		out[i] = SeriesPoint{Generation: record.Index, AverageError: record.AverageError}
	}
	return out
}

// Summary is the persistable record of the run in its current state.
func (r *Run) Summary() model.RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record := model.RunRecord{
		ID:             r.id,
		CreatedAtUTC:   r.createdAt.Format(time.RFC3339),
		Kind:           r.kind,
		Ranges:         append([]model.Range(nil), r.cfg.Ranges...),
		Target:         append([]float64(nil), r.cfg.Target...),
		Domain:         r.cfg.Domain,
		Selection:      string(r.selection),
		Criterion:      r.criterion.String(),
		Threshold:      r.cfg.Threshold,
		MaxGenerations: r.cfg.MaxGenerations,
		Seed:           r.cfg.Seed,
		PopulationSize: r.size,
		State:          r.state,
		History:        cloneHistory(r.history),
		BestOrganisms:  evo.AboveFloor(r.population, DefaultFitnessFloor),
	}
	if n := len(r.history); n > 0 {
		record.FinalBestError = r.history[n-1].Best.Error
		record.FinalBestFitness = r.history[n-1].BestFitness
	}
	return record
}

// Mesh samples the target and the latest best organism on a grid of steps
// points per axis over the run's domain.
func (r *Run) Mesh(steps int) (mesh.Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg.Target == nil {
		return mesh.Data{}, ErrNoTarget
	}
	if len(r.history) == 0 {
		return mesh.Data{}, fmt.Errorf("%w: run has not been evolved", ErrEmptyPopulation)
	}
	best := r.history[len(r.history)-1].Best
	return mesh.Build(r.kind, r.cfg.Target, best.Coefficients, r.cfg.Domain, steps)
}

func cloneHistory(in []model.GenerationRecord) []model.GenerationRecord {
	out := make([]model.GenerationRecord, len(in))
	for i, record := range in {
		record.Best = record.Best.Clone()
		out[i] = record
	}
	return out
}
