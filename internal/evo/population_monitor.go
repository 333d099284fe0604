package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"polyfit/internal/genotype"
	"polyfit/internal/model"
	"polyfit/internal/scape"
)

const (
	MinPopulationSize = 16
	MaxPopulationSize = 1024
	// GenerationLimit caps MaxGenerations.
	GenerationLimit = 10000
)

type RunResult struct {
	State       model.RunState
	History     []model.GenerationRecord
	Final       []model.Organism
	Elites      []model.Organism
	Generations int
}

type MonitorConfig struct {
	Scape     scape.Scape
	Codec     *genotype.Codec
	Selector  Selector
	Criterion StoppingCriterion
	// MaxGenerations bounds every run regardless of Criterion.
	MaxGenerations int
	// PopulationSize fixes the population size; 0 draws an even size from
	// [MinPopulationSize, MaxPopulationSize] at seed time.
	PopulationSize int
	MutationRate   float64
	Seed           int64
	Logger         *slog.Logger
	// OnGeneration is called after each generation is recorded.
	OnGeneration func(model.GenerationRecord)
}

// PopulationMonitor owns the population of one run and drives it through
// Uninitialized -> Seeded -> Evolving -> Converged | Exhausted.
// It is not safe for concurrent use.
type PopulationMonitor struct {
	cfg    MonitorConfig
	rng    *rand.Rand
	logger *slog.Logger

	state      model.RunState
	size       int
	population []model.Organism
	elites     *EliteStack
	history    []model.GenerationRecord
	nextID     uint64
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("%w: scape is required", model.ErrConfiguration)
	}
	if cfg.MaxGenerations <= 0 || cfg.MaxGenerations > GenerationLimit {
		return nil, fmt.Errorf("%w: max generations must be in [1, %d], got %d", model.ErrConfiguration, GenerationLimit, cfg.MaxGenerations)
	}
	if cfg.PopulationSize != 0 {
		if cfg.PopulationSize < MinPopulationSize || cfg.PopulationSize > MaxPopulationSize || cfg.PopulationSize%2 != 0 {
			return nil, fmt.Errorf("%w: population size must be even and in [%d, %d], got %d",
				model.ErrConfiguration, MinPopulationSize, MaxPopulationSize, cfg.PopulationSize)
		}
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("%w: mutation rate must be in [0, 1], got %g", model.ErrConfiguration, cfg.MutationRate)
	}
	if cfg.MutationRate == 0 {
		cfg.MutationRate = DefaultMutationRate
	}
	if err := cfg.Criterion.Validate(); err != nil {
		return nil, err
	}
	if cfg.Selector == nil {
		cfg.Selector = ProportionalSelector{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &PopulationMonitor{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
		state:  model.StateUninitialized,
		elites: NewEliteStack(),
	}, nil
}

func (m *PopulationMonitor) State() model.RunState {
	return m.state
}

// PopulationSize is the size fixed at seed time, or 0 before seeding.
func (m *PopulationMonitor) PopulationSize() int {
	return m.size
}

func (m *PopulationMonitor) Population() []model.Organism {
	return cloneAll(m.population)
}

func (m *PopulationMonitor) History() []model.GenerationRecord {
	return append([]model.GenerationRecord(nil), m.history...)
}

func (m *PopulationMonitor) Elites() []model.Organism {
	return m.elites.Members()
}

// Seed creates the initial population: each coefficient is drawn uniformly
// from its range and snapped to the nearest quantized level.
func (m *PopulationMonitor) Seed() error {
	codec := m.cfg.Codec
	if codec == nil {
		return fmt.Errorf("%w: coefficient ranges are not configured", model.ErrConfiguration)
	}
	if want := m.cfg.Scape.Kind().Coefficients(); codec.Coefficients() != want {
		return fmt.Errorf("%w: %d coefficient ranges configured, %s needs %d",
			model.ErrConfiguration, codec.Coefficients(), m.cfg.Scape.Kind(), want)
	}

	size := m.cfg.PopulationSize
	if size == 0 {
		size = MinPopulationSize + m.rng.Intn(MaxPopulationSize-MinPopulationSize+1)
		if size%2 != 0 {
			size++
		}
	}

	population := make([]model.Organism, 0, size)
	values := make([]float64, codec.Coefficients())
	for len(population) < size {
		for i := range values {
			r := codec.Table(i).Range
			values[i] = r.Min + m.rng.Float64()*r.Width()
		}
		g, snapped, err := codec.Encode(values)
		if err != nil {
			return err
		}
		population = append(population, model.Organism{ID: m.newID(), Genotype: g, Coefficients: snapped})
	}

	m.size = size
	m.population = population
	m.history = nil
	m.elites.Reset()
	m.state = model.StateSeeded
	m.logger.Info("population seeded", slog.Int("size", size), slog.Int("genotype_bits", codec.Length()))
	return nil
}

// Run evolves the seeded population until the stopping criterion fires or
// MaxGenerations generations complete. Elites and history start empty.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	if len(m.population) == 0 {
		return RunResult{}, fmt.Errorf("%w: seed the population before evolving", model.ErrEmptyPopulation)
	}

	m.state = model.StateEvolving
	m.elites.Reset()
	m.history = make([]model.GenerationRecord, 0, m.cfg.MaxGenerations)

	population := m.population
	var previous *model.GenerationRecord
	final := model.StateExhausted
	for completed := 1; completed <= m.cfg.MaxGenerations; completed++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		evaluation, err := Evaluate(population, m.cfg.Scape)
		if err != nil {
			return RunResult{}, err
		}
		population = evaluation.Organisms
		m.population = population

		record := model.GenerationRecord{
			Index:          completed - 1,
			Best:           population[0].Clone(),
			BestFitness:    population[0].Fitness,
			AverageError:   evaluation.AverageError,
			PopulationSize: len(population),
		}
		m.history = append(m.history, record)
		if m.cfg.OnGeneration != nil {
			m.cfg.OnGeneration(record)
		}
		m.logger.Debug("generation evaluated",
			slog.Int("generation", record.Index),
			slog.Float64("best_fitness", record.BestFitness),
			slog.Float64("best_error", record.Best.Error),
			slog.Float64("average_error", record.AverageError))

		if stop, state := m.cfg.Criterion.Check(completed, record, previous); stop {
			final = state
			break
		}
		if completed == m.cfg.MaxGenerations {
			break
		}

		m.elites.Update(population)
		population, err = m.nextGeneration(population)
		if err != nil {
			return RunResult{}, err
		}
		previous = &m.history[len(m.history)-1]
	}

	m.state = final
	m.logger.Info("evolution finished",
		slog.String("state", string(final)),
		slog.Int("generations", len(m.history)),
		slog.Float64("best_error", m.population[0].Error))

	return RunResult{
		State:       final,
		History:     m.History(),
		Final:       m.Population(),
		Elites:      m.elites.Members(),
		Generations: len(m.history),
	}, nil
}

// nextGeneration keeps the elites, breeds consecutive pairs drawn from the
// non-elite remainder and pads any shortfall with random remainder copies.
func (m *PopulationMonitor) nextGeneration(ranked []model.Organism) ([]model.Organism, error) {
	remainder := make([]model.Organism, 0, len(ranked))
	for _, o := range ranked {
		if !m.elites.Contains(o.ID) {
			remainder = append(remainder, o)
		}
	}
	if len(remainder) == 0 {
		return nil, fmt.Errorf("%w: no non-elite organisms to select from", model.ErrEmptyPopulation)
	}

	pool, err := m.cfg.Selector.Select(m.rng, remainder)
	if errors.Is(err, model.ErrDivisionByZero) {
		// every remainder organism ties at the worst error
		m.logger.Debug("fitness-weighted selection degenerate, drawing uniformly",
			slog.String("selector", m.cfg.Selector.Name()),
			slog.Int("remainder", len(remainder)))
		pool, err = UniformSelector{}.Select(m.rng, remainder)
	}
	if err != nil {
		return nil, fmt.Errorf("select parents: %w", err)
	}

	next := make([]model.Organism, 0, m.size)
	for _, elite := range m.elites.Members() {
		elite.Scored = false
		next = append(next, elite)
	}
	for i := 0; i+1 < len(pool) && len(next) < m.size; i += 2 {
		children, err := m.breed(pool[i], pool[i+1])
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if len(next) < m.size {
				next = append(next, child)
			}
		}
	}
	for len(next) < m.size {
		filler := remainder[m.rng.Intn(len(remainder))].Clone()
		filler.ID = m.newID()
		filler.Scored = false
		next = append(next, filler)
	}
	return next, nil
}

func (m *PopulationMonitor) breed(a, b model.Organism) ([]model.Organism, error) {
	first, second, err := Crossover(m.rng, a.Genotype, b.Genotype)
	if err != nil {
		return nil, err
	}
	children := make([]model.Organism, 0, 2)
	for _, g := range []model.Genotype{first, second} {
		g = Mutate(m.rng, g, m.cfg.MutationRate)
		coefficients, err := m.cfg.Codec.Decode(g)
		if err != nil {
			return nil, fmt.Errorf("decode offspring: %w", err)
		}
		children = append(children, model.Organism{ID: m.newID(), Genotype: g, Coefficients: coefficients})
	}
	return children, nil
}

func (m *PopulationMonitor) newID() uint64 {
	m.nextID++
	return m.nextID
}

func cloneAll(in []model.Organism) []model.Organism {
	out := make([]model.Organism, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
