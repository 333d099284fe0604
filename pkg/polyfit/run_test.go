package polyfit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyfit/internal/model"
)

func quadraticConfig() RunConfig {
	return RunConfig{
		Kind:           "quadratic",
		Ranges:         []model.Range{{Min: -20, Max: 20}, {Min: -20, Max: 20}, {Min: -20, Max: 20}},
		Selection:      "tournament",
		Criterion:      "generations",
		MaxGenerations: 30,
		PopulationSize: 64,
		Seed:           7,
	}
}

func TestConfigureSeedEvolve(t *testing.T) {
	run, err := Configure(quadraticConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID())
	assert.Equal(t, model.StateUninitialized, run.State())

	require.NoError(t, run.Seed())
	assert.Equal(t, model.StateSeeded, run.State())
	assert.Equal(t, 64, run.PopulationSize())

	history, err := run.Evolve(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 30)
	assert.Equal(t, model.StateExhausted, run.State())
	assert.Equal(t, history, run.History())

	series := run.AverageErrorSeries()
	require.Len(t, series, 30)
	for i, point := range series {
		assert.Equal(t, i, point.Generation)
		assert.Equal(t, history[i].AverageError, point.AverageError)
	}

	best, err := run.BestOrganisms(DefaultFitnessFloor)
	require.NoError(t, err)
	for i, o := range best {
		assert.GreaterOrEqual(t, o.Fitness, DefaultFitnessFloor)
		if i > 0 {
			assert.LessOrEqual(t, o.Fitness, best[i-1].Fitness)
		}
	}
	assert.Len(t, run.Elites(), 2)
}

func TestConfigureDefaultsToHiddenQuadraticTarget(t *testing.T) {
	cfg := quadraticConfig()
	cfg.Selection = ""
	cfg.Criterion = ""
	cfg.MaxGenerations = 0
	run, err := Configure(cfg)
	require.NoError(t, err)

	summary := run.Summary()
	assert.Equal(t, []float64{10, -5, -10}, summary.Target)
	assert.Equal(t, "roulette", summary.Selection)
	assert.Equal(t, "none", summary.Criterion)
	assert.Equal(t, DefaultMaxGenerations, summary.MaxGenerations)
}

func TestConfigureRejectsInvalidInput(t *testing.T) {
	cases := map[string]func(*RunConfig){
		"unknown kind":      func(c *RunConfig) { c.Kind = "cubic" },
		"unknown selection": func(c *RunConfig) { c.Selection = "annealing" },
		"unknown criterion": func(c *RunConfig) { c.Criterion = "plateau" },
		"range count":       func(c *RunConfig) { c.Ranges = c.Ranges[:2] },
		"quadric no target": func(c *RunConfig) { c.Kind = "quadric"; c.Ranges = nil },
		"odd population":    func(c *RunConfig) { c.PopulationSize = 33 },
		"error threshold":   func(c *RunConfig) { c.Criterion = "error"; c.Threshold = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := quadraticConfig()
			mutate(&cfg)
			_, err := Configure(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	cfg := quadraticConfig()
	cfg.Ranges[1] = model.Range{Min: 5, Max: 5}
	_, err := Configure(cfg)
	assert.ErrorIs(t, err, ErrInvalidRange)

	cfg = quadraticConfig()
	cfg.Samples = model.SampleSet{}
	cfg.Target = []float64{}
	_, err = Configure(cfg)
	assert.Error(t, err)
}

func TestSeedWithoutRangesFails(t *testing.T) {
	cfg := quadraticConfig()
	cfg.Ranges = nil
	run, err := Configure(cfg)
	require.NoError(t, err)

	assert.ErrorIs(t, run.Seed(), ErrConfiguration)
	_, err = run.Evolve(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPopulation)
	_, err = run.BestOrganisms(DefaultFitnessFloor)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
	_, err = run.Mesh(10)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
}

func TestExplicitSamplesRun(t *testing.T) {
	samples := model.SampleSet{}
	for x := -5.0; x <= 5; x++ {
		samples = append(samples, model.Sample{Inputs: []float64{x}, Expected: 2*x*x - 3})
	}
	cfg := quadraticConfig()
	cfg.Samples = samples
	cfg.Criterion = "error"
	cfg.Threshold = 0.05
	run, err := Configure(cfg)
	require.NoError(t, err)
	require.NoError(t, run.Seed())

	_, err = run.Evolve(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []model.RunState{model.StateConverged, model.StateExhausted}, run.State())
	assert.Nil(t, run.Summary().Target)

	_, err = run.Mesh(10)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestQuadricRunAndMesh(t *testing.T) {
	ranges := make([]model.Range, 6)
	for i := range ranges {
		ranges[i] = model.Range{Min: -5, Max: 5}
	}
	run, err := Configure(RunConfig{
		Kind:           "quadric",
		Ranges:         ranges,
		Target:         []float64{1, 2, 0, -1, 0, 3},
		Points:         6,
		Criterion:      "generations",
		MaxGenerations: 5,
		PopulationSize: 32,
		Seed:           3,
	})
	require.NoError(t, err)
	require.NoError(t, run.Seed())
	_, err = run.Evolve(context.Background())
	require.NoError(t, err)

	data, err := run.Mesh(8)
	require.NoError(t, err)
	assert.Len(t, data.Original.X, 8)
	assert.Len(t, data.Original.Y, 8)
	assert.Len(t, data.Organism.Z, 8)
	assert.Len(t, data.Organism.Z[0], 8)
}

func TestRunRejectsConcurrentOperations(t *testing.T) {
	cfg := quadraticConfig()
	cfg.Criterion = ""
	cfg.MaxGenerations = 200
	cfg.PopulationSize = 1024

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cfg.OnGeneration = func(model.GenerationRecord) {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	run, err := Configure(cfg)
	require.NoError(t, err)
	require.NoError(t, run.Seed())

	done := make(chan error, 1)
	go func() {
		_, err := run.Evolve(context.Background())
		done <- err
	}()

	<-started
	assert.ErrorIs(t, run.Seed(), ErrRunInFlight)
	_, err = run.Evolve(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)
	assert.Equal(t, model.StateEvolving, run.State())
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, model.StateExhausted, run.State())
}

func TestEvolveIsDeterministicForSeed(t *testing.T) {
	evolve := func() []model.GenerationRecord {
		run, err := Configure(quadraticConfig())
		require.NoError(t, err)
		require.NoError(t, run.Seed())
		history, err := run.Evolve(context.Background())
		require.NoError(t, err)
		return history
	}
	assert.Equal(t, evolve(), evolve())
}
