package evo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"polyfit/internal/genotype"
	"polyfit/internal/model"
	"polyfit/internal/scape"
)

// Evaluation is the result of scoring one population.
type Evaluation struct {
	// Organisms sorted by descending fitness.
	Organisms    []model.Organism
	AverageError float64
	MaxError     float64
}

// Evaluate scores every organism against s and normalizes error into a
// population-relative fitness max(0, 1-err/maxErr) rounded to 4 decimals.
// When every organism fits exactly, all fitness values are 1.
func Evaluate(population []model.Organism, s scape.Scape) (Evaluation, error) {
	if len(population) == 0 {
		return Evaluation{}, model.ErrEmptyPopulation
	}
	if s == nil {
		return Evaluation{}, fmt.Errorf("%w: scape is required", model.ErrConfiguration)
	}

	errs := make([]float64, len(population))
	for i, o := range population {
		e, err := s.Error(o.Coefficients)
		if err != nil {
			return Evaluation{}, fmt.Errorf("evaluate organism %d: %w", o.ID, err)
		}
		errs[i] = e
	}
	maxErr := floats.Max(errs)

	scored := make([]model.Organism, len(population))
	for i, o := range population {
		out := o.Clone()
		out.Error = errs[i]
		out.Fitness = normalizedFitness(errs[i], maxErr)
		out.Scored = true
		scored[i] = out
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness > scored[j].Fitness
	})

	return Evaluation{
		Organisms:    scored,
		AverageError: stat.Mean(errs, nil),
		MaxError:     maxErr,
	}, nil
}

func normalizedFitness(err, maxErr float64) float64 {
	if maxErr == 0 {
		return 1
	}
	return genotype.Round(math.Max(0, 1-err/maxErr), 4)
}

// AboveFloor returns organisms with fitness >= floor, fittest first.
func AboveFloor(population []model.Organism, floor float64) []model.Organism {
	out := make([]model.Organism, 0, len(population))
	for _, o := range population {
		if o.Scored && o.Fitness >= floor {
			out = append(out, o.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fitness > out[j].Fitness
	})
	return out
}
