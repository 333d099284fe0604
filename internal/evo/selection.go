package evo

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"polyfit/internal/model"
)

// SelectionKind names one of the supported parent selection strategies.
type SelectionKind string

const (
	SelectionProportional SelectionKind = "roulette"
	SelectionRank         SelectionKind = "rank"
	SelectionUniform      SelectionKind = "random"
	SelectionTournament   SelectionKind = "tournament"
)

// DefaultTournamentSize is the number of contestants per tournament draw.
const DefaultTournamentSize = 3

// ParseSelection resolves a strategy name. An empty name selects
// proportional selection; unknown names are rejected.
func ParseSelection(name string) (SelectionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "roulette", "ruleta", "proportional", "fitness_proportional":
		return SelectionProportional, nil
	case "rank", "ranking", "rango":
		return SelectionRank, nil
	case "random", "uniform", "aleatorio", "aleatoria":
		return SelectionUniform, nil
	case "tournament", "torneo":
		return SelectionTournament, nil
	default:
		return "", fmt.Errorf("%w: unsupported selection strategy %q", model.ErrConfiguration, name)
	}
}

// NewSelector builds the selector for kind.
func NewSelector(kind SelectionKind) (Selector, error) {
	switch kind {
	case SelectionProportional:
		return ProportionalSelector{}, nil
	case SelectionRank:
		return RankSelector{}, nil
	case SelectionUniform:
		return UniformSelector{}, nil
	case SelectionTournament:
		return TournamentSelector{Size: DefaultTournamentSize}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported selection strategy %q", model.ErrConfiguration, kind)
	}
}

// Selector draws a mating pool the same size as candidates, with replacement.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, candidates []model.Organism) ([]model.Organism, error)
}

// ProportionalSelector draws each candidate with probability fitness/sum(fitness).
type ProportionalSelector struct{}

func (ProportionalSelector) Name() string {
	return string(SelectionProportional)
}

func (ProportionalSelector) Select(rng *rand.Rand, candidates []model.Organism) ([]model.Organism, error) {
	if err := checkSelectInput(rng, candidates); err != nil {
		return nil, err
	}
	total := 0.0
	for _, c := range candidates {
		total += c.Fitness
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: proportional selection over all-zero fitness", model.ErrDivisionByZero)
	}

	probabilities := make([]float64, len(candidates))
	for i, c := range candidates {
		probabilities[i] = c.Fitness / total
	}
	return drawWeighted(rng, candidates, probabilities), nil
}

// RankSelector weights the candidate at descending-fitness rank r by
// (n-r) / (n(n+1)/2).
type RankSelector struct{}

func (RankSelector) Name() string {
	return string(SelectionRank)
}

func (RankSelector) Select(rng *rand.Rand, candidates []model.Organism) ([]model.Organism, error) {
	if err := checkSelectInput(rng, candidates); err != nil {
		return nil, err
	}
	ranked := make([]model.Organism, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})

	n := float64(len(ranked))
	denominator := n * (n + 1) / 2
	weights := make([]float64, len(ranked))
	for r := range ranked {
		weights[r] = (n - float64(r)) / denominator
	}
	return drawWeighted(rng, ranked, weights), nil
}

// UniformSelector ignores fitness entirely.
type UniformSelector struct{}

func (UniformSelector) Name() string {
	return string(SelectionUniform)
}

func (UniformSelector) Select(rng *rand.Rand, candidates []model.Organism) ([]model.Organism, error) {
	if err := checkSelectInput(rng, candidates); err != nil {
		return nil, err
	}
	out := make([]model.Organism, len(candidates))
	for i := range out {
		out[i] = candidates[rng.Intn(len(candidates))].Clone()
	}
	return out, nil
}

// TournamentSelector samples Size distinct candidates per draw and keeps the
// fittest.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return string(SelectionTournament)
}

func (s TournamentSelector) Select(rng *rand.Rand, candidates []model.Organism) ([]model.Organism, error) {
	if err := checkSelectInput(rng, candidates); err != nil {
		return nil, err
	}
	n := len(candidates)
	size := s.Size
	if size <= 0 {
		size = DefaultTournamentSize
	}
	if size > n {
		size = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	out := make([]model.Organism, n)
	for draw := range out {
		// partial Fisher-Yates: order[:size] becomes a fresh sample without replacement
		for j := 0; j < size; j++ {
			k := j + rng.Intn(n-j)
			order[j], order[k] = order[k], order[j]
		}
		best := order[0]
		for _, idx := range order[1:size] {
			if candidates[idx].Fitness > candidates[best].Fitness {
				best = idx
			}
		}
		out[draw] = candidates[best].Clone()
	}
	return out, nil
}

func checkSelectInput(rng *rand.Rand, candidates []model.Organism) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no selection candidates", model.ErrEmptyPopulation)
	}
	return nil
}

// drawWeighted samples len(items) times; each draw walks the cumulative
// probabilities until they cross a uniform value.
func drawWeighted(rng *rand.Rand, items []model.Organism, probabilities []float64) []model.Organism {
	fallback := len(items) - 1
	for fallback > 0 && probabilities[fallback] == 0 {
		fallback--
	}
	out := make([]model.Organism, len(items))
	for i := range out {
		draw := rng.Float64()
		pick := fallback
		cumulative := 0.0
		for j, p := range probabilities {
			cumulative += p
			if cumulative > draw {
				pick = j
				break
			}
		}
		out[i] = items[pick].Clone()
	}
	return out
}
