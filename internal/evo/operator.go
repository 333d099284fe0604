package evo

import (
	"fmt"
	"math/rand"

	"polyfit/internal/model"
)

// DefaultMutationRate is the per-bit flip probability.
const DefaultMutationRate = 0.01

// Crossover cuts both parents at one point drawn uniformly from [1, L-1] and
// swaps tails. The first child is a's prefix followed by b's suffix.
func Crossover(rng *rand.Rand, a, b model.Genotype) (model.Genotype, model.Genotype, error) {
	if rng == nil {
		return "", "", fmt.Errorf("random source is required")
	}
	if len(a) != len(b) {
		return "", "", fmt.Errorf("crossover parents differ in length: %d != %d", len(a), len(b))
	}
	if len(a) < 2 {
		return "", "", fmt.Errorf("crossover needs genotypes of at least 2 bits, got %d", len(a))
	}
	cut := 1 + rng.Intn(len(a)-1)
	return CrossoverAt(a, b, cut)
}

// CrossoverAt is Crossover with an explicit cut point.
func CrossoverAt(a, b model.Genotype, cut int) (model.Genotype, model.Genotype, error) {
	if len(a) != len(b) {
		return "", "", fmt.Errorf("crossover parents differ in length: %d != %d", len(a), len(b))
	}
	if cut < 1 || cut > len(a)-1 {
		return "", "", fmt.Errorf("crossover cut %d outside [1, %d]", cut, len(a)-1)
	}
	first := a[:cut] + b[cut:]
	second := b[:cut] + a[cut:]
	return first, second, nil
}

// Mutate flips each bit independently with probability rate.
func Mutate(rng *rand.Rand, g model.Genotype, rate float64) model.Genotype {
	if rate <= 0 {
		return g
	}
	bits := []byte(g)
	for i, bit := range bits {
		if rng.Float64() >= rate {
			continue
		}
		if bit == '0' {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return model.Genotype(bits)
}
