package evo

import (
	"fmt"
	"strings"

	"polyfit/internal/model"
)

// CriterionKind names a stopping rule.
type CriterionKind string

const (
	CriterionNone CriterionKind = ""
	// CriterionErrorAbsolute stops once the best fitness reaches 1-threshold.
	CriterionErrorAbsolute CriterionKind = "error"
	// CriterionImprovementProgressive stops once average error improves by
	// less than threshold relative to the previous generation.
	CriterionImprovementProgressive CriterionKind = "progressive"
	// CriterionGenerationCount stops after MaxGenerations generations.
	CriterionGenerationCount CriterionKind = "generations"
)

// DefaultImprovementThreshold is the relative average-error decrease below
// which progressive stopping fires.
const DefaultImprovementThreshold = 0.01

// StoppingCriterion ends the generational loop early.
type StoppingCriterion struct {
	Kind           CriterionKind
	Threshold      float64
	MaxGenerations int
}

func ErrorAbsolute(threshold float64) StoppingCriterion {
	return StoppingCriterion{Kind: CriterionErrorAbsolute, Threshold: threshold}
}

func ImprovementProgressive(threshold float64) StoppingCriterion {
	if threshold <= 0 {
		threshold = DefaultImprovementThreshold
	}
	return StoppingCriterion{Kind: CriterionImprovementProgressive, Threshold: threshold}
}

func GenerationCount(max int) StoppingCriterion {
	return StoppingCriterion{Kind: CriterionGenerationCount, MaxGenerations: max}
}

// ParseCriterion resolves a criterion name. threshold feeds the error and
// progressive rules; maxGenerations feeds the generation count rule.
func ParseCriterion(name string, threshold float64, maxGenerations int) (StoppingCriterion, error) {
	var c StoppingCriterion
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		c = StoppingCriterion{}
	case "error", "error_absolute", "absolute", "error_absoluto":
		c = ErrorAbsolute(threshold)
	case "progressive", "improvement", "improvement_progressive", "progresivo", "mejora":
		c = ImprovementProgressive(threshold)
	case "generations", "generation_count", "count", "generaciones":
		c = GenerationCount(maxGenerations)
	default:
		return StoppingCriterion{}, fmt.Errorf("%w: unsupported stopping criterion %q", model.ErrConfiguration, name)
	}
	if err := c.Validate(); err != nil {
		return StoppingCriterion{}, err
	}
	return c, nil
}

func (c StoppingCriterion) Validate() error {
	switch c.Kind {
	case CriterionNone:
	case CriterionErrorAbsolute:
		if c.Threshold < 0 || c.Threshold > 1 {
			return fmt.Errorf("%w: error threshold must be in [0, 1], got %g", model.ErrConfiguration, c.Threshold)
		}
	case CriterionImprovementProgressive:
		if c.Threshold <= 0 {
			return fmt.Errorf("%w: improvement threshold must be > 0, got %g", model.ErrConfiguration, c.Threshold)
		}
	case CriterionGenerationCount:
		if c.MaxGenerations <= 0 {
			return fmt.Errorf("%w: generation count must be > 0, got %d", model.ErrConfiguration, c.MaxGenerations)
		}
	default:
		return fmt.Errorf("%w: unsupported stopping criterion %q", model.ErrConfiguration, c.Kind)
	}
	return nil
}

func (c StoppingCriterion) String() string {
	switch c.Kind {
	case CriterionErrorAbsolute:
		return fmt.Sprintf("error(%g)", c.Threshold)
	case CriterionImprovementProgressive:
		return fmt.Sprintf("progressive(%g)", c.Threshold)
	case CriterionGenerationCount:
		return fmt.Sprintf("generations(%d)", c.MaxGenerations)
	default:
		return "none"
	}
}

// Check evaluates the rule after completed generations. previous is nil for
// the first generation. The returned state is StateConverged or
// StateExhausted when the rule fires.
func (c StoppingCriterion) Check(completed int, current model.GenerationRecord, previous *model.GenerationRecord) (bool, model.RunState) {
	switch c.Kind {
	case CriterionErrorAbsolute:
		if current.BestFitness >= 1-c.Threshold {
			return true, model.StateConverged
		}
	case CriterionImprovementProgressive:
		if previous == nil {
			return false, ""
		}
		if previous.AverageError <= 0 {
			return true, model.StateConverged
		}
		improvement := (previous.AverageError - current.AverageError) / previous.AverageError
		if improvement < c.Threshold {
			return true, model.StateConverged
		}
	case CriterionGenerationCount:
		if completed >= c.MaxGenerations {
			return true, model.StateExhausted
		}
	}
	return false, ""
}
