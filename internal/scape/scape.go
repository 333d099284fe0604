package scape

import (
	"fmt"
	"math"

	"polyfit/internal/model"
)

const (
	// DefaultQuadraticPoints is the number of evenly spaced x samples used
	// for a quadratic target.
	DefaultQuadraticPoints = 20
	// DefaultQuadricSteps is the per-axis grid resolution for a quadric target.
	DefaultQuadricSteps = 10
	// MaxPoints bounds points; a quadric grid holds MaxPoints^2 samples.
	MaxPoints = 500
)

// DefaultDomain is the input interval ground truth is sampled over.
var DefaultDomain = model.Range{Min: -10, Max: 10}

// DefaultTarget is the hidden quadratic used when no target is supplied.
var DefaultTarget = []float64{10, -5, -10}

// Scape is the fixed ground truth a run is scored against.
type Scape interface {
	Name() string
	Kind() model.Kind
	Samples() model.SampleSet
	Error(coefficients []float64) (float64, error)
}

// PolynomialScape scores coefficients by mean absolute error over a fixed
// sample set.
type PolynomialScape struct {
	kind    model.Kind
	samples model.SampleSet
}

// NewPolynomialScape wraps an explicit sample set. Each sample must carry
// kind.Inputs() inputs.
func NewPolynomialScape(kind model.Kind, samples model.SampleSet) (*PolynomialScape, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: sample set is empty", model.ErrDivisionByZero)
	}
	for i, s := range samples {
		if len(s.Inputs) != kind.Inputs() {
			return nil, fmt.Errorf("%w: sample %d has %d inputs, %s needs %d", model.ErrConfiguration, i, len(s.Inputs), kind, kind.Inputs())
		}
	}
	copied := make(model.SampleSet, len(samples))
	for i, s := range samples {
		copied[i] = model.Sample{Inputs: append([]float64(nil), s.Inputs...), Expected: s.Expected}
	}
	return &PolynomialScape{kind: kind, samples: copied}, nil
}

// NewTargetScape samples the hidden target coefficients over domain.
// Quadratics use points evenly spaced x values; quadrics use a points x points grid.
func NewTargetScape(kind model.Kind, target []float64, domain model.Range, points int) (*PolynomialScape, error) {
	samples, err := Sample(kind, target, domain, points)
	if err != nil {
		return nil, err
	}
	return &PolynomialScape{kind: kind, samples: samples}, nil
}

func (s *PolynomialScape) Name() string {
	return string(s.kind) + "-regression"
}

func (s *PolynomialScape) Kind() model.Kind {
	return s.kind
}

func (s *PolynomialScape) Samples() model.SampleSet {
	return s.samples
}

func (s *PolynomialScape) Error(coefficients []float64) (float64, error) {
	return MeanAbsoluteError(s.kind, coefficients, s.samples)
}

// Sample evaluates target over an evenly spaced grid of domain.
func Sample(kind model.Kind, target []float64, domain model.Range, points int) (model.SampleSet, error) {
	if len(target) != kind.Coefficients() {
		return nil, fmt.Errorf("%w: %s target needs %d coefficients, got %d", model.ErrConfiguration, kind, kind.Coefficients(), len(target))
	}
	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("sample domain: %w", err)
	}
	if points == 0 {
		points = DefaultQuadraticPoints
		if kind == model.KindQuadric {
			points = DefaultQuadricSteps
		}
	}
	if points < 2 || points > MaxPoints {
		return nil, fmt.Errorf("%w: sample points must be in [2, %d], got %d", model.ErrConfiguration, MaxPoints, points)
	}

	axis := Linspace(domain.Min, domain.Max, points)
	if kind == model.KindQuadric {
		samples := make(model.SampleSet, 0, points*points)
		for _, x := range axis {
			for _, y := range axis {
				inputs := []float64{x, y}
				samples = append(samples, model.Sample{Inputs: inputs, Expected: Predict(kind, target, inputs)})
			}
		}
		return samples, nil
	}

	samples := make(model.SampleSet, 0, points)
	for _, x := range axis {
		inputs := []float64{x}
		samples = append(samples, model.Sample{Inputs: inputs, Expected: Predict(kind, target, inputs)})
	}
	return samples, nil
}

// Predict evaluates the model with the given coefficients at inputs.
func Predict(kind model.Kind, c []float64, inputs []float64) float64 {
	x := inputs[0]
	if kind == model.KindQuadric {
		y := inputs[1]
		return c[0]*x*x + c[1]*y*y + c[2]*x*y + c[3]*x + c[4]*y + c[5]
	}
	return c[0]*x*x + c[1]*x + c[2]
}

// MeanAbsoluteError is the average |predicted-expected| over samples.
func MeanAbsoluteError(kind model.Kind, coefficients []float64, samples model.SampleSet) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: sample set is empty", model.ErrDivisionByZero)
	}
	if len(coefficients) != kind.Coefficients() {
		return 0, fmt.Errorf("%s model needs %d coefficients, got %d", kind, kind.Coefficients(), len(coefficients))
	}
	total := 0.0
	for _, s := range samples {
		total += math.Abs(Predict(kind, coefficients, s.Inputs) - s.Expected)
	}
	return total / float64(len(samples)), nil
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
