// Package mesh samples a fitted model and its ground truth on a regular grid
// for plotting.
package mesh

import (
	"fmt"

	"polyfit/internal/model"
	"polyfit/internal/scape"
)

const (
	// DefaultSteps is the per-axis resolution used when steps is 0.
	DefaultSteps = 20
	MaxSteps     = 500
)

// Surface is a grid of model values. Z[i][j] is the value at (X[j], Y[i]).
// Quadratic surfaces have Y = [0] and a single Z row.
type Surface struct {
	X []float64   `json:"x"`
	Y []float64   `json:"y"`
	Z [][]float64 `json:"z"`
}

// Data pairs the ground truth with a candidate organism on the same grid.
type Data struct {
	Original Surface `json:"original"`
	Organism Surface `json:"organism"`
}

// Build evaluates target and organism coefficients over domain.
func Build(kind model.Kind, target, organism []float64, domain model.Range, steps int) (Data, error) {
	if err := domain.Validate(); err != nil {
		return Data{}, fmt.Errorf("mesh domain: %w", err)
	}
	if steps == 0 {
		steps = DefaultSteps
	}
	if steps < 2 || steps > MaxSteps {
		return Data{}, fmt.Errorf("%w: mesh steps must be in [2, %d], got %d", model.ErrConfiguration, MaxSteps, steps)
	}
	want := kind.Coefficients()
	if len(target) != want {
		return Data{}, fmt.Errorf("%w: target has %d coefficients, %s needs %d", model.ErrConfiguration, len(target), kind, want)
	}
	if len(organism) != want {
		return Data{}, fmt.Errorf("%w: organism has %d coefficients, %s needs %d", model.ErrConfiguration, len(organism), kind, want)
	}

	xs := scape.Linspace(domain.Min, domain.Max, steps)
	ys := []float64{0}
	if kind == model.KindQuadric {
		ys = scape.Linspace(domain.Min, domain.Max, steps)
	}
	return Data{
		Original: surface(kind, target, xs, ys),
		Organism: surface(kind, organism, xs, ys),
	}, nil
}

func surface(kind model.Kind, coefficients, xs, ys []float64) Surface {
	z := make([][]float64, len(ys))
	inputs := make([]float64, kind.Inputs())
	for i, y := range ys {
		row := make([]float64, len(xs))
		for j, x := range xs {
			inputs[0] = x
			if len(inputs) > 1 {
				inputs[1] = y
			}
			row[j] = scape.Predict(kind, coefficients, inputs)
		}
		z[i] = row
	}
	return Surface{
		X: append([]float64(nil), xs...),
		Y: append([]float64(nil), ys...),
		Z: z,
	}
}
