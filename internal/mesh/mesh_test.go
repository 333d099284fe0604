package mesh

import (
	"errors"
	"math"
	"testing"

	"polyfit/internal/model"
	"polyfit/internal/scape"
)

func TestBuildQuadraticSingleRow(t *testing.T) {
	data, err := Build(model.KindQuadratic, scape.DefaultTarget, []float64{10, -5, -10}, scape.DefaultDomain, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(data.Original.Y) != 1 || len(data.Original.Z) != 1 {
		t.Fatalf("quadratic mesh should have one row, got y=%d z=%d", len(data.Original.Y), len(data.Original.Z))
	}
	if len(data.Original.X) != 5 || len(data.Original.Z[0]) != 5 {
		t.Fatalf("unexpected row width: %+v", data.Original)
	}
	// x = -10: 10*100 + 50 - 10
	if data.Original.Z[0][0] != 1040 {
		t.Fatalf("z at x=-10 is %g, want 1040", data.Original.Z[0][0])
	}
	for j := range data.Original.Z[0] {
		if data.Original.Z[0][j] != data.Organism.Z[0][j] {
			t.Fatalf("identical coefficients produced different surfaces at %d", j)
		}
	}
}

func TestBuildQuadricGridOrientation(t *testing.T) {
	target := []float64{0, 0, 0, 1, 2, 0} // z = x + 2y
	organism := []float64{1, 0, 0, 0, 0, 0}
	data, err := Build(model.KindQuadric, target, organism, model.Range{Min: -1, Max: 1}, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(data.Original.Z) != 3 || len(data.Original.Z[0]) != 3 {
		t.Fatalf("expected 3x3 grid, got %d rows", len(data.Original.Z))
	}
	for i, y := range data.Original.Y {
		for j, x := range data.Original.X {
			want := x + 2*y
			if math.Abs(data.Original.Z[i][j]-want) > 1e-12 {
				t.Fatalf("z[%d][%d]=%g, want %g", i, j, data.Original.Z[i][j], want)
			}
			if math.Abs(data.Organism.Z[i][j]-x*x) > 1e-12 {
				t.Fatalf("organism z[%d][%d]=%g, want %g", i, j, data.Organism.Z[i][j], x*x)
			}
		}
	}
}

func TestBuildDefaultsAndValidation(t *testing.T) {
	data, err := Build(model.KindQuadratic, scape.DefaultTarget, scape.DefaultTarget, scape.DefaultDomain, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(data.Original.X) != DefaultSteps {
		t.Fatalf("default steps %d, want %d", len(data.Original.X), DefaultSteps)
	}

	if _, err := Build(model.KindQuadric, scape.DefaultTarget, scape.DefaultTarget, scape.DefaultDomain, 4); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for short target, got %v", err)
	}
	if _, err := Build(model.KindQuadratic, scape.DefaultTarget, scape.DefaultTarget, model.Range{Min: 1, Max: 1}, 4); !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := Build(model.KindQuadric, []float64{1, 1, 1, 1, 1, 1}, []float64{1, 1, 1, 1, 1, 1}, scape.DefaultDomain, MaxSteps+1); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration above MaxSteps, got %v", err)
	}
	if _, err := Build(model.KindQuadratic, scape.DefaultTarget, scape.DefaultTarget, scape.DefaultDomain, 1); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for 1 step, got %v", err)
	}
}
