package model

import (
	"fmt"
	"regexp"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Range bounds the values one coefficient may take.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) Validate() error {
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: min=%g max=%g", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Kind names the polynomial family being fitted.
type Kind string

const (
	// KindQuadratic is y = a*x^2 + b*x + c.
	KindQuadratic Kind = "quadratic"
	// KindQuadric is z = a*x^2 + b*y^2 + c*x*y + d*x + e*y + f.
	KindQuadric Kind = "quadric"
)

func ParseKind(name string) (Kind, error) {
	switch name {
	case "", string(KindQuadratic), "cuadratica", "2d":
		return KindQuadratic, nil
	case string(KindQuadric), "superficie", "surface", "3d":
		return KindQuadric, nil
	default:
		return "", fmt.Errorf("%w: unsupported model kind %q", ErrConfiguration, name)
	}
}

// Coefficients returns the number of coefficients of the model.
func (k Kind) Coefficients() int {
	switch k {
	case KindQuadric:
		return 6
	default:
		return 3
	}
}

// Inputs returns the number of independent variables of the model.
func (k Kind) Inputs() int {
	if k == KindQuadric {
		return 2
	}
	return 1
}

// CoefficientNames lists coefficient labels in genotype segment order.
func (k Kind) CoefficientNames() []string {
	names := []string{"a", "b", "c", "d", "e", "f"}
	return names[:k.Coefficients()]
}

// Genotype is a concatenation of fixed-width binary segments, one per coefficient.
type Genotype string

// Organism is one candidate solution. ID is unique within a run and is what
// elite membership is keyed on.
type Organism struct {
	ID           uint64    `json:"id"`
	Genotype     Genotype  `json:"genotype"`
	Coefficients []float64 `json:"coefficients"`
	Fitness      float64   `json:"fitness"`
	Error        float64   `json:"error"`
	Scored       bool      `json:"scored"`
}

// Clone returns a copy that shares no memory with o.
func (o Organism) Clone() Organism {
	out := o
	out.Coefficients = append([]float64(nil), o.Coefficients...)
	return out
}

// Sample is one ground-truth point the model is fitted against.
type Sample struct {
	Inputs   []float64 `json:"inputs"`
	Expected float64   `json:"expected"`
}

type SampleSet []Sample

type GenerationRecord struct {
	Index          int      `json:"index"`
	Best           Organism `json:"best"`
	BestFitness    float64  `json:"best_fitness"`
	AverageError   float64  `json:"average_error"`
	PopulationSize int      `json:"population_size"`
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	StateUninitialized RunState = "uninitialized"
	StateSeeded        RunState = "seeded"
	StateEvolving      RunState = "evolving"
	StateConverged     RunState = "converged"
	StateExhausted     RunState = "exhausted"
)

// MaxRunIDLength bounds run ids, which double as artifact directory names.
const MaxRunIDLength = 64

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRunID accepts ids made of letters, digits, '.', '_' and '-' that
// start with a letter or digit, so an id is always a single path element.
func ValidateRunID(id string) error {
	if id == "" || len(id) > MaxRunIDLength || !runIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid run id %q", ErrConfiguration, id)
	}
	return nil
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	VersionedRecord
	ID               string             `json:"id"`
	CreatedAtUTC     string             `json:"created_at_utc"`
	Kind             Kind               `json:"kind"`
	Ranges           []Range            `json:"ranges"`
	Target           []float64          `json:"target,omitempty"`
	Domain           Range              `json:"domain"`
	Selection        string             `json:"selection"`
	Criterion        string             `json:"criterion"`
	Threshold        float64            `json:"threshold"`
	MaxGenerations   int                `json:"max_generations"`
	Seed             int64              `json:"seed"`
	PopulationSize   int                `json:"population_size"`
	State            RunState           `json:"state"`
	History          []GenerationRecord `json:"history"`
	BestOrganisms    []Organism         `json:"best_organisms"`
	FinalBestError   float64            `json:"final_best_error"`
	FinalBestFitness float64            `json:"final_best_fitness"`
}
