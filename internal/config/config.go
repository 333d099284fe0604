package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"polyfit/internal/model"
	"polyfit/internal/platform"
	"polyfit/internal/scape"
	"polyfit/internal/storage"
	"polyfit/pkg/polyfit"
)

const (
	DefaultAddr      = ":8080"
	DefaultRateLimit = 5.0
	DefaultRateBurst = 10
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("run_id", func(fl validator.FieldLevel) bool {
		return model.ValidateRunID(fl.Field().String()) == nil
	})
	return v
}

// File is the on-disk layout. Either section may be omitted.
type File struct {
	Server ServerFile `json:"server" yaml:"server"`
	Run    RunFile    `json:"run" yaml:"run"`
}

type ServerFile struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
	StoreKind    string        `json:"store" yaml:"store" validate:"omitempty,oneof=memory sqlite badger"`
	DBPath       string        `json:"db_path" yaml:"db_path"`
	ArtifactsDir string        `json:"artifacts_dir" yaml:"artifacts_dir"`
	RunTTL       time.Duration `json:"run_ttl" yaml:"run_ttl" validate:"gte=0"`
	// RateLimit is the sustained configure and evolve requests per second.
	// Unset means DefaultRateLimit; 0 disables limiting.
	RateLimit *float64 `json:"rate_limit" yaml:"rate_limit" validate:"omitempty,gte=0"`
	RateBurst int      `json:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
	LogLevel  string   `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type RangeSpec struct {
	Min float64 `json:"min" yaml:"min" validate:"ltfield=Max"`
	Max float64 `json:"max" yaml:"max"`
}

type SampleSpec struct {
	Inputs   []float64 `json:"inputs" yaml:"inputs" validate:"required,min=1,max=2"`
	Expected float64   `json:"expected" yaml:"expected"`
}

// RunFile mirrors polyfit.RunConfig. Zero values fall back to the engine
// defaults.
type RunFile struct {
	ID             string       `json:"id" yaml:"id" validate:"omitempty,run_id"`
	Kind           string       `json:"kind" yaml:"kind" validate:"omitempty,oneof=quadratic quadric cuadratica superficie surface 2d 3d"`
	Bits           int          `json:"bits" yaml:"bits" validate:"gte=0,lte=16"`
	Ranges         []RangeSpec  `json:"ranges" yaml:"ranges" validate:"omitempty,min=3,max=6,dive"`
	Samples        []SampleSpec `json:"samples" yaml:"samples" validate:"omitempty,max=10000,dive"`
	SamplesCSV     string       `json:"samples_csv" yaml:"samples_csv" validate:"omitempty,excluded_with=Samples"`
	Target         []float64    `json:"target" yaml:"target" validate:"omitempty,min=3,max=6"`
	Domain         *RangeSpec   `json:"domain" yaml:"domain"`
	Points         int          `json:"points" yaml:"points" validate:"gte=0,lte=500"`
	Selection      string       `json:"selection" yaml:"selection"`
	Criterion      string       `json:"criterion" yaml:"criterion"`
	Threshold      float64      `json:"threshold" yaml:"threshold" validate:"gte=0"`
	MaxGenerations int          `json:"max_generations" yaml:"max_generations" validate:"gte=0,lte=10000"`
	PopulationSize int          `json:"population_size" yaml:"population_size" validate:"omitempty,gte=16,lte=1024"`
	MutationRate   float64      `json:"mutation_rate" yaml:"mutation_rate" validate:"gte=0,lte=1"`
	Seed           int64        `json:"seed" yaml:"seed"`
}

// Load reads and validates a YAML config file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML, rejecting unknown keys, and validates the result.
// An empty document yields the defaults.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: decode yaml: %v", model.ErrConfiguration, err)
	}
	f.Server.applyDefaults()
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %s", model.ErrConfiguration, describe(err))
	}
	return nil
}

// Validate checks a run section on its own, as submitted over HTTP.
func (r RunFile) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", model.ErrConfiguration, describe(err))
	}
	return nil
}

func (s *ServerFile) applyDefaults() {
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.StoreKind == "" {
		s.StoreKind = storage.DefaultStoreKind()
	}
	if s.RunTTL == 0 {
		s.RunTTL = platform.DefaultRunTTL
	}
	if s.RateLimit == nil {
		limit := DefaultRateLimit
		s.RateLimit = &limit
	}
	if s.RateBurst == 0 {
		s.RateBurst = DefaultRateBurst
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

// Rate is the effective request rate; 0 means unlimited.
func (s ServerFile) Rate() float64 {
	if s.RateLimit == nil {
		return DefaultRateLimit
	}
	return *s.RateLimit
}

// Level maps LogLevel onto a slog level; unknown names fall back to info.
func (s ServerFile) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s ServerFile) Options(logger *slog.Logger) polyfit.Options {
	return polyfit.Options{
		StoreKind:    s.StoreKind,
		DBPath:       s.DBPath,
		ArtifactsDir: s.ArtifactsDir,
		RunTTL:       s.RunTTL,
		Logger:       logger,
	}
}

// RunConfig converts the file section into engine configuration. Engine-level
// checks such as range counts per kind happen in polyfit.Configure.
func (r RunFile) RunConfig() polyfit.RunConfig {
	cfg := polyfit.RunConfig{
		ID:             r.ID,
		Kind:           r.Kind,
		Bits:           r.Bits,
		Target:         append([]float64(nil), r.Target...),
		Points:         r.Points,
		Selection:      r.Selection,
		Criterion:      r.Criterion,
		Threshold:      r.Threshold,
		MaxGenerations: r.MaxGenerations,
		PopulationSize: r.PopulationSize,
		MutationRate:   r.MutationRate,
		Seed:           r.Seed,
	}
	if len(r.Target) == 0 {
		cfg.Target = nil
	}
	for _, spec := range r.Ranges {
		cfg.Ranges = append(cfg.Ranges, model.Range{Min: spec.Min, Max: spec.Max})
	}
	for _, spec := range r.Samples {
		cfg.Samples = append(cfg.Samples, model.Sample{
			Inputs:   append([]float64(nil), spec.Inputs...),
			Expected: spec.Expected,
		})
	}
	if r.Domain != nil {
		cfg.Domain = model.Range{Min: r.Domain.Min, Max: r.Domain.Max}
	}
	return cfg
}

// LoadSamples reads SamplesCSV into cfg.Samples using cfg.Kind for the
// column count. It is a no-op when no CSV is configured.
func (r RunFile) LoadSamples(cfg *polyfit.RunConfig) error {
	if r.SamplesCSV == "" {
		return nil
	}
	kind, err := model.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}
	samples, err := scape.LoadSamplesCSV(r.SamplesCSV, kind)
	if err != nil {
		return fmt.Errorf("load samples %s: %w", r.SamplesCSV, err)
	}
	cfg.Samples = samples
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
