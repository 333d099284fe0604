package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"polyfit/internal/config"
	"polyfit/internal/model"
	"polyfit/pkg/polyfit"
)

// runFlags are shared by run and bench. A flag overrides the config file
// only when it was set on the command line.
type runFlags struct {
	kind           string
	bits           int
	ranges         []string
	target         []float64
	domain         string
	points         int
	selection      string
	criterion      string
	threshold      float64
	maxGenerations int
	population     int
	mutationRate   float64
	seed           int64
	samplesCSV     string
}

func (f *runFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.kind, "kind", "quadratic", "model kind: quadratic|quadric")
	fs.IntVar(&f.bits, "bits", 8, "bits per coefficient")
	fs.StringSliceVar(&f.ranges, "range", nil, "coefficient ranges min:max in coefficient order (defaults per kind)")
	fs.Float64SliceVar(&f.target, "target", nil, "hidden target coefficients (quadratic default 10,-5,-10)")
	fs.StringVar(&f.domain, "domain", "-10:10", "sampling domain min:max for each input")
	fs.IntVar(&f.points, "points", 0, "sample points per axis (0 uses the default grid)")
	fs.StringVar(&f.selection, "selection", "proportional", "selection: proportional|rank|uniform|tournament")
	fs.StringVar(&f.criterion, "criterion", "error", "stopping criterion: none|error|progressive|generations")
	fs.Float64Var(&f.threshold, "threshold", 0.05, "criterion threshold")
	fs.IntVar(&f.maxGenerations, "gens", polyfit.DefaultMaxGenerations, "maximum generations")
	fs.IntVar(&f.population, "pop", 0, "even population size in [16, 1024] (0 draws one)")
	fs.Float64Var(&f.mutationRate, "mutation-rate", 0, "per-bit mutation probability (0 uses the default)")
	fs.Int64Var(&f.seed, "seed", 1, "rng seed")
	fs.StringVar(&f.samplesCSV, "samples-csv", "", "CSV of ground-truth samples: input columns then expected value")
}

// resolve builds the run configuration from the file section and the flags,
// then loads CSV samples when configured.
func (f *runFlags) resolve(fs *pflag.FlagSet, file config.RunFile, fromFile bool) (polyfit.RunConfig, error) {
	cfg := file.RunConfig()
	if err := f.apply(fs, &cfg, fromFile); err != nil {
		return polyfit.RunConfig{}, err
	}
	if fs.Changed("samples-csv") {
		file.SamplesCSV = f.samplesCSV
	}
	if err := file.LoadSamples(&cfg); err != nil {
		return polyfit.RunConfig{}, err
	}
	return cfg, nil
}

// apply overlays explicitly set flags onto cfg. With no config file every
// flag counts as set so its default applies.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *polyfit.RunConfig, fromFile bool) error {
	set := func(name string) bool {
		return !fromFile || fs.Changed(name)
	}
	if set("kind") {
		cfg.Kind = f.kind
	}
	if set("bits") {
		cfg.Bits = f.bits
	}
	if set("range") && len(f.ranges) > 0 {
		ranges, err := parseRanges(f.ranges)
		if err != nil {
			return err
		}
		cfg.Ranges = ranges
	}
	if set("target") && len(f.target) > 0 {
		cfg.Target = append([]float64(nil), f.target...)
	}
	if set("domain") {
		domain, err := parseRange(f.domain)
		if err != nil {
			return err
		}
		cfg.Domain = domain
	}
	if set("points") {
		cfg.Points = f.points
	}
	if set("selection") {
		cfg.Selection = f.selection
	}
	if set("criterion") {
		cfg.Criterion = f.criterion
	}
	if set("threshold") {
		cfg.Threshold = f.threshold
	}
	if set("gens") {
		cfg.MaxGenerations = f.maxGenerations
	}
	if set("pop") {
		cfg.PopulationSize = f.population
	}
	if set("mutation-rate") {
		cfg.MutationRate = f.mutationRate
	}
	if set("seed") {
		cfg.Seed = f.seed
	}
	if len(cfg.Ranges) == 0 {
		cfg.Ranges = defaultRanges(cfg.Kind)
	}
	return nil
}

// defaultRanges brackets the default quadratic target; quadric coefficients
// get a symmetric range.
func defaultRanges(kind string) []model.Range {
	k, err := model.ParseKind(kind)
	if err != nil {
		return nil
	}
	if k == model.KindQuadratic {
		return []model.Range{{Min: 0, Max: 20}, {Min: -10, Max: 0}, {Min: -20, Max: 0}}
	}
	out := make([]model.Range, k.Coefficients())
	for i := range out {
		out[i] = model.Range{Min: -20, Max: 20}
	}
	return out
}

func parseRanges(specs []string) ([]model.Range, error) {
	out := make([]model.Range, 0, len(specs))
	for _, spec := range specs {
		r, err := parseRange(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// parseRange reads "min:max".
func parseRange(spec string) (model.Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok {
		return model.Range{}, fmt.Errorf("range %q must be min:max", spec)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("range %q: min: %w", spec, err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return model.Range{}, fmt.Errorf("range %q: max: %w", spec, err)
	}
	r := model.Range{Min: min, Max: max}
	if err := r.Validate(); err != nil {
		return model.Range{}, err
	}
	return r, nil
}
