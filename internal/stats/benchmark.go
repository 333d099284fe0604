package stats

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BenchmarkTrial is the outcome of one independent run in a benchmark.
type BenchmarkTrial struct {
	RunID       string  `json:"run_id"`
	Seed        int64   `json:"seed"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
	BestError   float64 `json:"best_error"`
	Success     bool    `json:"success"`
}

type BenchmarkSummary struct {
	Trials            int              `json:"trials"`
	Successes         int              `json:"successes"`
	SuccessRate       float64          `json:"success_rate"`
	FitnessFloor      float64          `json:"fitness_floor"`
	BestFitnessMean   float64          `json:"best_fitness_mean"`
	BestFitnessStd    float64          `json:"best_fitness_std"`
	BestErrorMean     float64          `json:"best_error_mean"`
	BestErrorMedian   float64          `json:"best_error_median"`
	BestErrorMin      float64          `json:"best_error_min"`
	BestErrorMax      float64          `json:"best_error_max"`
	GenerationsMean   float64          `json:"generations_mean"`
	MajoritySucceeded bool             `json:"majority_succeeded"`
	Runs              []BenchmarkTrial `json:"runs"`
}

// SummarizeBenchmark marks every trial whose best fitness reaches floor as a
// success and reduces the trials to summary statistics.
func SummarizeBenchmark(trials []BenchmarkTrial, floor float64) (BenchmarkSummary, error) {
	if len(trials) == 0 {
		return BenchmarkSummary{}, fmt.Errorf("benchmark has no trials")
	}

	runs := append([]BenchmarkTrial(nil), trials...)
	fitness := make([]float64, len(runs))
	errs := make([]float64, len(runs))
	generations := make([]float64, len(runs))
	successes := 0
	for i := range runs {
		runs[i].Success = runs[i].BestFitness >= floor
		if runs[i].Success {
			successes++
		}
		fitness[i] = runs[i].BestFitness
		errs[i] = runs[i].BestError
		generations[i] = float64(runs[i].Generations)
	}

	sortedErrs := append([]float64(nil), errs...)
	sort.Float64s(sortedErrs)

	mean, std := stat.MeanStdDev(fitness, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return BenchmarkSummary{
		Trials:            len(runs),
		Successes:         successes,
		SuccessRate:       float64(successes) / float64(len(runs)),
		FitnessFloor:      floor,
		BestFitnessMean:   mean,
		BestFitnessStd:    std,
		BestErrorMean:     stat.Mean(errs, nil),
		BestErrorMedian:   stat.Quantile(0.5, stat.Empirical, sortedErrs, nil),
		BestErrorMin:      floats.Min(errs),
		BestErrorMax:      floats.Max(errs),
		GenerationsMean:   stat.Mean(generations, nil),
		MajoritySucceeded: successes*2 > len(runs),
		Runs:              runs,
	}, nil
}

func WriteBenchmarkSummary(runDir string, summary BenchmarkSummary) error {
	return writeJSON(filepath.Join(runDir, "benchmark_summary.json"), summary)
}

func ReadBenchmarkSummary(baseDir, runID string) (BenchmarkSummary, bool, error) {
	var summary BenchmarkSummary
	dir, err := RunDir(baseDir, runID)
	if err != nil {
		return summary, false, err
	}
	ok, err := readJSON(filepath.Join(dir, "benchmark_summary.json"), &summary)
	return summary, ok, err
}
