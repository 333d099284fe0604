package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"polyfit/internal/model"
)

const runIndexFile = "run_index.json"

// Files written for every run, in export order.
var runArtifactFiles = []string{
	"config.json",
	"history.json",
	"best_organisms.json",
	"average_error.csv",
	"evolution.csv",
}

// RunConfig is the reproducible part of a run record.
type RunConfig struct {
	RunID          string        `json:"run_id"`
	Kind           model.Kind    `json:"kind"`
	Ranges         []model.Range `json:"ranges"`
	Target         []float64     `json:"target,omitempty"`
	Domain         model.Range   `json:"domain"`
	Selection      string        `json:"selection"`
	Criterion      string        `json:"criterion"`
	Threshold      float64       `json:"threshold"`
	MaxGenerations int           `json:"max_generations"`
	Seed           int64         `json:"seed"`
	PopulationSize int           `json:"population_size"`
}

type RunIndexEntry struct {
	RunID            string         `json:"run_id"`
	Kind             model.Kind     `json:"kind"`
	Selection        string         `json:"selection"`
	State            model.RunState `json:"state"`
	Generations      int            `json:"generations"`
	Seed             int64          `json:"seed"`
	FinalBestFitness float64        `json:"final_best_fitness"`
	FinalBestError   float64        `json:"final_best_error"`
	CreatedAtUTC     string         `json:"created_at_utc"`
}

func ConfigOf(run model.RunRecord) RunConfig {
	return RunConfig{
		RunID:          run.ID,
		Kind:           run.Kind,
		Ranges:         append([]model.Range(nil), run.Ranges...),
		Target:         append([]float64(nil), run.Target...),
		Domain:         run.Domain,
		Selection:      run.Selection,
		Criterion:      run.Criterion,
		Threshold:      run.Threshold,
		MaxGenerations: run.MaxGenerations,
		Seed:           run.Seed,
		PopulationSize: run.PopulationSize,
	}
}

func IndexEntryOf(run model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:            run.ID,
		Kind:             run.Kind,
		Selection:        run.Selection,
		State:            run.State,
		Generations:      len(run.History),
		Seed:             run.Seed,
		FinalBestFitness: run.FinalBestFitness,
		FinalBestError:   run.FinalBestError,
		CreatedAtUTC:     run.CreatedAtUTC,
	}
}

// WriteRunArtifacts writes the run under baseDir/<run id> and returns that
// directory.
func WriteRunArtifacts(baseDir string, run model.RunRecord) (string, error) {
	runDir, err := RunDir(baseDir, run.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), ConfigOf(run)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "history.json"), run.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "best_organisms.json"), run.BestOrganisms); err != nil {
		return "", err
	}
	if err := WriteAverageErrorSeries(runDir, run.History); err != nil {
		return "", err
	}
	if err := WriteEvolutionSeries(runDir, run.Kind, run.History); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	src, err := RunDir(baseDir, runID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range runArtifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	benchmarkPath := filepath.Join(src, "benchmark_summary.json")
	if _, err := os.Stat(benchmarkPath); err == nil {
		if err := copyFile(benchmarkPath, filepath.Join(dst, "benchmark_summary.json")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

// RunDir is baseDir/<run id>. Ids that are not a single safe path element
// are rejected.
func RunDir(baseDir, runID string) (string, error) {
	if err := model.ValidateRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(baseDir, runID), nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	dir, err := RunDir(baseDir, runID)
	if err != nil {
		return cfg, false, err
	}
	ok, err := readJSON(filepath.Join(dir, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadHistory(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	var history []model.GenerationRecord
	dir, err := RunDir(baseDir, runID)
	if err != nil {
		return nil, false, err
	}
	ok, err := readJSON(filepath.Join(dir, "history.json"), &history)
	return history, ok, err
}

// WriteAverageErrorSeries writes generation,average_error rows.
func WriteAverageErrorSeries(runDir string, history []model.GenerationRecord) error {
	rows := make([][]string, 0, len(history))
	for _, record := range history {
		rows = append(rows, []string{
			strconv.Itoa(record.Index),
			strconv.FormatFloat(record.AverageError, 'f', -1, 64),
		})
	}
	return writeCSV(filepath.Join(runDir, "average_error.csv"), []string{"generation", "average_error"}, rows)
}

// WriteEvolutionSeries writes the best organism of every generation, one
// column per coefficient.
func WriteEvolutionSeries(runDir string, kind model.Kind, history []model.GenerationRecord) error {
	header := append([]string{"generation", "best_fitness", "best_error"}, kind.CoefficientNames()...)
	rows := make([][]string, 0, len(history))
	for _, record := range history {
		row := []string{
			strconv.Itoa(record.Index),
			strconv.FormatFloat(record.BestFitness, 'f', -1, 64),
			strconv.FormatFloat(record.Best.Error, 'f', -1, 64),
		}
		for _, c := range record.Best.Coefficients {
			row = append(row, strconv.FormatFloat(c, 'f', -1, 64))
		}
		rows = append(rows, row)
	}
	return writeCSV(filepath.Join(runDir, "evolution.csv"), header, rows)
}

// ReadAverageErrorSeries reads back average_error.csv.
func ReadAverageErrorSeries(baseDir, runID string) ([]float64, bool, error) {
	dir, err := RunDir(baseDir, runID)
	if err != nil {
		return nil, false, err
	}
	file, err := os.Open(filepath.Join(dir, "average_error.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	series := make([]float64, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("average error row must have 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
