package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polyfit/internal/model"
)

func sampleRunRecord(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		ID:             id,
		CreatedAtUTC:   createdAt,
		Kind:           model.KindQuadratic,
		Ranges:         []model.Range{{Min: -20, Max: 20}, {Min: -20, Max: 20}, {Min: -20, Max: 20}},
		Selection:      "rank",
		Criterion:      "generations(3)",
		MaxGenerations: 3,
		Seed:           9,
		PopulationSize: 16,
		State:          model.StateExhausted,
		History: []model.GenerationRecord{
			{Index: 0, BestFitness: 0.6, AverageError: 300, Best: model.Organism{Error: 40, Coefficients: []float64{8, -3, -12}}},
			{Index: 1, BestFitness: 0.8, AverageError: 150, Best: model.Organism{Error: 12, Coefficients: []float64{9.5, -4, -11}}},
			{Index: 2, BestFitness: 0.95, AverageError: 75.5, Best: model.Organism{Error: 2, Coefficients: []float64{10, -5, -10.2}}},
		},
		BestOrganisms:    []model.Organism{{ID: 7, Fitness: 0.95, Coefficients: []float64{10, -5, -10.2}}},
		FinalBestFitness: 0.95,
		FinalBestError:   2,
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")
	run := sampleRunRecord("run-123", "2026-02-01T00:00:00Z")

	runDir, err := WriteRunArtifacts(baseDir, run)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range runArtifactFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, run.ID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range runArtifactFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, run.ID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg.Selection != "rank" || cfg.Seed != 9 || len(cfg.Ranges) != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	history, ok, err := ReadHistory(baseDir, run.ID)
	if err != nil || !ok {
		t.Fatalf("read history: ok=%v err=%v", ok, err)
	}
	if len(history) != 3 || history[2].BestFitness != 0.95 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAverageErrorSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	run := sampleRunRecord("run-series", "")
	if _, err := WriteRunArtifacts(baseDir, run); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	series, ok, err := ReadAverageErrorSeries(baseDir, run.ID)
	if err != nil || !ok {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	want := []float64{300, 150, 75.5}
	if len(series) != len(want) {
		t.Fatalf("series length %d, want %d", len(series), len(want))
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("series[%d]=%g, want %g", i, series[i], want[i])
		}
	}

	if _, ok, err := ReadAverageErrorSeries(baseDir, "missing"); err != nil || ok {
		t.Fatalf("missing series: ok=%v err=%v", ok, err)
	}
}

func TestEvolutionSeriesHasCoefficientColumns(t *testing.T) {
	dir := t.TempDir()
	run := sampleRunRecord("run-evo", "")
	if err := WriteEvolutionSeries(dir, run.Kind, run.History); err != nil {
		t.Fatalf("write evolution: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "evolution.csv"))
	if err != nil {
		t.Fatalf("read evolution: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "generation,best_fitness,best_error,a,b,c" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 4 || lines[3] != "2,0.95,2,10,-5,-10.2" {
		t.Fatalf("unexpected rows: %q", lines)
	}
}

func TestRunIndexNewestFirstAndReplacesEntries(t *testing.T) {
	baseDir := t.TempDir()
	older := IndexEntryOf(sampleRunRecord("run-old", "2026-01-01T00:00:00Z"))
	newer := IndexEntryOf(sampleRunRecord("run-new", "2026-01-02T00:00:00Z"))
	for _, entry := range []RunIndexEntry{older, newer} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append index: %v", err)
		}
	}
	older.State = model.StateConverged
	if err := AppendRunIndex(baseDir, older); err != nil {
		t.Fatalf("replace index entry: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-new" || entries[1].State != model.StateConverged {
		t.Fatalf("unexpected index: %+v", entries)
	}
	if entries[0].Generations != 3 {
		t.Fatalf("generations %d, want 3", entries[0].Generations)
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestRunArtifactsRejectUnsafeIDs(t *testing.T) {
	root := t.TempDir()
	baseDir := filepath.Join(root, "artifacts")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`, "/abs", ".hidden", strings.Repeat("x", model.MaxRunIDLength+1)} {
		if _, err := WriteRunArtifacts(baseDir, sampleRunRecord(id, "")); err == nil {
			t.Fatalf("expected write to reject id %q", id)
		}
		if _, err := ExportRunArtifacts(baseDir, id, filepath.Join(root, "out")); err == nil {
			t.Fatalf("expected export to reject id %q", id)
		}
		if _, _, err := ReadRunConfig(baseDir, id); err == nil {
			t.Fatalf("expected config read to reject id %q", id)
		}
		if _, _, err := ReadHistory(baseDir, id); err == nil {
			t.Fatalf("expected history read to reject id %q", id)
		}
		if _, _, err := ReadAverageErrorSeries(baseDir, id); err == nil {
			t.Fatalf("expected series read to reject id %q", id)
		}
		if _, _, err := ReadBenchmarkSummary(baseDir, id); err == nil {
			t.Fatalf("expected summary read to reject id %q", id)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "config.json")); !os.IsNotExist(err) {
		t.Fatalf("artifacts escaped the base directory: %v", err)
	}
}
