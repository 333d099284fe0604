package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polyfit/internal/mesh"
	"polyfit/internal/model"
	"polyfit/internal/stats"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("polyfitctl %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func runArgs(artifacts string, extra ...string) []string {
	args := []string{
		"run",
		"--artifacts", artifacts,
		"--log-level", "error",
		"--pop", "32",
		"--gens", "20",
		"--selection", "tournament",
		"--seed", "3",
	}
	return append(args, extra...)
}

func TestRunCommandWritesArtifacts(t *testing.T) {
	artifacts := t.TempDir()
	out := execute(t, runArgs(artifacts)...)
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "kind=quadratic") {
		t.Fatalf("unexpected run output: %q", out)
	}

	entries, err := stats.ListRunIndex(artifacts)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID
	for _, file := range []string{"config.json", "history.json", "best_organisms.json", "average_error.csv", "evolution.csv"} {
		if _, err := os.Stat(filepath.Join(artifacts, runID, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig(artifacts, runID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if cfg.Domain != (model.Range{Min: -10, Max: 10}) {
		t.Fatalf("unexpected domain %+v", cfg.Domain)
	}
	if cfg.PopulationSize != 32 || cfg.Selection != "tournament" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	listed := execute(t, "runs", "list", "--artifacts", artifacts, "--log-level", "error")
	if !strings.Contains(listed, "run_id="+runID) {
		t.Fatalf("runs list missing %s: %q", runID, listed)
	}

	exportDir := t.TempDir()
	exported := execute(t, "export", "--latest", "--artifacts", artifacts, "--out", exportDir, "--log-level", "error")
	if !strings.Contains(exported, "exported run_id="+runID) {
		t.Fatalf("unexpected export output: %q", exported)
	}
	if _, err := os.Stat(filepath.Join(exportDir, runID, "history.json")); err != nil {
		t.Fatalf("expected exported history: %v", err)
	}

	meshOut := execute(t, "mesh", "--run-id", runID, "--steps", "4", "--artifacts", artifacts, "--log-level", "error")
	var data mesh.Data
	if err := json.Unmarshal([]byte(meshOut), &data); err != nil {
		t.Fatalf("decode mesh: %v", err)
	}
	if len(data.Original.X) != 4 || len(data.Organism.Z) != 1 {
		t.Fatalf("unexpected mesh shape: x=%d rows=%d", len(data.Original.X), len(data.Organism.Z))
	}
}

func TestRunsShowReadsPersistentStore(t *testing.T) {
	artifacts := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "badger")
	out := execute(t, runArgs(artifacts, "--store", "badger", "--db-path", dbPath, "--json")...)

	var record model.RunRecord
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("decode run record: %v", err)
	}
	if record.ID == "" || len(record.History) == 0 {
		t.Fatalf("unexpected record: %+v", record)
	}

	shown := execute(t, "runs", "show", record.ID, "--store", "badger", "--db-path", dbPath, "--log-level", "error")
	var loaded model.RunRecord
	if err := json.Unmarshal([]byte(shown), &loaded); err != nil {
		t.Fatalf("decode shown record: %v", err)
	}
	if loaded.ID != record.ID || len(loaded.History) != len(record.History) {
		t.Fatalf("shown record differs: %s/%d vs %s/%d", loaded.ID, len(loaded.History), record.ID, len(record.History))
	}

	execute(t, "runs", "delete", record.ID, "--store", "badger", "--db-path", dbPath, "--log-level", "error")
	// the store no longer holds it, so show falls back to the artifacts
	fallback := execute(t, "runs", "show", record.ID, "--store", "badger", "--db-path", dbPath, "--artifacts", artifacts, "--log-level", "error")
	var shownArtifacts struct {
		Config       stats.RunConfig          `json:"config"`
		History      []model.GenerationRecord `json:"history"`
		AverageError []float64                `json:"average_error"`
	}
	if err := json.Unmarshal([]byte(fallback), &shownArtifacts); err != nil {
		t.Fatalf("decode fallback output: %v", err)
	}
	if shownArtifacts.Config.RunID != record.ID || len(shownArtifacts.AverageError) != len(record.History) {
		t.Fatalf("unexpected fallback output: %q", fallback)
	}
}

func TestRunCommandConfigFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	configPath := filepath.Join(dir, "polyfit.yaml")
	body := `
server:
  log_level: error
run:
  kind: quadratic
  ranges:
    - {min: 0, max: 20}
    - {min: -10, max: 0}
    - {min: -20, max: 0}
  selection: rank
  criterion: generations
  max_generations: 5
  population_size: 16
  seed: 40
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	execute(t, "run", "--config", configPath, "--artifacts", artifacts, "--seed", "41")

	entries, err := stats.ListRunIndex(artifacts)
	if err != nil || len(entries) != 1 {
		t.Fatalf("list run index: %d entries, err=%v", len(entries), err)
	}
	e := entries[0]
	if e.Selection != "rank" || e.Seed != 41 || e.Generations != 5 || e.State != model.StateExhausted {
		t.Fatalf("unexpected index entry %+v", e)
	}
}

func TestBenchCommandSummarizesTrials(t *testing.T) {
	artifacts := t.TempDir()
	out := execute(t,
		"bench",
		"--artifacts", artifacts,
		"--log-level", "error",
		"--trials", "4",
		"--parallel", "2",
		"--pop", "32",
		"--gens", "15",
		"--json",
	)
	var summary stats.BenchmarkSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Trials != 4 || len(summary.Runs) != 4 {
		t.Fatalf("unexpected trial count %d/%d", summary.Trials, len(summary.Runs))
	}
	seeds := map[int64]bool{}
	for _, trial := range summary.Runs {
		seeds[trial.Seed] = true
	}
	for _, seed := range []int64{1, 2, 3, 4} {
		if !seeds[seed] {
			t.Fatalf("missing trial for seed %d: %+v", seed, summary.Runs)
		}
	}

	matches, err := filepath.Glob(filepath.Join(artifacts, "bench-*", "benchmark_summary.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one benchmark summary file, got %v (err=%v)", matches, err)
	}

	benchID := filepath.Base(filepath.Dir(matches[0]))
	shown := execute(t, "runs", "show", benchID, "--artifacts", artifacts, "--log-level", "error")
	var loaded stats.BenchmarkSummary
	if err := json.Unmarshal([]byte(shown), &loaded); err != nil {
		t.Fatalf("decode shown summary: %v", err)
	}
	if loaded.Trials != summary.Trials || loaded.Successes != summary.Successes {
		t.Fatalf("shown summary differs: %+v vs %+v", loaded, summary)
	}
}

func TestCommandErrors(t *testing.T) {
	artifacts := t.TempDir()
	cases := [][]string{
		{"export", "--artifacts", artifacts},
		{"export", "--artifacts", artifacts, "--run-id", "x", "--latest"},
		{"mesh", "--artifacts", artifacts, "--latest"},
		{"bench", "--artifacts", artifacts, "--trials", "0"},
		{"run", "--artifacts", artifacts, "--range", "5:1"},
		{"run", "--artifacts", artifacts, "--selection", "annealing"},
		{"run", "--artifacts", artifacts, "--store", "postgres"},
		{"runs", "list", "--artifacts", artifacts, "--limit", "0"},
		{"--config", filepath.Join(artifacts, "missing.yaml"), "runs", "list"},
	}
	for _, args := range cases {
		var out bytes.Buffer
		args = append(args, "--log-level", "error")
		if err := run(context.Background(), args, &out); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestParseRange(t *testing.T) {
	r, err := parseRange(" -2.5 : 4 ")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	if r != (model.Range{Min: -2.5, Max: 4}) {
		t.Fatalf("unexpected range %+v", r)
	}
	for _, bad := range []string{"1", "a:2", "1:b", "3:3"} {
		if _, err := parseRange(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDefaultRanges(t *testing.T) {
	if got := defaultRanges("quadratic"); len(got) != 3 {
		t.Fatalf("quadratic default ranges %d, want 3", len(got))
	}
	if got := defaultRanges("quadric"); len(got) != 6 {
		t.Fatalf("quadric default ranges %d, want 6", len(got))
	}
	if got := defaultRanges("cubic"); got != nil {
		t.Fatalf("unknown kind should have no default ranges: %v", got)
	}
}
