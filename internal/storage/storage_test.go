package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	// Check if database file was created
	dbPath := filepath.Join(tempDir, "pipeline-runs.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	// A regular file cannot hold the database
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := New(file)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}

	// Test closing already closed store
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestRecordRun(t *testing.T) {
	store := newTestStore(t)

	run, err := store.RecordRun(RunRecord{
		Outcome:          "accepted",
		ModelPath:        "artifact/model_trainer/trained_model/model.gob",
		Metrics:          &RunMetrics{Accuracy: 0.9, F1: 0.85, Precision: 0.8, Recall: 0.9},
		TrainAccuracy:    0.97,
		ExpectedAccuracy: 0.6,
	})
	if err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	if run.ID == "" {
		t.Error("Expected run ID to be generated")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		t.Error("Expected timestamps to be filled in")
	}

	runs, err := store.GetRuns(run.StartedAt.Add(-time.Second), run.StartedAt.Add(time.Second))
	if err != nil {
		t.Fatalf("Failed to get runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != run.ID || runs[0].Metrics == nil || runs[0].Metrics.F1 != 0.85 {
		t.Errorf("Stored run does not match: %+v", runs[0])
	}
}

func TestGetRuns(t *testing.T) {
	store := newTestStore(t)
	baseTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.RecordRun(RunRecord{
			StartedAt: baseTime.Add(time.Duration(i) * time.Hour),
			Outcome:   "accepted",
		})
		if err != nil {
			t.Fatalf("Failed to record run %d: %v", i, err)
		}
	}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"all runs", baseTime.Add(-time.Hour), baseTime.Add(10 * time.Hour), 5},
		{"inclusive bounds", baseTime.Add(time.Hour), baseTime.Add(3 * time.Hour), 3},
		{"single run", baseTime, baseTime, 1},
		{"before history", baseTime.Add(-2 * time.Hour), baseTime.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.GetRuns(tt.start, tt.end)
			if err != nil {
				t.Fatalf("Failed to get runs: %v", err)
			}
			if len(runs) != tt.want {
				t.Errorf("Expected %d runs, got %d", tt.want, len(runs))
			}
			for i := 1; i < len(runs); i++ {
				if runs[i].StartedAt.Before(runs[i-1].StartedAt) {
					t.Error("Runs are not ordered by start time")
				}
			}
		})
	}
}

func TestLatest(t *testing.T) {
	store := newTestStore(t)
	baseTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, ok, err := store.Latest("accepted"); err != nil || ok {
		t.Fatalf("Expected no accepted run in empty ledger, got ok=%v err=%v", ok, err)
	}

	outcomes := []string{"accepted", "accepted", "rejected", "failed"}
	var ids []string
	for i, outcome := range outcomes {
		run, err := store.RecordRun(RunRecord{
			StartedAt: baseTime.Add(time.Duration(i) * time.Minute),
			Outcome:   outcome,
		})
		if err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
		ids = append(ids, run.ID)
	}

	run, ok, err := store.Latest("accepted")
	if err != nil || !ok {
		t.Fatalf("Expected accepted run, got ok=%v err=%v", ok, err)
	}
	if run.ID != ids[1] {
		t.Errorf("Expected latest accepted run %s, got %s", ids[1], run.ID)
	}

	run, ok, err = store.Latest("rejected")
	if err != nil || !ok || run.ID != ids[2] {
		t.Errorf("Expected rejected run %s, got %+v ok=%v err=%v", ids[2], run, ok, err)
	}
}

func TestStages(t *testing.T) {
	store := newTestStore(t)
	baseTime := time.Now()

	if err := store.StoreStage(StageRecord{Stage: "ingest"}); err == nil {
		t.Error("Expected error for stage without run id")
	}

	for i, stage := range []string{"ingest", "transform", "train"} {
		err := store.StoreStage(StageRecord{
			RunID:     "run-1",
			Stage:     stage,
			StartedAt: baseTime.Add(time.Duration(i) * time.Second),
			Duration:  time.Second,
			Artifacts: map[string]string{"path": stage + ".out"},
		})
		if err != nil {
			t.Fatalf("Failed to store stage: %v", err)
		}
	}
	if err := store.StoreStage(StageRecord{RunID: "run-2", Stage: "ingest", StartedAt: baseTime}); err != nil {
		t.Fatalf("Failed to store stage: %v", err)
	}

	stages, err := store.GetStages("run-1")
	if err != nil {
		t.Fatalf("Failed to get stages: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("Expected 3 stages, got %d", len(stages))
	}
	if stages[0].Stage != "ingest" || stages[2].Stage != "train" {
		t.Errorf("Stages out of order: %v", stages)
	}
	if stages[1].Artifacts["path"] != "transform.out" {
		t.Errorf("Unexpected artifacts: %v", stages[1].Artifacts)
	}

	stages, err = store.GetStages("missing")
	if err != nil {
		t.Fatalf("Failed to get stages: %v", err)
	}
	if len(stages) != 0 {
		t.Errorf("Expected no stages, got %d", len(stages))
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		data, prefix string
		want         bool
	}{
		{"run-1_000", "run-1_", true},
		{"run-10_000", "run-1_", false},
		{"short", "longer prefix", false},
	}
	for _, tt := range tests {
		if got := hasPrefix([]byte(tt.data), []byte(tt.prefix)); got != tt.want {
			t.Errorf("hasPrefix(%q, %q) = %v, want %v", tt.data, tt.prefix, got, tt.want)
		}
	}
}

func TestRunKeyOrdering(t *testing.T) {
	early := runKey(time.Unix(9, 0), "b")
	late := runKey(time.Unix(10, 0), "a")
	if compareKeys(early, late) >= 0 {
		t.Error("Expected earlier run to sort first")
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.RecordRun(RunRecord{Outcome: fmt.Sprintf("outcome-%d", i%3)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent record failed: %v", err)
		}
	}

	runs, err := store.GetRuns(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to get runs: %v", err)
	}
	if len(runs) != 20 {
		t.Errorf("Expected 20 runs, got %d", len(runs))
	}
}

func BenchmarkRecordRun(b *testing.B) {
	store, err := New(b.TempDir())
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.RecordRun(RunRecord{Outcome: "accepted"}); err != nil {
			b.Fatal(err)
		}
	}
}
