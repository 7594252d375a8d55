// Package storage keeps the pipeline's run ledger in BoltDB. Every trainer
// run, accepted or not, is recorded with its metrics and outcome so the
// history of model quality survives across runs.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"insurance-pipeline/internal/common"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	runsBucket   = "trainer_runs"    // Bucket name for trainer run records
	stagesBucket = "pipeline_stages" // Bucket name for stage records
)

// RunMetrics mirrors the classification metrics of a trained model.
type RunMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// RunRecord is one trainer run in the ledger.
type RunRecord struct {
	ID               string      `json:"id"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
	Outcome          string      `json:"outcome"`
	ModelPath        string      `json:"model_path,omitempty"`
	Metrics          *RunMetrics `json:"metrics,omitempty"`
	TrainAccuracy    float64     `json:"train_accuracy"`
	ExpectedAccuracy float64     `json:"expected_accuracy"`
	Error            string      `json:"error,omitempty"`

	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// Store provides persistent storage for pipeline runs using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the run ledger inside dataPath.
// The directory must already exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, common.RunsDBFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(stagesBucket)); err != nil {
			return fmt.Errorf("create stages bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and returns it with its ID filled in.
// Keys sort by start time so range scans return runs in order.
func (s *Store) RecordRun(run RunRecord) (RunRecord, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		return b.Put(runKey(run.StartedAt, run.ID), data)
	})
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// GetRuns returns runs started within [start, end], oldest first.
func (s *Store) GetRuns(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		startKey := timePrefix(start)
		endKey := timePrefix(end.Add(time.Nanosecond))

		for k, v := c.Seek(startKey); k != nil && compareKeys(k, endKey) < 0; k, v = c.Next() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// Latest returns the most recent run with the given outcome.
// The boolean is false when no such run exists.
func (s *Store) Latest(outcome string) (RunRecord, bool, error) {
	var (
		found RunRecord
		ok    bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			if run.Outcome == outcome {
				found, ok = run, true
				return nil
			}
		}
		return nil
	})

	return found, ok, err
}

func timePrefix(t time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}

func runKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", t.UnixNano(), id))
}

func hasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
