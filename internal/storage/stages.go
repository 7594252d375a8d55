package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// StageRecord represents one pipeline stage execution.
type StageRecord struct {
	RunID     string            `json:"run_id"`
	Stage     string            `json:"stage"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// StoreStage stores a stage record under its pipeline run.
func (s *Store) StoreStage(record StageRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("stage record needs a run id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stagesBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal stage record: %w", err)
		}

		key := fmt.Sprintf("%s_%020d_%s", record.RunID, record.StartedAt.UnixNano(), record.Stage)
		return b.Put([]byte(key), data)
	})
}

// GetStages returns the stages of a pipeline run in execution order.
func (s *Store) GetStages(runID string) ([]StageRecord, error) {
	var stages []StageRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(stagesBucket)).Cursor()
		prefix := []byte(runID + "_")

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var stage StageRecord
			if err := json.Unmarshal(v, &stage); err != nil {
				continue
			}
			stages = append(stages, stage)
		}
		return nil
	})

	return stages, err
}
