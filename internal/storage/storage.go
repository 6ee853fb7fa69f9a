// Package storage archives completed training runs and scored predictions in
// BoltDB. The archive is an audit trail: the engine writes to it but never
// reloads registries from it, so every process still starts empty.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"mlstudio/internal/evaluation"
	"mlstudio/internal/ml"

	"go.etcd.io/bbolt"
)

const (
	runsBucket        = "runs"        // Completed training runs keyed by dataset
	predictionsBucket = "predictions" // Scored predictions keyed by model
)

// DBFile is the archive file created under the data path.
const DBFile = "mlstudio-data.db"

// RunRecord is one completed training run.
type RunRecord struct {
	DatasetID   string             `json:"dataset_id"`
	CompletedAt time.Time          `json:"completed_at"`
	Model       ml.Model           `json:"model"`
	Metrics     evaluation.Metrics `json:"metrics"`
	History     []ml.TrainingStep  `json:"history"`
}

// Store provides persistent storage for the run archive using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens or creates the archive under dataPath and its buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreRun archives a completed run under "datasetID_completedAt".
func (s *Store) StoreRun(run RunRecord) error {
	return s.put(runsBucket, run.DatasetID, run.CompletedAt, run)
}

// GetRuns returns the runs of one dataset completed within [start, end],
// oldest first.
func (s *Store) GetRuns(datasetID string, start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.scanRange(runsBucket, datasetID, start, end, func(data []byte) error {
		var run RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			return err
		}
		runs = append(runs, run)
		return nil
	})
	return runs, err
}

// ListRuns returns every archived run ordered by completion time.
func (s *Store) ListRuns() ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return nil // Skip malformed records
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CompletedAt.Before(runs[j].CompletedAt)
	})
	return runs, nil
}

func (s *Store) put(bucket, prefix string, ts time.Time, record any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", bucket, err)
		}

		return b.Put(recordKey(prefix, ts), data)
	})
}

// scanRange walks the keys of one prefix between start and end inclusive.
// Records the decoder rejects are skipped.
func (s *Store) scanRange(bucket, prefix string, start, end time.Time, decode func([]byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()

		keyPrefix := []byte(prefix + "_")
		endKey := recordKey(prefix, end)

		for k, v := c.Seek(recordKey(prefix, start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, keyPrefix) {
				continue
			}
			if err := decode(v); err != nil {
				continue
			}
		}
		return nil
	})
}

func recordKey(prefix string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%d", prefix, ts.UnixNano()))
}
