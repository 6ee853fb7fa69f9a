package storage

import (
	"encoding/json"
	"time"

	"mlstudio/internal/ml"
)

// PredictionRecord is one scored loan application.
type PredictionRecord struct {
	ModelID   string              `json:"model_id"`
	Timestamp time.Time           `json:"timestamp"`
	Input     ml.PredictionInput  `json:"input"`
	Result    ml.PredictionResult `json:"result"`
}

// StorePrediction archives a prediction under "modelID_timestamp".
func (s *Store) StorePrediction(record PredictionRecord) error {
	return s.put(predictionsBucket, record.ModelID, record.Timestamp, record)
}

// GetPredictions returns the predictions scored by one model within
// [start, end], oldest first.
func (s *Store) GetPredictions(modelID string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := s.scanRange(predictionsBucket, modelID, start, end, func(data []byte) error {
		var record PredictionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	return records, err
}
