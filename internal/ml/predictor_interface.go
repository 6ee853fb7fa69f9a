// Package ml simulates the model lifecycle of the loan approval studio.
// It includes the epoch-based training simulator, the registry of trained
// models and the rule-based scorer that produces approval predictions.
//
// Training and scoring are deliberately synthetic: metrics follow fixed
// formulas plus seeded jitter, so identical seeds reproduce identical runs.
package ml

import "context"

// Predictor scores a loan application against a model.
type Predictor interface {
	// Predict returns an approval decision for input. A nil model yields ErrNoActiveModel.
	Predict(ctx context.Context, model *Model, input PredictionInput) (PredictionResult, error)
}

// MetricsInterface defines the observations the trainer and scorer report
type MetricsInterface interface {
	TrainingRunsInc()
	TrainingRejectedInc()
	TrainingEpochObserve(loss, accuracy float64)
	TrainingDurationObserve(seconds float64)
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(seconds float64)
	PredictionScoreObserve(probability float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) TrainingRunsInc() {}
func (NopMetrics) TrainingRejectedInc() {}
func (NopMetrics) TrainingEpochObserve(_, _ float64) {}
func (NopMetrics) TrainingDurationObserve(_ float64) {}
func (NopMetrics) PredictionsInc() {}
func (NopMetrics) PredictionFailuresInc() {}
func (NopMetrics) PredictionLatencyObserve(_ float64) {}
func (NopMetrics) PredictionScoreObserve(_ float64) {}
