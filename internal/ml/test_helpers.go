package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	runs             int
	rejected         int
	epochs           int
	durations        int
	predictions      int
	failures         int
	latencySum       float64
	predictionScores []float64
}

func (m *MockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *MockMetrics) TrainingRejectedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *MockMetrics) TrainingEpochObserve(_, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func (m *MockMetrics) TrainingDurationObserve(_ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) PredictionScoreObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

type metricCounts struct {
	runs, rejected, epochs, durations int
	predictions, failures             int
	scores                            []float64
}

func (m *MockMetrics) snapshot() metricCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricCounts{
		runs:        m.runs,
		rejected:    m.rejected,
		epochs:      m.epochs,
		durations:   m.durations,
		predictions: m.predictions,
		failures:    m.failures,
		scores:      append([]float64(nil), m.predictionScores...),
	}
}
