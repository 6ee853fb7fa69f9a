package metrics

// MetricsWrapper adapts Metrics to the narrow observer interfaces used by the
// trainer, scorer and engine.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) TrainingRunsInc() {
	w.m.TrainingRuns.Inc()
}

func (w *MetricsWrapper) TrainingRejectedInc() {
	w.m.TrainingRejected.Inc()
}

func (w *MetricsWrapper) TrainingEpochObserve(loss, accuracy float64) {
	w.m.TrainingEpochs.Inc()
	w.m.TrainingLoss.Set(loss)
	w.m.TrainingAccuracy.Set(accuracy)
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) PredictionScoreObserve(probability float64) {
	w.m.PredictionProbability.Observe(probability)
}

func (w *MetricsWrapper) ModelsRegisteredSet(n int) {
	w.m.ModelsRegistered.Set(float64(n))
}

func (w *MetricsWrapper) DatasetsRegisteredSet(n int) {
	w.m.DatasetsRegistered.Set(float64(n))
}
