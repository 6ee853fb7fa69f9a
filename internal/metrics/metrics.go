// Package metrics provides Prometheus metrics collection for the model studio.
// It defines the training, prediction and registry metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the studio engine.
type Metrics struct {
	// Training metrics
	TrainingRuns     prometheus.Counter   // Accepted training runs
	TrainingRejected prometheus.Counter   // Runs rejected because one was in flight
	TrainingEpochs   prometheus.Counter   // Completed simulated epochs
	TrainingLoss     prometheus.Gauge     // Loss of the latest epoch
	TrainingAccuracy prometheus.Gauge     // Accuracy of the latest epoch
	TrainingDuration prometheus.Histogram // Wall time of completed runs

	// Prediction metrics
	Predictions           prometheus.Counter
	PredictionFailures    prometheus.Counter
	PredictionLatency     prometheus.Histogram
	PredictionProbability prometheus.Histogram // Distribution of approval probabilities

	// Registry metrics
	ModelsRegistered   prometheus.Gauge
	DatasetsRegistered prometheus.Gauge
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of accepted training runs",
		}),
		TrainingRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_rejected_total",
			Help: "Total number of training runs rejected while another was in progress",
		}),
		TrainingEpochs: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_epochs_total",
			Help: "Total number of simulated training epochs",
		}),
		TrainingLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_loss",
			Help: "Loss reported by the most recent epoch",
		}),
		TrainingAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_accuracy",
			Help: "Accuracy reported by the most recent epoch",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of completed training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of loan approval predictions made",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		PredictionProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_probability",
			Help:    "Distribution of approval probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "models_registered",
			Help: "Number of models in the model registry",
		}),
		DatasetsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "datasets_registered",
			Help: "Number of datasets in the dataset registry",
		}),
	}
}
