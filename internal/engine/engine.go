// Package engine ties the dataset registry, trainer, model registry and scorer
// into the single in-memory studio the HTTP server and CLIs drive.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mlstudio/internal/analytics"
	"mlstudio/internal/common"
	"mlstudio/internal/dataset"
	"mlstudio/internal/evaluation"
	"mlstudio/internal/ml"
	"mlstudio/internal/storage"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoMetrics       = errors.New("engine: no metrics recorded for model")
	ErrArchiveDisabled = errors.New("engine: run archive disabled")
)

// Metrics is the observer the engine reports to.
type Metrics interface {
	ml.MetricsInterface
	ModelsRegisteredSet(n int)
	DatasetsRegisteredSet(n int)
}

// Archive records completed runs and predictions.
type Archive interface {
	StoreRun(run storage.RunRecord) error
	StorePrediction(record storage.PredictionRecord) error
	ListRuns() ([]storage.RunRecord, error)
	GetRuns(datasetID string, start, end time.Time) ([]storage.RunRecord, error)
	GetPredictions(modelID string, start, end time.Time) ([]storage.PredictionRecord, error)
}

// Window bounds an archive query. A zero From is open towards the past and a
// zero To ends at the time of the query.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) bounds() (time.Time, time.Time) {
	from, to := w.From, w.To
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = time.Now()
	}
	return from, to
}

// Options configures a new Engine. The zero value gives an engine without
// delays, metrics, archive or sample dataset.
type Options struct {
	Seed         int64
	EpochDelay   time.Duration
	PredictDelay time.Duration
	// SampleRows registers and selects the generated loan dataset when > 0.
	SampleRows int
	Metrics    Metrics
	Archive    Archive
	// Predictor replaces the rule-based scorer.
	Predictor ml.Predictor
}

// Engine is the model studio.
type Engine struct {
	datasets  *dataset.Registry
	models    *ml.Registry
	trainer   *ml.Trainer
	predictor ml.Predictor
	metrics   Metrics
	archive   Archive
	seed      int64

	// mu makes the end-of-run commit (model, active pointer, metrics)
	// appear atomically to readers of the active model.
	mu          sync.RWMutex
	evaluations map[string]evaluation.Metrics
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}

	predictor := opts.Predictor
	if predictor == nil {
		predictor = ml.NewScorer(opts.PredictDelay, opts.Seed, m)
	}

	e := &Engine{
		datasets:    dataset.NewRegistry(),
		models:      ml.NewRegistry(),
		trainer:     ml.NewTrainer(opts.EpochDelay, m),
		predictor:   predictor,
		metrics:     m,
		archive:     opts.Archive,
		seed:        opts.Seed,
		evaluations: make(map[string]evaluation.Metrics),
	}

	if opts.SampleRows > 0 {
		ds := dataset.DefaultLoanDataset(opts.SampleRows, opts.Seed)
		if err := e.RegisterDataset(ds); err != nil {
			return nil, fmt.Errorf("register sample dataset: %w", err)
		}
		if err := e.SelectDataset(ds.ID); err != nil {
			return nil, fmt.Errorf("select sample dataset: %w", err)
		}
	}

	log.Info().
		Int64("seed", opts.Seed).
		Dur("epoch_delay", opts.EpochDelay).
		Dur("predict_delay", opts.PredictDelay).
		Bool("archive", opts.Archive != nil).
		Msg("Engine initialized")
	return e, nil
}

// RegisterDataset adds a dataset.
func (e *Engine) RegisterDataset(ds *dataset.Dataset) error {
	if err := e.datasets.Register(ds); err != nil {
		return err
	}
	e.metrics.DatasetsRegisteredSet(e.datasets.Len())
	return nil
}

// SelectDataset makes the dataset with id active.
func (e *Engine) SelectDataset(id string) error {
	return e.datasets.Select(id)
}

// Datasets lists every dataset, without rows, in registration order.
func (e *Engine) Datasets() []dataset.Dataset {
	all := e.datasets.List()
	out := make([]dataset.Dataset, len(all))
	for i, ds := range all {
		out[i] = ds.Summary()
	}
	return out
}

// ActiveDataset returns the active dataset without rows.
func (e *Engine) ActiveDataset() (dataset.Dataset, error) {
	ds, err := e.datasets.Active()
	if err != nil {
		return dataset.Dataset{}, err
	}
	return ds.Summary(), nil
}

// ActiveFeatures returns the active dataset's features in declaration order.
func (e *Engine) ActiveFeatures() ([]dataset.Feature, error) {
	return e.datasets.ActiveFeatures()
}

// FeatureImportance returns the active dataset's features, most important first.
func (e *Engine) FeatureImportance() ([]dataset.Feature, error) {
	features, err := e.datasets.ActiveFeatures()
	if err != nil {
		return nil, err
	}
	return analytics.RankByImportance(features), nil
}

// Histogram bins one feature of the active dataset.
func (e *Engine) Histogram(feature string) (analytics.Histogram, error) {
	ds, err := e.datasets.Active()
	if err != nil {
		return analytics.Histogram{}, err
	}
	return analytics.ComputeHistogram(ds, feature)
}

// StartTraining validates cfg against the current state and starts a run in
// the background. The run is not tied to ctx and always completes.
func (e *Engine) StartTraining(ctx context.Context, cfg ml.TrainingConfig) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := e.datasets.Active()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.trainer.Begin(); err != nil {
		return nil, err
	}

	modelNumber := e.models.Len() + 1
	if cfg.Seed == 0 {
		cfg.Seed = e.seed + int64(modelNumber)
	}

	req := ml.RunRequest{
		Config:      cfg,
		DatasetID:   ds.ID,
		ModelNumber: modelNumber,
		Commit:      e.commit,
	}

	run := newRun()
	go func() {
		result, err := e.trainer.Run(context.WithoutCancel(ctx), req)
		if err == nil {
			e.archiveRun(result)
		}
		run.finish(result, err)
	}()
	return run, nil
}

// Train runs a training job to completion.
func (e *Engine) Train(ctx context.Context, cfg ml.TrainingConfig) (ml.Result, error) {
	run, err := e.StartTraining(ctx, cfg)
	if err != nil {
		return ml.Result{}, err
	}
	return run.Wait()
}

func (e *Engine) commit(result ml.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.models.Register(result.Model); err != nil {
		return err
	}
	if err := e.models.Activate(result.Model.ID); err != nil {
		return err
	}
	e.evaluations[result.Model.ID] = result.Metrics
	e.metrics.ModelsRegisteredSet(e.models.Len())
	return nil
}

func (e *Engine) archiveRun(result ml.Result) {
	if e.archive == nil {
		return
	}
	record := storage.RunRecord{
		DatasetID:   result.Model.DatasetID,
		CompletedAt: time.Now().UTC(),
		Model:       result.Model,
		Metrics:     result.Metrics,
		History:     result.History,
	}
	if err := e.archive.StoreRun(record); err != nil {
		log.Warn().Err(err).Str("model_id", result.Model.ID).Msg("Failed to archive training run")
	}
}

// IsTraining reports whether a run is in flight.
func (e *Engine) IsTraining() bool {
	return e.trainer.IsTraining()
}

// History returns the steps of the current or most recent run.
func (e *Engine) History() []ml.TrainingStep {
	return e.trainer.History()
}

// Subscribe streams training steps as they are recorded.
func (e *Engine) Subscribe() (<-chan ml.TrainingStep, func()) {
	return e.trainer.Subscribe()
}

// Watch returns the current history and a stream of the steps that follow it.
func (e *Engine) Watch() ([]ml.TrainingStep, <-chan ml.TrainingStep, func()) {
	return e.trainer.Watch()
}

// Models lists every model in registration order.
func (e *Engine) Models() []ml.Model {
	return e.models.List()
}

// ActiveModel returns the model used for predictions.
func (e *Engine) ActiveModel() (ml.Model, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.models.Active()
}

// ActivateModel switches predictions and evaluation to the model with id.
func (e *Engine) ActivateModel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models.Activate(id)
}

// ArchiveModel retires a model.
func (e *Engine) ArchiveModel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models.Archive(id)
}

// RollbackModel reactivates the model registered before the active one.
func (e *Engine) RollbackModel() (ml.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models.Rollback()
}

// MetricsFor returns the evaluation metrics of the run that produced id.
func (e *Engine) MetricsFor(id string) (evaluation.Metrics, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.models.Get(id); err != nil {
		return evaluation.Metrics{}, err
	}
	m, ok := e.evaluations[id]
	if !ok {
		return evaluation.Metrics{}, fmt.Errorf("model %q: %w", id, ErrNoMetrics)
	}
	return m, nil
}

// Evaluation is the active model together with its derived report.
type Evaluation struct {
	Model  ml.Model          `json:"model"`
	Report evaluation.Report `json:"report"`
}

// Evaluation returns the active model and its metrics as one consistent view.
func (e *Engine) Evaluation() (Evaluation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	model, err := e.models.Active()
	if err != nil {
		return Evaluation{}, err
	}
	m, ok := e.evaluations[model.ID]
	if !ok {
		return Evaluation{}, fmt.Errorf("model %q: %w", model.ID, ErrNoMetrics)
	}
	return Evaluation{Model: model, Report: evaluation.NewReport(m)}, nil
}

// Predict scores input with the active model.
func (e *Engine) Predict(ctx context.Context, input ml.PredictionInput) (ml.PredictionResult, error) {
	model, err := e.ActiveModel()
	if err != nil {
		e.metrics.PredictionFailuresInc()
		return ml.PredictionResult{}, err
	}

	result, err := e.predictor.Predict(ctx, &model, input)
	if err != nil {
		return ml.PredictionResult{}, err
	}

	if e.archive != nil {
		record := storage.PredictionRecord{
			ModelID:   model.ID,
			Timestamp: time.Now().UTC(),
			Input:     input,
			Result:    result,
		}
		if err := e.archive.StorePrediction(record); err != nil {
			log.Warn().Err(err).Str("model_id", model.ID).Msg("Failed to archive prediction")
		}
	}
	return result, nil
}

// ArchivedRuns lists archived runs completed within w, oldest first. An empty
// datasetID matches every dataset.
func (e *Engine) ArchivedRuns(datasetID string, w Window) ([]storage.RunRecord, error) {
	if e.archive == nil {
		return nil, ErrArchiveDisabled
	}
	from, to := w.bounds()
	if datasetID != "" {
		return e.archive.GetRuns(datasetID, from, to)
	}

	all, err := e.archive.ListRuns()
	if err != nil {
		return nil, err
	}
	runs := make([]storage.RunRecord, 0, len(all))
	for _, run := range all {
		if run.CompletedAt.Before(from) || run.CompletedAt.After(to) {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ArchivedPredictions lists the predictions model id scored within w.
func (e *Engine) ArchivedPredictions(id string, w Window) ([]storage.PredictionRecord, error) {
	if e.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if _, err := e.models.Get(id); err != nil {
		return nil, err
	}
	from, to := w.bounds()
	return e.archive.GetPredictions(id, from, to)
}

// DefaultTrainingConfig is the config the studio form starts from.
func DefaultTrainingConfig() ml.TrainingConfig {
	return ml.TrainingConfig{
		Algorithm:          common.DefaultAlgorithm,
		Parameters:         ml.DefaultParameters(),
		TrainingPercentage: common.DefaultTrainingPercentage,
	}
}
