package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mlstudio/internal/dataset"
	"mlstudio/internal/metrics"
	"mlstudio/internal/ml"
	"mlstudio/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func approvableInput() ml.PredictionInput {
	return ml.PredictionInput{
		Age:              40,
		Income:           80000,
		LoanAmount:       150000,
		LoanTerm:         36,
		CreditScore:      720,
		EmploymentLength: 8,
		HomeOwnership:    "MORTGAGE",
		LoanPurpose:      "HOME",
		DebtToIncome:     0.2,
		HasDefault:       "no",
	}
}

func TestNew_SampleDataset(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 100})

	ds, err := e.ActiveDataset()
	require.NoError(t, err)
	assert.Equal(t, "default-dataset", ds.ID)
	assert.Equal(t, 100, ds.RowCount)
	assert.Nil(t, ds.Rows)

	require.Len(t, e.Datasets(), 1)

	features, err := e.ActiveFeatures()
	require.NoError(t, err)
	assert.Len(t, features, 10)
}

func TestNew_WithoutSampleDataset(t *testing.T) {
	e := newTestEngine(t, Options{})

	assert.Empty(t, e.Datasets())
	_, err := e.ActiveDataset()
	assert.ErrorIs(t, err, dataset.ErrNoActiveDataset)
	_, err = e.FeatureImportance()
	assert.ErrorIs(t, err, dataset.ErrNoActiveDataset)
	_, err = e.Histogram("age")
	assert.ErrorIs(t, err, dataset.ErrNoActiveDataset)
}

func TestEngine_FeatureImportanceAndHistogram(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 200})

	ranked, err := e.FeatureImportance()
	require.NoError(t, err)
	assert.Equal(t, "credit_score", ranked[0].Name)

	h, err := e.Histogram("credit_score")
	require.NoError(t, err)
	assert.Equal(t, 200, h.Total())
}

func TestEngine_RegisterAndSelectDataset(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	custom := &dataset.Dataset{ID: "custom", Name: "Custom", Features: dataset.LoanFeatures()}
	require.NoError(t, e.RegisterDataset(custom))
	assert.ErrorIs(t, e.RegisterDataset(custom), dataset.ErrDuplicateID)

	require.NoError(t, e.SelectDataset("custom"))
	ds, err := e.ActiveDataset()
	require.NoError(t, err)
	assert.Equal(t, "custom", ds.ID)

	assert.ErrorIs(t, e.SelectDataset("missing"), dataset.ErrUnknownDataset)
}

func TestStartTraining_NoActiveDataset(t *testing.T) {
	e := newTestEngine(t, Options{})

	_, err := e.StartTraining(context.Background(), ml.TrainingConfig{})
	assert.ErrorIs(t, err, dataset.ErrNoActiveDataset)
	assert.False(t, e.IsTraining())
}

func TestStartTraining_InvalidConfig(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	_, err := e.StartTraining(context.Background(), ml.TrainingConfig{TrainingPercentage: 95})
	assert.ErrorIs(t, err, ml.ErrInvalidConfig)
	assert.False(t, e.IsTraining())
}

func TestStartTraining_CancelledContext(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.StartTraining(ctx, ml.TrainingConfig{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.IsTraining())
}

func TestTrain_CommitsModelAndMetrics(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	result, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 5})
	require.NoError(t, err)

	assert.Len(t, result.History, 10)
	assert.Equal(t, "Model 1", result.Model.Name)
	assert.Equal(t, "default-dataset", result.Model.DatasetID)
	assert.False(t, e.IsTraining())

	active, err := e.ActiveModel()
	require.NoError(t, err)
	assert.Equal(t, result.Model.ID, active.ID)

	eval, err := e.Evaluation()
	require.NoError(t, err)
	assert.Equal(t, result.Model.ID, eval.Model.ID)
	assert.Equal(t, result.Metrics, eval.Report.Metrics)
	assert.InDelta(t, 2*result.Metrics.AUC-1, eval.Report.Gini, 1e-12)

	require.Len(t, e.Models(), 1)
	assert.Len(t, e.History(), 10)
}

func TestStartTraining_RejectsOverlap(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10, EpochDelay: 10 * time.Millisecond})

	run, err := e.StartTraining(context.Background(), ml.TrainingConfig{Seed: 1})
	require.NoError(t, err)
	assert.True(t, e.IsTraining())

	_, err = e.StartTraining(context.Background(), ml.TrainingConfig{Seed: 2})
	assert.ErrorIs(t, err, ml.ErrTrainingInProgress)

	_, err = run.Wait()
	require.NoError(t, err)
	assert.False(t, e.IsTraining())
	assert.Len(t, e.Models(), 1)

	select {
	case <-run.Done():
	default:
		t.Fatal("Done not closed after Wait")
	}
}

func TestStartTraining_RunOutlivesContext(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10, EpochDelay: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	run, err := e.StartTraining(ctx, ml.TrainingConfig{Seed: 1})
	require.NoError(t, err)
	cancel()

	result, err := run.Wait()
	require.NoError(t, err)
	assert.Len(t, result.History, 10)
}

func TestTrain_MetricsArePerModel(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	first, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 1})
	require.NoError(t, err)
	second, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, "Model 2", second.Model.Name)

	m1, err := e.MetricsFor(first.Model.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Metrics, m1)

	m2, err := e.MetricsFor(second.Model.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Metrics, m2)
	assert.NotEqual(t, m1, m2)

	eval, err := e.Evaluation()
	require.NoError(t, err)
	assert.Equal(t, second.Model.ID, eval.Model.ID)

	require.NoError(t, e.ActivateModel(first.Model.ID))
	eval, err = e.Evaluation()
	require.NoError(t, err)
	assert.Equal(t, first.Model.ID, eval.Model.ID)
	assert.Equal(t, first.Metrics, eval.Report.Metrics)

	_, err = e.MetricsFor("missing")
	assert.ErrorIs(t, err, ml.ErrUnknownModel)
}

func TestTrain_HistoryResets(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	for i := 0; i < 2; i++ {
		_, err := e.Train(context.Background(), ml.TrainingConfig{})
		require.NoError(t, err)
	}

	history := e.History()
	require.Len(t, history, 10)
	for i, step := range history {
		assert.Equal(t, i+1, step.Epoch)
	}
}

func TestTrain_DefaultSeedIsReproducible(t *testing.T) {
	a := newTestEngine(t, Options{Seed: 9, SampleRows: 10})
	b := newTestEngine(t, Options{Seed: 9, SampleRows: 10})

	ra, err := a.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)
	rb, err := b.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)

	assert.Equal(t, ra.History, rb.History)
	assert.Equal(t, ra.Metrics, rb.Metrics)
}

func TestTrain_ZeroSeedDerivesFromEngineSeed(t *testing.T) {
	e := newTestEngine(t, Options{Seed: 9, SampleRows: 10})

	derived, err := e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)
	explicit, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 9 + 1})
	require.NoError(t, err)
	again, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 9 + 1})
	require.NoError(t, err)

	// model 1 with a zero seed ran with engine seed + 1
	assert.Equal(t, derived.History, explicit.History)
	assert.Equal(t, derived.Metrics, explicit.Metrics)
	assert.Equal(t, explicit.Metrics, again.Metrics)

	// a later zero-seed run derives a different seed
	fourth, err := e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)
	assert.NotEqual(t, derived.History, fourth.History)
}

func TestEvaluation_NeverTorn(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10, EpochDelay: time.Millisecond})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			eval, err := e.Evaluation()
			if err != nil {
				assert.ErrorIs(t, err, ml.ErrNoActiveModel)
				continue
			}
			m, err := e.MetricsFor(eval.Model.ID)
			assert.NoError(t, err)
			assert.Equal(t, m, eval.Report.Metrics)
		}
	}()

	for i := 0; i < 3; i++ {
		_, err := e.Train(context.Background(), ml.TrainingConfig{Seed: int64(i + 1)})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestEngine_ModelLifecycle(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	first, err := e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)
	second, err := e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)

	prev, err := e.RollbackModel()
	require.NoError(t, err)
	assert.Equal(t, first.Model.ID, prev.ID)

	require.NoError(t, e.ArchiveModel(first.Model.ID))
	_, err = e.ActiveModel()
	assert.ErrorIs(t, err, ml.ErrNoActiveModel)
	_, err = e.Evaluation()
	assert.ErrorIs(t, err, ml.ErrNoActiveModel)

	require.NoError(t, e.ActivateModel(second.Model.ID))
	assert.ErrorIs(t, e.ActivateModel("missing"), ml.ErrUnknownModel)
}

func TestPredict(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	_, err := e.Predict(context.Background(), approvableInput())
	assert.ErrorIs(t, err, ml.ErrNoActiveModel)

	_, err = e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)

	result, err := e.Predict(context.Background(), approvableInput())
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.GreaterOrEqual(t, result.Probability, 0.65)
	assert.Less(t, result.Probability, 0.75)
}

type stubPredictor struct {
	model *ml.Model
}

func (s *stubPredictor) Predict(_ context.Context, model *ml.Model, _ ml.PredictionInput) (ml.PredictionResult, error) {
	s.model = model
	return ml.NewResult(0.9), nil
}

func TestPredict_UsesActiveModel(t *testing.T) {
	stub := &stubPredictor{}
	e := newTestEngine(t, Options{SampleRows: 10, Predictor: stub})

	result, err := e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)

	pred, err := e.Predict(context.Background(), approvableInput())
	require.NoError(t, err)
	assert.True(t, pred.Approved)
	require.NotNil(t, stub.model)
	assert.Equal(t, result.Model.ID, stub.model.ID)
}

func TestEngine_Archive(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := newTestEngine(t, Options{SampleRows: 10, Archive: store})

	result, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 3})
	require.NoError(t, err)

	runs, err := e.ArchivedRuns("", Window{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Model.ID, runs[0].Model.ID)
	assert.Len(t, runs[0].History, 10)

	_, err = e.Predict(context.Background(), approvableInput())
	require.NoError(t, err)

	preds, err := e.ArchivedPredictions(result.Model.ID, Window{})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, result.Model.ID, preds[0].ModelID)
	assert.Equal(t, approvableInput(), preds[0].Input)
}

func TestEngine_ArchiveQueries(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := newTestEngine(t, Options{SampleRows: 10, Archive: store})
	other := dataset.DefaultLoanDataset(10, 1)
	other.ID = "other"
	require.NoError(t, e.RegisterDataset(other))

	first, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 3})
	require.NoError(t, err)
	require.NoError(t, e.SelectDataset("other"))
	_, err = e.Train(context.Background(), ml.TrainingConfig{Seed: 4})
	require.NoError(t, err)

	all, err := e.ArchivedRuns("", Window{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byDataset, err := e.ArchivedRuns(first.Model.DatasetID, Window{})
	require.NoError(t, err)
	require.Len(t, byDataset, 1)
	assert.Equal(t, first.Model.ID, byDataset[0].Model.ID)

	future := Window{From: time.Now().Add(time.Hour)}
	none, err := e.ArchivedRuns("", future)
	require.NoError(t, err)
	assert.Empty(t, none)
	none, err = e.ArchivedRuns("other", future)
	require.NoError(t, err)
	assert.Empty(t, none)

	past, err := e.ArchivedRuns("", Window{To: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = e.ArchivedPredictions("model-missing", Window{})
	assert.ErrorIs(t, err, ml.ErrUnknownModel)
}

func TestEngine_ArchiveDisabled(t *testing.T) {
	e := newTestEngine(t, Options{})
	_, err := e.ArchivedRuns("", Window{})
	assert.True(t, errors.Is(err, ErrArchiveDisabled))
	_, err = e.ArchivedPredictions("any", Window{})
	assert.True(t, errors.Is(err, ErrArchiveDisabled))
}

func TestTrain_ResultDoesNotAliasRegistry(t *testing.T) {
	e := newTestEngine(t, Options{SampleRows: 10})

	result, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 3})
	require.NoError(t, err)
	result.Model.Parameters["max_depth"] = 99

	active, err := e.ActiveModel()
	require.NoError(t, err)
	assert.Equal(t, 10, active.Parameters["max_depth"])

	active.Parameters["max_depth"] = 7
	models := e.Models()
	require.Len(t, models, 1)
	assert.Equal(t, 10, models[0].Parameters["max_depth"])
}

func TestEngine_Summary(t *testing.T) {
	e := newTestEngine(t, Options{})

	sum := e.Summary()
	assert.Zero(t, sum.Datasets)
	assert.Nil(t, sum.ActiveModel)
	assert.Nil(t, sum.Accuracy)
	require.Len(t, sum.Stages, 4)
	for _, stage := range sum.Stages {
		assert.False(t, stage.Done, stage.Name)
	}
	assert.Equal(t, "Pending", sum.Stages[0].Status)

	require.NoError(t, e.RegisterDataset(dataset.DefaultLoanDataset(10, 1)))
	require.NoError(t, e.SelectDataset("default-dataset"))
	result, err := e.Train(context.Background(), ml.TrainingConfig{Seed: 2})
	require.NoError(t, err)

	sum = e.Summary()
	assert.Equal(t, 1, sum.Datasets)
	assert.Equal(t, 1, sum.Models)
	require.NotNil(t, sum.ActiveModel)
	assert.Equal(t, result.Model.ID, sum.ActiveModel.ID)
	require.NotNil(t, sum.Accuracy)
	assert.Equal(t, result.Metrics.Accuracy, *sum.Accuracy)
	assert.Equal(t, "1 models trained", sum.Stages[2].Status)
	assert.Equal(t, "Model deployed", sum.Stages[3].Status)

	require.NoError(t, e.ArchiveModel(result.Model.ID))
	sum = e.Summary()
	assert.Nil(t, sum.ActiveModel)
	assert.False(t, sum.Stages[3].Done)
}

func TestEngine_ReportsMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := newTestEngine(t, Options{SampleRows: 10, Metrics: metrics.NewWrapper(m)})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetsRegistered))

	_, err := e.Predict(context.Background(), approvableInput())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionFailures))

	_, err = e.Train(context.Background(), ml.TrainingConfig{})
	require.NoError(t, err)
	_, err = e.Predict(context.Background(), approvableInput())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.TrainingEpochs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelsRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions))
}

func TestDefaultTrainingConfig(t *testing.T) {
	cfg := DefaultTrainingConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "Random Forest", cfg.Algorithm)
	assert.Equal(t, 80, cfg.Split())
}
