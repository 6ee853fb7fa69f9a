package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"mlstudio/internal/common"
	"mlstudio/internal/evaluation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// subscriberBuffer holds a full run so a subscriber that reads at all never
// misses a step.
const subscriberBuffer = common.TrainingEpochs + 2

var errNotStarted = errors.New("ml: run executed without Begin")

// RunRequest describes one accepted training run.
type RunRequest struct {
	Config    TrainingConfig
	DatasetID string
	// ModelNumber names the model "Model <n>" when the config has no name.
	ModelNumber int
	// Commit stores the result before the trainer returns to idle.
	Commit func(Result) error
}

// Trainer simulates epoch-based training runs, one at a time.
type Trainer struct {
	epochDelay time.Duration
	metrics    MetricsInterface
	newID      func() string

	running atomic.Bool

	mu          sync.RWMutex
	history     []TrainingStep
	subscribers map[int]chan TrainingStep
	nextSubID   int
}

// NewTrainer creates an idle trainer. A nil metrics sink disables observation.
func NewTrainer(epochDelay time.Duration, metrics MetricsInterface) *Trainer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Trainer{
		epochDelay:  epochDelay,
		metrics:     metrics,
		newID:       func() string { return "model-" + uuid.NewString() },
		subscribers: make(map[int]chan TrainingStep),
	}
}

// Begin moves the trainer from idle to running and clears the history of the
// previous run. It fails with ErrTrainingInProgress while a run is in flight.
func (t *Trainer) Begin() error {
	if !t.running.CompareAndSwap(false, true) {
		t.metrics.TrainingRejectedInc()
		return ErrTrainingInProgress
	}

	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()

	t.metrics.TrainingRunsInc()
	return nil
}

// Run executes the ten epochs of a run claimed with Begin and returns the
// trainer to idle. ctx is not consulted for cancellation: an accepted run
// always completes.
func (t *Trainer) Run(ctx context.Context, req RunRequest) (Result, error) {
	if !t.running.Load() {
		return Result{}, errNotStarted
	}
	defer t.running.Store(false)

	start := time.Now()
	rng := rand.New(rand.NewSource(req.Config.Seed))

	log.Info().
		Str("dataset_id", req.DatasetID).
		Int64("seed", req.Config.Seed).
		Int("split", req.Config.Split()).
		Msg("Training started")

	for epoch := 1; epoch <= common.TrainingEpochs; epoch++ {
		if t.epochDelay > 0 {
			time.Sleep(t.epochDelay)
		}
		step := simulateEpoch(rng, epoch)
		t.record(step)

		log.Debug().
			Int("epoch", step.Epoch).
			Float64("loss", step.Loss).
			Float64("accuracy", step.Accuracy).
			Msg("Epoch completed")
	}

	result := Result{
		Model:   t.buildModel(req),
		Metrics: simulateMetrics(rng),
		History: t.History(),
	}

	if req.Commit != nil {
		if err := req.Commit(result); err != nil {
			log.Error().Err(err).Str("model_id", result.Model.ID).Msg("Failed to commit training result")
			return Result{}, fmt.Errorf("commit training result: %w", err)
		}
	}

	elapsed := time.Since(start)
	t.metrics.TrainingDurationObserve(elapsed.Seconds())

	log.Info().
		Str("model_id", result.Model.ID).
		Float64("accuracy", result.Metrics.Accuracy).
		Dur("duration", elapsed).
		Msg("Training completed")

	return result, nil
}

// IsTraining reports whether a run is in flight.
func (t *Trainer) IsTraining() bool {
	return t.running.Load()
}

// History returns a copy of the current run's steps.
func (t *Trainer) History() []TrainingStep {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrainingStep, len(t.history))
	copy(out, t.history)
	return out
}

// Subscribe returns a channel receiving every step recorded from now on and a
// func that closes it. A subscriber whose buffer is full misses steps; History
// stays authoritative.
func (t *Trainer) Subscribe() (<-chan TrainingStep, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribeLocked()
}

// Watch is Subscribe plus the history recorded so far, taken under the same
// lock: every step is either in the history or on the channel, never both.
func (t *Trainer) Watch() ([]TrainingStep, <-chan TrainingStep, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]TrainingStep, len(t.history))
	copy(history, t.history)
	ch, unsubscribe := t.subscribeLocked()
	return history, ch, unsubscribe
}

func (t *Trainer) subscribeLocked() (<-chan TrainingStep, func()) {
	id := t.nextSubID
	t.nextSubID++
	ch := make(chan TrainingStep, subscriberBuffer)
	t.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Trainer) record(step TrainingStep) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, step)
	t.metrics.TrainingEpochObserve(step.Loss, step.Accuracy)

	for id, ch := range t.subscribers {
		select {
		case ch <- step:
		default:
			log.Warn().Int("subscriber", id).Int("epoch", step.Epoch).Msg("Subscriber full, dropping step")
		}
	}
}

func (t *Trainer) buildModel(req RunRequest) Model {
	cfg := req.Config

	name := cfg.ModelName
	if name == "" {
		name = fmt.Sprintf("Model %d", req.ModelNumber)
	}
	description := cfg.Description
	if description == "" {
		description = common.DefaultModelDescription
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = common.DefaultAlgorithm
	}

	params := DefaultParameters()
	if cfg.Parameters != nil {
		params = make(map[string]any, len(cfg.Parameters))
		for k, v := range cfg.Parameters {
			params[k] = v
		}
	}

	return Model{
		ID:          t.newID(),
		Name:        name,
		Description: description,
		Algorithm:   algorithm,
		CreatedAt:   time.Now().UTC(),
		DatasetID:   req.DatasetID,
		Parameters:  params,
		Version:     common.DefaultModelVersion,
		Status:      StatusActive,
	}
}

func simulateEpoch(rng *rand.Rand, epoch int) TrainingStep {
	progress := float64(epoch) / float64(common.TrainingEpochs)
	return TrainingStep{
		Epoch:    epoch,
		Loss:     0.5*math.Pow(0.85, float64(epoch)) + rng.Float64()*0.05,
		Accuracy: 0.7 + 0.2*progress + (rng.Float64()*0.05 - 0.025),
	}
}

// jitter draws uniformly from [base-halfWidth, base+halfWidth).
func jitter(rng *rand.Rand, base, halfWidth float64) float64 {
	return base + (rng.Float64()*2-1)*halfWidth
}

func simulateMetrics(rng *rand.Rand) evaluation.Metrics {
	return evaluation.Metrics{
		Accuracy:  jitter(rng, 0.89, 0.02),
		Precision: jitter(rng, 0.87, 0.025),
		Recall:    jitter(rng, 0.85, 0.03),
		F1Score:   jitter(rng, 0.86, 0.025),
		AUC:       jitter(rng, 0.91, 0.015),
		ConfusionMatrix: evaluation.ConfusionMatrix{
			TruePositives:  430 + rng.Intn(20),
			FalsePositives: 60 + rng.Intn(15),
			TrueNegatives:  440 + rng.Intn(20),
			FalseNegatives: 70 + rng.Intn(15),
		},
	}
}
