package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"mlstudio/internal/common"
	"mlstudio/internal/evaluation"
)

var (
	ErrDuplicateModel     = errors.New("ml: duplicate model id")
	ErrUnknownModel       = errors.New("ml: unknown model")
	ErrNoActiveModel      = errors.New("ml: no active model")
	ErrNoPreviousModel    = errors.New("ml: no previous model to roll back to")
	ErrTrainingInProgress = errors.New("ml: training already in progress")
	ErrInvalidConfig      = errors.New("ml: invalid training config")
)

// ModelStatus is the lifecycle state of a model.
type ModelStatus string

const (
	StatusTraining ModelStatus = "training"
	StatusActive   ModelStatus = "active"
	StatusArchived ModelStatus = "archived"
)

// Model is the record produced by a completed training run.
type Model struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Algorithm   string         `json:"algorithm"`
	CreatedAt   time.Time      `json:"createdAt"`
	DatasetID   string         `json:"datasetId"`
	Parameters  map[string]any `json:"parameters"`
	Version     string         `json:"version"`
	Status      ModelStatus    `json:"status"`
}

// clone copies m so that the copy shares no parameter values with it.
func (m Model) clone() Model {
	out := m
	if m.Parameters != nil {
		out.Parameters = cloneValue(m.Parameters).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// TrainingStep is one simulated epoch.
type TrainingStep struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// TrainingConfig is what a caller asks for when starting a run.
type TrainingConfig struct {
	ModelName          string         `json:"modelName"`
	Description        string         `json:"description"`
	Algorithm          string         `json:"algorithm"`
	Parameters         map[string]any `json:"parameters"`
	TrainingPercentage int            `json:"trainingPercentage"`
	// Seed drives every random draw of the run; equal seeds give equal
	// histories and metrics. Zero means unset: the engine then uses its own
	// seed plus the model number, so zero-seed runs differ from each other
	// but a fresh engine with the same seed replays the same sequence.
	Seed int64 `json:"seed"`
}

// DefaultParameters are used when a config carries no parameters.
func DefaultParameters() map[string]any {
	return map[string]any{
		"max_depth":    10,
		"n_estimators": 100,
		"criterion":    "gini",
	}
}

// Validate checks the split percentage. Zero means the default split.
func (c TrainingConfig) Validate() error {
	if c.TrainingPercentage == 0 {
		return nil
	}
	if c.TrainingPercentage < common.MinTrainingPercentage || c.TrainingPercentage > common.MaxTrainingPercentage {
		return fmt.Errorf("%w: training percentage must be between %d and %d, got %d",
			ErrInvalidConfig, common.MinTrainingPercentage, common.MaxTrainingPercentage, c.TrainingPercentage)
	}
	return nil
}

// Split returns the effective training percentage.
func (c TrainingConfig) Split() int {
	if c.TrainingPercentage == 0 {
		return common.DefaultTrainingPercentage
	}
	return c.TrainingPercentage
}

// Result is everything a completed run produced.
type Result struct {
	Model   Model              `json:"model"`
	Metrics evaluation.Metrics `json:"metrics"`
	History []TrainingStep     `json:"history"`
}

// PredictionInput is a loan application.
type PredictionInput struct {
	Age              float64 `json:"age"`
	Income           float64 `json:"income"`
	LoanAmount       float64 `json:"loan_amount"`
	LoanTerm         float64 `json:"loan_term"`
	CreditScore      float64 `json:"credit_score"`
	EmploymentLength float64 `json:"employment_length"`
	HomeOwnership    string  `json:"home_ownership"`
	LoanPurpose      string  `json:"loan_purpose"`
	DebtToIncome     float64 `json:"debt_to_income"`
	HasDefault       string  `json:"has_default"`
}

// PredictionResult is an approval decision.
type PredictionResult struct {
	Approved    bool    `json:"approved"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// lockedRand is a seeded source safe for concurrent callers.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}
