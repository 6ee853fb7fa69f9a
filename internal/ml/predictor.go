package ml

import (
	"context"
	"math"
	"time"

	"mlstudio/internal/common"

	"github.com/rs/zerolog/log"
)

// Scorer is the rule-based loan approval predictor.
type Scorer struct {
	delay   time.Duration
	rng     *lockedRand
	metrics MetricsInterface
}

// NewScorer creates a scorer whose jitter is drawn from seed. A nil metrics
// sink disables observation.
func NewScorer(delay time.Duration, seed int64, metrics MetricsInterface) *Scorer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Scorer{
		delay:   delay,
		rng:     newLockedRand(seed),
		metrics: metrics,
	}
}

// Predict scores input after the simulated inference latency. Cancellation
// is only honoured before scoring starts.
func (s *Scorer) Predict(ctx context.Context, model *Model, input PredictionInput) (PredictionResult, error) {
	if model == nil {
		s.metrics.PredictionFailuresInc()
		return PredictionResult{}, ErrNoActiveModel
	}
	if err := ctx.Err(); err != nil {
		s.metrics.PredictionFailuresInc()
		return PredictionResult{}, err
	}

	start := time.Now()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	jitter := (s.rng.Float64()*2 - 1) * common.PredictionJitterRange / 2
	result := NewResult(BaseScore(input) + jitter)

	s.metrics.PredictionsInc()
	s.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	s.metrics.PredictionScoreObserve(result.Probability)

	log.Debug().
		Str("model_id", model.ID).
		Float64("probability", result.Probability).
		Bool("approved", result.Approved).
		Msg("Prediction scored")
	return result, nil
}

// BaseScore applies the additive approval rules without jitter. The credit
// score and income adjustments are each one-of-two.
func BaseScore(in PredictionInput) float64 {
	p := common.BaseProbability

	if in.CreditScore > common.HighCreditScore {
		p += 0.20
	} else if in.CreditScore < common.LowCreditScore {
		p -= 0.20
	}

	if in.Income > common.HighIncome {
		p += 0.15
	} else if in.Income < common.LowIncome {
		p -= 0.15
	}

	if in.LoanAmount > common.LargeLoanAmount {
		p -= 0.10
	}
	if in.DebtToIncome > common.MaxDebtToIncome {
		p -= 0.20
	}
	if in.HasDefault == "yes" {
		p -= 0.25
	}
	return p
}

// NewResult clamps p into [0,1] and derives the decision and confidence.
func NewResult(p float64) PredictionResult {
	p = math.Max(0, math.Min(1, p))
	return PredictionResult{
		Approved:    p > common.ApprovalThreshold,
		Probability: p,
		Confidence:  math.Abs(p-common.ApprovalThreshold) * 2,
	}
}
