package engine

import (
	"fmt"

	"mlstudio/internal/ml"
)

// Stage is one step of the studio pipeline.
type Stage struct {
	Name   string `json:"name"`
	Done   bool   `json:"done"`
	Status string `json:"status"`
}

// Summary is the overview shown on the studio front page.
type Summary struct {
	Datasets    int       `json:"datasets"`
	Models      int       `json:"models"`
	IsTraining  bool      `json:"isTraining"`
	ActiveModel *ml.Model `json:"activeModel,omitempty"`
	// Accuracy of the active model; nil when no model is active.
	Accuracy *float64 `json:"accuracy,omitempty"`
	Stages   []Stage  `json:"stages"`
}

// Summary counts datasets and models and reports how far the pipeline has
// progressed.
func (e *Engine) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sum := Summary{
		Datasets:   e.datasets.Len(),
		Models:     e.models.Len(),
		IsTraining: e.trainer.IsTraining(),
	}
	if m, err := e.models.Active(); err == nil {
		sum.ActiveModel = &m
		if metrics, ok := e.evaluations[m.ID]; ok {
			acc := metrics.Accuracy
			sum.Accuracy = &acc
		}
	}

	hasData := sum.Datasets > 0
	sum.Stages = []Stage{
		{Name: "Data Upload", Done: hasData, Status: pick(hasData, "Completed", "Pending")},
		{Name: "Data Exploration", Done: hasData, Status: pick(hasData, "Available", "Waiting for data")},
		{Name: "Model Training", Done: sum.Models > 0, Status: pick(sum.Models > 0, fmt.Sprintf("%d models trained", sum.Models), "No models yet")},
		{Name: "Deployment & Prediction", Done: sum.ActiveModel != nil, Status: pick(sum.ActiveModel != nil, "Model deployed", "No active model")},
	}
	return sum
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
