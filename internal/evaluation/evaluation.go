// Package evaluation derives classifier quality numbers from a confusion
// matrix and the scalar metrics produced at the end of a training run.
package evaluation

import "math"

// ConfusionMatrix counts binary classification outcomes.
type ConfusionMatrix struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`
}

// Metrics are the summary scores of one training run.
type Metrics struct {
	Accuracy        float64         `json:"accuracy"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	F1Score         float64         `json:"f1Score"`
	AUC             float64         `json:"auc"`
	ConfusionMatrix ConfusionMatrix `json:"confusionMatrix"`
}

// Total is the number of classified samples.
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// TruePositiveRate is tp/(tp+fn), or 0 when there are no actual positives.
func (m ConfusionMatrix) TruePositiveRate() float64 {
	denominator := m.TruePositives + m.FalseNegatives
	if denominator <= 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(denominator)
}

// FalsePositiveRate is fp/(fp+tn), or 0 when there are no actual negatives.
func (m ConfusionMatrix) FalsePositiveRate() float64 {
	denominator := m.FalsePositives + m.TrueNegatives
	if denominator <= 0 {
		return 0
	}
	return float64(m.FalsePositives) / float64(denominator)
}

// CellIntensities holds the heat-map shade for each cell.
type CellIntensities struct {
	TruePositive  float64 `json:"truePositive"`
	FalsePositive float64 `json:"falsePositive"`
	TrueNegative  float64 `json:"trueNegative"`
	FalseNegative float64 `json:"falseNegative"`
}

// Intensities shades every cell against half of the total sample count.
func (m ConfusionMatrix) Intensities() CellIntensities {
	max := float64(m.Total()) * 0.5
	return CellIntensities{
		TruePositive:  ColorIntensity(float64(m.TruePositives), max),
		FalsePositive: ColorIntensity(float64(m.FalsePositives), max),
		TrueNegative:  ColorIntensity(float64(m.TrueNegatives), max),
		FalseNegative: ColorIntensity(float64(m.FalseNegatives), max),
	}
}

// Gini rescales an AUC into [-1, 1].
func Gini(auc float64) float64 {
	return 2*auc - 1
}

// ColorIntensity normalizes value/max into [0.1, 0.9]. A zero max yields the
// 0.1 floor rather than NaN.
func ColorIntensity(value, max float64) float64 {
	if max == 0 {
		return 0.1
	}
	return math.Min(0.9, value/max*0.8+0.1)
}

// Gini of the run's AUC.
func (m Metrics) Gini() float64 {
	return Gini(m.AUC)
}

// SeriesPoint is one bar of the metrics chart.
type SeriesPoint struct {
	Label string  `json:"x"`
	Value float64 `json:"y"`
}

// Series lists the headline scores in display order.
func (m Metrics) Series() []SeriesPoint {
	return []SeriesPoint{
		{Label: "Accuracy", Value: m.Accuracy},
		{Label: "Precision", Value: m.Precision},
		{Label: "Recall", Value: m.Recall},
		{Label: "F1 Score", Value: m.F1Score},
		{Label: "AUC", Value: m.AUC},
	}
}

// Report bundles metrics with the values derived from them.
type Report struct {
	Metrics           Metrics         `json:"metrics"`
	TruePositiveRate  float64         `json:"truePositiveRate"`
	FalsePositiveRate float64         `json:"falsePositiveRate"`
	Gini              float64         `json:"gini"`
	Intensities       CellIntensities `json:"intensities"`
	Series            []SeriesPoint   `json:"series"`
}

// NewReport derives every presentation value from m.
func NewReport(m Metrics) Report {
	return Report{
		Metrics:           m,
		TruePositiveRate:  m.ConfusionMatrix.TruePositiveRate(),
		FalsePositiveRate: m.ConfusionMatrix.FalsePositiveRate(),
		Gini:              m.Gini(),
		Intensities:       m.ConfusionMatrix.Intensities(),
		Series:            m.Series(),
	}
}
