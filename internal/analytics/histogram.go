package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mlstudio/internal/dataset"
)

// BinCount is the fixed number of buckets for numeric histograms.
const BinCount = 10

// Point is a labelled value, the unit every chart consumes.
type Point struct {
	Label string  `json:"x"`
	Value float64 `json:"y"`
}

// Bucket is one histogram bar.
type Bucket struct {
	Label string  `json:"label"`
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram is the distribution of one feature. Empty marks a dataset without
// rows so that renderers can show a placeholder instead of an error.
type Histogram struct {
	Feature string              `json:"feature"`
	Type    dataset.FeatureType `json:"type"`
	Buckets []Bucket            `json:"buckets"`
	Empty   bool                `json:"empty"`
}

// Total sums all bucket counts.
func (h Histogram) Total() int {
	total := 0
	for _, b := range h.Buckets {
		total += b.Count
	}
	return total
}

// Points converts the buckets into (label, count) chart points.
func (h Histogram) Points() []Point {
	points := make([]Point, len(h.Buckets))
	for i, b := range h.Buckets {
		points[i] = Point{Label: b.Label, Value: float64(b.Count)}
	}
	return points
}

// ComputeHistogram bins the values of featureName across all rows of ds.
func ComputeHistogram(ds *dataset.Dataset, featureName string) (Histogram, error) {
	feature, ok := ds.Feature(featureName)
	if !ok {
		return Histogram{}, fmt.Errorf("histogram %s: %w", featureName, ErrUnknownFeature)
	}

	h := Histogram{Feature: feature.Name, Type: feature.Type}
	if len(ds.Rows) == 0 {
		h.Empty = true
		return h, nil
	}

	if feature.Type == dataset.Categorical {
		h.Buckets = categoricalBuckets(ds.Rows, featureName)
		return h, nil
	}

	buckets, err := numericBuckets(ds.Rows, featureName)
	if err != nil {
		return Histogram{}, err
	}
	h.Buckets = buckets
	return h, nil
}

// categoricalBuckets counts rows per distinct value in first-seen order.
func categoricalBuckets(rows []dataset.Row, name string) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket

	for _, row := range rows {
		key := fmt.Sprint(row[name])
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Label: key})
		}
		buckets[i].Count++
	}
	return buckets
}

func numericBuckets(rows []dataset.Row, name string) ([]Bucket, error) {
	values := make([]float64, len(rows))
	lo, hi := math.Inf(1), math.Inf(-1)

	for i, row := range rows {
		v, err := toFloat(row[name])
		if err != nil {
			return nil, fmt.Errorf("histogram %s row %d: %w", name, i, err)
		}
		values[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	binWidth := (hi - lo) / BinCount
	buckets := make([]Bucket, BinCount)
	for i := range buckets {
		bLo := lo + float64(i)*binWidth
		bHi := lo + float64(i+1)*binWidth
		buckets[i] = Bucket{
			Label: fmt.Sprintf("%.1f-%.1f", bLo, bHi),
			Lo:    bLo,
			Hi:    bHi,
		}
	}

	for _, v := range values {
		buckets[BinIndex(v, lo, binWidth)].Count++
	}
	return buckets, nil
}

// BinIndex maps v into [0, BinCount-1]. The maximum value lands in the last
// bin and a zero-width domain puts everything in bin 0.
func BinIndex(v, lo, binWidth float64) int {
	if binWidth <= 0 {
		return 0
	}
	idx := int(math.Floor((v - lo) / binWidth))
	if idx < 0 {
		return 0
	}
	if idx > BinCount-1 {
		return BinCount - 1
	}
	return idx
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNonNumericValue, n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNonNumericValue, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrNonNumericValue, v)
	}
}
