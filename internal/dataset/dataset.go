// Package dataset holds the datasets known to the engine and the active selection.
// Datasets arrive already parsed and validated; the registry only stores them,
// tracks which one is active and exposes feature metadata and raw rows to the
// training and analytics code.
package dataset

import (
	"errors"
	"time"
)

var (
	ErrDuplicateID     = errors.New("dataset: duplicate id")
	ErrUnknownDataset  = errors.New("dataset: unknown dataset")
	ErrNoActiveDataset = errors.New("dataset: no active dataset")
)

// FeatureType distinguishes numeric columns from categorical ones.
type FeatureType string

const (
	Numeric     FeatureType = "numeric"
	Categorical FeatureType = "categorical"
)

// Feature describes one input column. Importance is only used for ranking.
type Feature struct {
	Name       string      `json:"name"`
	Type       FeatureType `json:"type"`
	Importance float64     `json:"importance"`
}

// Row is a single record keyed by column name.
type Row map[string]any

// Dataset is immutable once registered.
type Dataset struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	RowCount     int       `json:"rowCount"`
	ColumnCount  int       `json:"columnCount"`
	Features     []Feature `json:"features"`
	Rows         []Row     `json:"rows,omitempty"`
	TargetColumn string    `json:"targetColumn"`
}

// Feature returns the named feature and whether it exists.
func (d *Dataset) Feature(name string) (Feature, bool) {
	for _, f := range d.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Summary returns a copy of the dataset without its rows, for listings.
func (d *Dataset) Summary() Dataset {
	s := *d
	s.Rows = nil
	s.Features = append([]Feature(nil), d.Features...)
	return s
}
