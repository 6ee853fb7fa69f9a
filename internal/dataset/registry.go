package dataset

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry stores datasets in registration order and tracks the active one.
type Registry struct {
	mu       sync.RWMutex
	datasets []*Dataset
	byID     map[string]*Dataset
	active   *Dataset
}

// NewRegistry creates an empty registry with no active dataset.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Dataset),
	}
}

// Register adds a dataset. The registry takes ownership of ds.
func (r *Registry) Register(ds *Dataset) error {
	if ds == nil {
		return fmt.Errorf("register dataset: nil dataset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[ds.ID]; exists {
		return fmt.Errorf("register dataset %s: %w", ds.ID, ErrDuplicateID)
	}

	r.datasets = append(r.datasets, ds)
	r.byID[ds.ID] = ds

	log.Debug().Str("dataset_id", ds.ID).Int("rows", ds.RowCount).Msg("dataset registered")
	return nil
}

// Select makes the dataset with the given id active.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("select dataset %s: %w", id, ErrUnknownDataset)
	}
	r.active = ds
	return nil
}

// List returns all datasets in registration order.
func (r *Registry) List() []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Dataset, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// Get returns the dataset with the given id.
func (r *Registry) Get(id string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get dataset %s: %w", id, ErrUnknownDataset)
	}
	return ds, nil
}

// Active returns the active dataset.
func (r *Registry) Active() (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return nil, ErrNoActiveDataset
	}
	return r.active, nil
}

// ActiveFeatures returns a copy of the active dataset's feature list.
func (r *Registry) ActiveFeatures() ([]Feature, error) {
	ds, err := r.Active()
	if err != nil {
		return nil, err
	}
	return append([]Feature(nil), ds.Features...), nil
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}
