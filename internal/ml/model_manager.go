package ml

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds trained models in registration order and tracks the one
// used for predictions.
type Registry struct {
	mu     sync.RWMutex
	models []*Model
	byID   map[string]*Model
	active *Model
}

// NewRegistry creates an empty model registry
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Model),
	}
}

// Register appends a model. It does not change the active selection.
func (r *Registry) Register(m Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; exists {
		return fmt.Errorf("register model %q: %w", m.ID, ErrDuplicateModel)
	}

	stored := m.clone()
	r.models = append(r.models, &stored)
	r.byID[m.ID] = &stored

	log.Debug().
		Str("model_id", m.ID).
		Str("dataset_id", m.DatasetID).
		Int("models", len(r.models)).
		Msg("Model registered")
	return nil
}

// Activate makes the model with id the active one.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activateLocked(id)
}

func (r *Registry) activateLocked(id string) error {
	m, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("activate model %q: %w", id, ErrUnknownModel)
	}
	m.Status = StatusActive
	r.active = m

	log.Info().Str("model_id", id).Str("name", m.Name).Msg("Model activated")
	return nil
}

// Active returns the active model.
func (r *Registry) Active() (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return Model{}, ErrNoActiveModel
	}
	return r.active.clone(), nil
}

// Get returns the model with id.
func (r *Registry) Get(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return Model{}, fmt.Errorf("get model %q: %w", id, ErrUnknownModel)
	}
	return m.clone(), nil
}

// List returns every model in registration order.
func (r *Registry) List() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Model, len(r.models))
	for i, m := range r.models {
		out[i] = m.clone()
	}
	return out
}

// Len reports how many models are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Archive marks a model archived. Archiving the active model clears the
// active selection.
func (r *Registry) Archive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("archive model %q: %w", id, ErrUnknownModel)
	}
	m.Status = StatusArchived
	if r.active == m {
		r.active = nil
	}

	log.Info().Str("model_id", id).Msg("Model archived")
	return nil
}

// Rollback activates the most recent non-archived model registered before
// the active one.
func (r *Registry) Rollback() (Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return Model{}, ErrNoActiveModel
	}

	current := -1
	for i, m := range r.models {
		if m == r.active {
			current = i
			break
		}
	}

	for i := current - 1; i >= 0; i-- {
		candidate := r.models[i]
		if candidate.Status == StatusArchived {
			continue
		}
		log.Info().
			Str("from", r.active.ID).
			Str("to", candidate.ID).
			Msg("Rolling back model")
		if err := r.activateLocked(candidate.ID); err != nil {
			return Model{}, err
		}
		return candidate.clone(), nil
	}
	return Model{}, ErrNoPreviousModel
}
