// Package settings owns the live printer configuration. Readers take an
// immutable snapshot per job; writers install a whole new value.
package settings

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

var (
	ErrInvalid = errors.New("invalid settings")
	ErrPersist = errors.New("persist settings")
)

// Persister stores settings outside the process.
type Persister interface {
	Save(model.Settings) error
}

type Store struct {
	current   atomic.Pointer[model.Settings]
	mu        sync.Mutex
	persister Persister
	validate  *validator.Validate
	listeners []func(model.Settings)
}

// NewStore validates initial and installs it. persister may be nil.
func NewStore(initial model.Settings, persister Persister) (*Store, error) {
	s := &Store{
		persister: persister,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	if err := s.Validate(initial); err != nil {
		return nil, err
	}
	s.current.Store(&initial)
	return s, nil
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() model.Settings {
	return *s.current.Load()
}

// Validate checks v against the field rules.
func (s *Store) Validate(v model.Settings) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Merge overlays overrides onto the current snapshot and returns the result
// without installing it. Keys use the JSON names of model.Settings; unknown
// keys are ignored.
func (s *Store) Merge(overrides map[string]any) (model.Settings, error) {
	return s.MergeInto(s.Snapshot(), overrides)
}

// MergeInto overlays overrides onto base.
func (s *Store) MergeInto(base model.Settings, overrides map[string]any) (model.Settings, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return base, err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return base, err
	}
	for k, v := range overrides {
		fields[k] = v
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return base, err
	}
	var next model.Settings
	if err := json.Unmarshal(raw, &next); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(next); err != nil {
		return base, err
	}
	return next, nil
}

// Replace installs next, notifies listeners and persists it. The new value
// stays live even when persisting fails; the error wraps ErrPersist.
func (s *Store) Replace(next model.Settings) error {
	if err := s.Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.current.Store(&next)
	listeners := append([]func(model.Settings){}, s.listeners...)
	persister := s.persister
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	if persister != nil {
		if err := persister.Save(next); err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	return nil
}

// Apply merges overrides into the live settings and installs the result.
func (s *Store) Apply(overrides map[string]any) (model.Settings, error) {
	next, err := s.Merge(overrides)
	if err != nil {
		return s.Snapshot(), err
	}
	return next, s.Replace(next)
}

// Watch registers fn to be called with every installed value.
func (s *Store) Watch(fn func(model.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
