// Package model provides state management for fitted components.
package model

import (
	"sync"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// StateManager guards the fitted state of a component. Writers install a new
// state atomically with Set; readers obtain a consistent snapshot with Get.
// A completed Set happens-before every subsequent Get.
type StateManager struct {
	mu     sync.RWMutex
	fitted bool
	states []FittedState

	// dimensions seen during fitting
	nColumns int
	nRows    int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether a state has been installed.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// Set installs a new list of states, replacing any previous one. The slice is
// copied.
func (s *StateManager) Set(states []FittedState, nColumns, nRows int) {
	cp := make([]FittedState, len(states))
	copy(cp, states)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = cp
	s.fitted = true
	s.nColumns = nColumns
	s.nRows = nRows
}

// Get returns the installed states, or a NotFittedError naming owner and
// method when nothing has been installed yet.
func (s *StateManager) Get(owner, method string) ([]FittedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fitted {
		return nil, errors.NewNotFittedError(owner, method)
	}
	return s.states, nil
}

// Reset discards the installed states.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.states = nil
	s.nColumns = 0
	s.nRows = 0
}

// GetDimensions returns the number of columns and rows seen during fitting.
func (s *StateManager) GetDimensions() (nColumns, nRows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nColumns, s.nRows
}
