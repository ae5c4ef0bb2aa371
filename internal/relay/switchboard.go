package relay

import (
	"errors"
	"sync"
)

// ErrUnauthorized is returned when a non-operator identity attempts a
// switchboard transition.
var ErrUnauthorized = errors.New("unauthorized")

// Switchboard is the process-wide auto-reply gate. It starts disabled; the
// operator must explicitly activate it. Transitions are idempotent, gated by
// the operator identity, and atomic with respect to concurrent readers.
// The state is not persisted: a restart resets to disabled.
type Switchboard struct {
	mu      sync.Mutex
	enabled bool
	ownerID int64
}

// NewSwitchboard creates a disabled switchboard owned by ownerID.
func NewSwitchboard(ownerID int64) *Switchboard {
	return &Switchboard{ownerID: ownerID}
}

// Activate enables auto-reply. Only the owner identity may transition.
func (s *Switchboard) Activate(actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if actorID != s.ownerID {
		return ErrUnauthorized
	}
	s.enabled = true
	return nil
}

// Deactivate disables auto-reply. Only the owner identity may transition.
func (s *Switchboard) Deactivate(actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if actorID != s.ownerID {
		return ErrUnauthorized
	}
	s.enabled = false
	return nil
}

// Enabled reports the current state.
func (s *Switchboard) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
