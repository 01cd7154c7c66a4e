package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// CallState is where one session stands in the call lifecycle. The outgoing
// ring is not modeled separately: a caller jumps straight to InCall once the
// room allocation succeeds locally.
type CallState string

const (
	StateIdle      CallState = "IDLE"
	StateRingingIn CallState = "RINGING_IN"
	StateInCall    CallState = "IN_CALL"
)

// Lifecycle tracks one user's call state and rejects transitions the
// handshake does not allow. The signal listener and the call handlers share
// one instance per user, so every method takes the lock.
type Lifecycle struct {
	mu    sync.Mutex
	state CallState
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

func (l *Lifecycle) State() CallState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ring marks a fresh invitation observed by the signal listener.
func (l *Lifecycle) Ring() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateIdle, StateRingingIn:
		l.state = StateRingingIn
		return nil
	default:
		return fmt.Errorf("cannot ring while %s", l.state)
	}
}

// ClearRing returns to idle when the invitation disappears (decline, stale
// expiry, or the caller cleaning up).
func (l *Lifecycle) ClearRing() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateIdle, StateRingingIn:
		l.state = StateIdle
		return nil
	default:
		return fmt.Errorf("cannot clear ring while %s", l.state)
	}
}

// EnterCall covers both the caller path (room allocated locally) and the
// callee path (invitation accepted).
func (l *Lifecycle) EnterCall() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateIdle, StateRingingIn:
		l.state = StateInCall
		return nil
	default:
		return fmt.Errorf("cannot enter call while %s", l.state)
	}
}

// Leave ends the call. Leaving while idle is a no-op so the back-navigation
// trap can always call it.
func (l *Lifecycle) Leave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
}

// LifecycleRegistry hands out the per-user lifecycle so the signal stream and
// the call handlers observe one shared state. Entries are a single word of
// state and live for the process; a user who leaves returns to idle rather
// than being evicted, which also lets a reconnecting listener resume
// mid-handshake instead of starting over at idle.
type LifecycleRegistry struct {
	mu     sync.Mutex
	states map[uuid.UUID]*Lifecycle
}

func NewLifecycleRegistry() *LifecycleRegistry {
	return &LifecycleRegistry{states: make(map[uuid.UUID]*Lifecycle)}
}

func (r *LifecycleRegistry) For(userID uuid.UUID) *Lifecycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	lifecycle, ok := r.states[userID]
	if !ok {
		lifecycle = NewLifecycle()
		r.states[userID] = lifecycle
	}
	return lifecycle
}
