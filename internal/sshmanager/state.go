package sshmanager

import (
	"sync"
	"time"
)

// ConnectionState represents the lifecycle state of a connection identifier.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the defined constants.
func (s ConnectionState) IsValid() bool {
	switch s {
	case StateDisconnected, StateConnecting, StateConnected, StateFailed:
		return true
	default:
		return false
	}
}

// StateTransition records a state change.
type StateTransition struct {
	From      ConnectionState `json:"from"`
	To        ConnectionState `json:"to"`
	Timestamp time.Time       `json:"timestamp"`
}

// StateCallback is called when a connection's state changes.
type StateCallback func(id string, from, to ConnectionState)

const maxTransitionsPerID = 50

// ConnectionStateTracker manages connection states, transition history, and callbacks.
type ConnectionStateTracker struct {
	mu          sync.RWMutex
	states      map[string]ConnectionState
	transitions map[string][]StateTransition
	callbacks   []StateCallback
}

// NewConnectionStateTracker creates a new state tracker.
func NewConnectionStateTracker() *ConnectionStateTracker {
	return &ConnectionStateTracker{
		states:      make(map[string]ConnectionState),
		transitions: make(map[string][]StateTransition),
	}
}

// GetState returns the current state of id, StateDisconnected if unknown.
func (t *ConnectionStateTracker) GetState(id string) ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[id]
	if !ok {
		return StateDisconnected
	}
	return state
}

// SetState updates the state of id. If the state actually changed, it records
// the transition and fires registered callbacks. Returns the previous state.
func (t *ConnectionStateTracker) SetState(id string, newState ConnectionState) ConnectionState {
	t.mu.Lock()
	oldState, ok := t.states[id]
	if !ok {
		oldState = StateDisconnected
	}
	if oldState == newState {
		t.mu.Unlock()
		return oldState
	}

	t.states[id] = newState
	transitions := append(t.transitions[id], StateTransition{
		From:      oldState,
		To:        newState,
		Timestamp: time.Now(),
	})
	if len(transitions) > maxTransitionsPerID {
		transitions = transitions[len(transitions)-maxTransitionsPerID:]
	}
	t.transitions[id] = transitions

	cbs := make([]StateCallback, len(t.callbacks))
	copy(cbs, t.callbacks)
	t.mu.Unlock()

	// outside the lock: callbacks may call back into the tracker
	for _, cb := range cbs {
		cb(id, oldState, newState)
	}
	return oldState
}

// ClearInstance removes both state and transition history for id.
func (t *ConnectionStateTracker) ClearInstance(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, id)
	delete(t.transitions, id)
}

// ClearAll removes all states and transition history.
func (t *ConnectionStateTracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]ConnectionState)
	t.transitions = make(map[string][]StateTransition)
}

// GetTransitions returns a copy of the transition history of id.
func (t *ConnectionStateTracker) GetTransitions(id string) []StateTransition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	transitions := t.transitions[id]
	result := make([]StateTransition, len(transitions))
	copy(result, transitions)
	return result
}

// OnStateChange registers a callback that fires when any state changes.
func (t *ConnectionStateTracker) OnStateChange(cb StateCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}
