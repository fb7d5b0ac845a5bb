package sshmanager

import (
	"log"
	"time"

	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// EventType identifies the type of connection event.
type EventType string

const (
	EventConnected     EventType = "connected"
	EventConnectFailed EventType = "connect_failed"
)

// ConnectionEvent is one entry in an identifier's event history.
type ConnectionEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

const maxEventsPerID = 100

func (m *SSHManager) emitEvent(id string, eventType EventType, details string) {
	event := ConnectionEvent{
		ID:        id,
		Type:      eventType,
		Details:   details,
		Timestamp: time.Now(),
	}

	m.eventsMu.Lock()
	events := append(m.events[id], event)
	if len(events) > maxEventsPerID {
		events = events[len(events)-maxEventsPerID:]
	}
	m.events[id] = events
	m.eventsMu.Unlock()

	log.Printf("[ssh] event %s/%s: %s", logutil.SanitizeForLog(id), eventType, logutil.SanitizeForLog(details))
}

// GetRecentEvents returns the most recent n events for id.
func (m *SSHManager) GetRecentEvents(id string, n int) []ConnectionEvent {
	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	events := m.events[id]
	if len(events) > n {
		events = events[len(events)-n:]
	}
	result := make([]ConnectionEvent, len(events))
	copy(result, events)
	return result
}

// ClearEvents removes all stored events for id.
func (m *SSHManager) ClearEvents(id string) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	delete(m.events, id)
}
