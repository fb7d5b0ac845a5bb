package sshmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

var (
	// ErrAlreadyExists is returned by Connect for an identifier that is
	// connected or still connecting.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned for an identifier with no live session.
	ErrNotFound = errors.New("no connection found")
	// ErrTooManyConnections is returned by Connect when the limit is reached.
	ErrTooManyConnections = errors.New("maximum connections reached")
	// ErrClosed is returned by Connect once CloseAll has run.
	ErrClosed = errors.New("connection manager is closed")
)

// DialFunc opens an authenticated client for an endpoint.
type DialFunc func(ctx context.Context, ep config.Endpoint) (*ssh.Client, error)

// Session is a live connection owned by the manager.
type Session struct {
	ID          string
	Endpoint    config.Endpoint // credentials stripped
	Client      *ssh.Client
	ConnectedAt time.Time
}

// SSHManager maps connection identifiers to sessions.
type SSHManager struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	pending        map[string]struct{}
	closed         bool
	maxConnections int
	dial           DialFunc

	states *ConnectionStateTracker

	eventsMu sync.RWMutex
	events   map[string][]ConnectionEvent
}

// NewSSHManager creates a registry that opens connections with dial.
// A maxConnections value of 0 or less means unlimited connections.
func NewSSHManager(maxConnections int, dial DialFunc) *SSHManager {
	return &SSHManager{
		sessions:       make(map[string]*Session),
		pending:        make(map[string]struct{}),
		maxConnections: maxConnections,
		dial:           dial,
		states:         NewConnectionStateTracker(),
		events:         make(map[string][]ConnectionEvent),
	}
}

// Connect dials ep and registers the resulting session under id. The call
// blocks until the connection is ready or has failed.
func (m *SSHManager) Connect(ctx context.Context, id string, ep config.Endpoint) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("connect: connection id is empty")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("connect %s: %w", id, ErrClosed)
	}
	_, exists := m.sessions[id]
	_, connecting := m.pending[id]
	if exists || connecting {
		m.mu.Unlock()
		return nil, fmt.Errorf("connection %s %w, disconnect first or use a different ID", id, ErrAlreadyExists)
	}
	if m.maxConnections > 0 && len(m.sessions)+len(m.pending) >= m.maxConnections {
		m.mu.Unlock()
		return nil, fmt.Errorf("connect: %w (%d)", ErrTooManyConnections, m.maxConnections)
	}
	m.pending[id] = struct{}{}
	m.mu.Unlock()

	m.states.SetState(id, StateConnecting)

	client, err := m.dial(ctx, ep)

	m.mu.Lock()
	delete(m.pending, id)
	if err != nil {
		m.mu.Unlock()
		m.states.SetState(id, StateFailed)
		m.emitEvent(id, EventConnectFailed, err.Error())
		return nil, err
	}
	if m.closed {
		m.mu.Unlock()
		if client != nil {
			client.Close()
		}
		m.states.SetState(id, StateDisconnected)
		return nil, fmt.Errorf("connect %s: %w", id, ErrClosed)
	}
	sess := &Session{
		ID:          id,
		Endpoint:    ep.Public(),
		Client:      client,
		ConnectedAt: time.Now(),
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	m.states.SetState(id, StateConnected)
	m.emitEvent(id, EventConnected, ep.Username+"@"+ep.Addr())
	return sess, nil
}

// Get returns the live session registered under id.
func (m *SSHManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w with ID: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Has reports whether id has a live session.
func (m *SSHManager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// Close closes the session registered under id and forgets the identifier.
func (m *SSHManager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w with ID: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.states.ClearInstance(id)
	m.ClearEvents(id)

	if sess.Client != nil {
		if err := sess.Client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("[ssh] error closing connection %s: %v", logutil.SanitizeForLog(id), err)
		}
	}
	log.Printf("[ssh] closed connection %s", logutil.SanitizeForLog(id))
	return nil
}

// CloseAll closes every session and rejects later connects, including ones
// still dialing. Returns the first error encountered, if any.
func (m *SSHManager) CloseAll() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for id, sess := range sessions {
		if sess.Client == nil {
			continue
		}
		if err := sess.Client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("[ssh] error closing connection %s: %v", logutil.SanitizeForLog(id), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	m.states.ClearAll()
	m.eventsMu.Lock()
	m.events = make(map[string][]ConnectionEvent)
	m.eventsMu.Unlock()

	if len(sessions) > 0 {
		log.Printf("[ssh] closed all %d connection(s)", len(sessions))
	}
	return firstErr
}

// IDs returns the identifiers of all live sessions in sorted order.
func (m *SSHManager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ConnectionCount returns the number of live sessions.
func (m *SSHManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetConnectionState returns the lifecycle state of id.
func (m *SSHManager) GetConnectionState(id string) ConnectionState {
	return m.states.GetState(id)
}

// GetTransitions returns the recorded state transitions of id.
func (m *SSHManager) GetTransitions(id string) []StateTransition {
	return m.states.GetTransitions(id)
}

// OnConnectionStateChange registers cb for every state change.
func (m *SSHManager) OnConnectionStateChange(cb StateCallback) {
	m.states.OnStateChange(cb)
}
