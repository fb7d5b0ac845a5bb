// Package dispatch maps the adapter's named operations (connect, execute,
// upload, download, list, disconnect, status) onto the session registry and
// the remote-shell and file-transfer helpers. Both front ends call into a
// single Dispatcher; they differ only in how they decode requests and encode
// replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/logutil"
	"github.com/gluk-w/mcp-ssh/internal/sshaudit"
	"github.com/gluk-w/mcp-ssh/internal/sshmanager"
)

// DefaultID is the connection identifier used when a request names none.
const DefaultID = "default"

// ErrInvalidArgument marks a request with missing or malformed arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// Options configures a Dispatcher.
type Options struct {
	// DefaultEndpoint is connected lazily under DefaultID and used by
	// Connect when a request carries no host. Nil disables both.
	DefaultEndpoint *config.Endpoint
	Profiles        map[string]config.Endpoint
	// Auditor records every operation when non-nil.
	Auditor *sshaudit.Auditor
}

// Dispatcher runs operations against sessions held by an SSHManager.
type Dispatcher struct {
	manager         *sshmanager.SSHManager
	defaultEndpoint *config.Endpoint
	profiles        map[string]config.Endpoint
	auditor         *sshaudit.Auditor

	// serializes lazy connects of the default session
	defaultMu sync.Mutex
}

// New creates a Dispatcher over manager.
func New(manager *sshmanager.SSHManager, opts Options) *Dispatcher {
	d := &Dispatcher{
		manager:  manager,
		profiles: opts.Profiles,
		auditor:  opts.Auditor,
	}
	if opts.DefaultEndpoint != nil {
		ep := *opts.DefaultEndpoint
		d.defaultEndpoint = &ep
	}
	if d.profiles == nil {
		d.profiles = map[string]config.Endpoint{}
	}
	return d
}

// Manager returns the registry the dispatcher operates on.
func (d *Dispatcher) Manager() *sshmanager.SSHManager {
	return d.manager
}

// HasDefaultEndpoint reports whether a default endpoint is configured.
func (d *Dispatcher) HasDefaultEndpoint() bool {
	return d.defaultEndpoint != nil
}

// DefaultEndpoint returns the credential-free default endpoint, if any.
func (d *Dispatcher) DefaultEndpoint() (config.Endpoint, bool) {
	if d.defaultEndpoint == nil {
		return config.Endpoint{}, false
	}
	return d.defaultEndpoint.Public(), true
}

// Auditor returns the configured auditor, nil when auditing is off.
func (d *Dispatcher) Auditor() *sshaudit.Auditor {
	return d.auditor
}

// Close closes every session.
func (d *Dispatcher) Close() error {
	return d.manager.CloseAll()
}

func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultID
	}
	return id
}

// session resolves id to a live session. The default identifier is connected
// on first use when a default endpoint is configured; any other unknown
// identifier is ErrNotFound.
func (d *Dispatcher) session(ctx context.Context, id string) (*sshmanager.Session, error) {
	sess, err := d.manager.Get(id)
	if err == nil {
		return sess, nil
	}
	if id != DefaultID || d.defaultEndpoint == nil || !errors.Is(err, sshmanager.ErrNotFound) {
		return nil, err
	}

	d.defaultMu.Lock()
	defer d.defaultMu.Unlock()
	if sess, err := d.manager.Get(id); err == nil {
		return sess, nil
	}

	log.Printf("[dispatch] connecting default session to %s", logutil.SanitizeForLog(d.defaultEndpoint.Addr()))
	start := time.Now()
	sess, err = d.manager.Connect(ctx, DefaultID, *d.defaultEndpoint)
	d.audit(DefaultID, sshaudit.OpConnect, endpointLabel(*d.defaultEndpoint), start, err)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return sess, nil
}

func (d *Dispatcher) audit(id, op, target string, start time.Time, opErr error) {
	if d.auditor == nil {
		return
	}
	entry := sshaudit.Entry{
		ConnectionID: id,
		Operation:    op,
		Target:       target,
		Success:      opErr == nil,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if opErr != nil {
		entry.Details = opErr.Error()
	}
	d.auditor.Log(entry)
}

func endpointLabel(ep config.Endpoint) string {
	return ep.Username + "@" + ep.Addr()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
