package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/sftpxfer"
	"github.com/gluk-w/mcp-ssh/internal/sshaudit"
	"github.com/gluk-w/mcp-ssh/internal/sshexec"
	"github.com/gluk-w/mcp-ssh/internal/sshmanager"
)

// ConnectRequest opens a named session. The endpoint is taken from Endpoint
// when it has a host, else from the named Profile, else from the default
// endpoint.
type ConnectRequest struct {
	ID       string
	Profile  string
	Endpoint config.Endpoint
}

// ConnectResult describes a newly opened session.
type ConnectResult struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ExecRequest runs Command, in Cwd when non-empty.
type ExecRequest struct {
	ID      string
	Command string
	Cwd     string
}

// TransferRequest names the two ends of an upload or download.
type TransferRequest struct {
	ID         string
	LocalPath  string
	RemotePath string
}

// TransferResult reports a completed transfer.
type TransferResult struct {
	Bytes   int64  `json:"bytes"`
	Message string `json:"message"`
}

// ListRequest lists Path, "." when empty.
type ListRequest struct {
	ID   string
	Path string
}

// ListResult is the raw listing plus its parsed entries.
type ListResult struct {
	Path    string              `json:"path"`
	Output  string              `json:"output"`
	Entries []sshexec.FileEntry `json:"entries"`
}

// ServerDetails is the credential-free endpoint of a session.
type ServerDetails struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}

// Status describes one connection identifier.
type Status struct {
	ID            string                       `json:"id"`
	Connected     bool                         `json:"connected"`
	State         string                       `json:"state"`
	ServerDetails *ServerDetails               `json:"serverDetails"`
	ConnectedAt   *time.Time                   `json:"connectedAt,omitempty"`
	Events        []sshmanager.ConnectionEvent `json:"events"`
	Transitions   []sshmanager.StateTransition `json:"transitions"`
}

const statusEventCount = 10

// Connect opens a session under req.ID (DefaultID when empty).
func (d *Dispatcher) Connect(ctx context.Context, req ConnectRequest) (*ConnectResult, error) {
	id := normalizeID(req.ID)

	ep, err := d.resolveEndpoint(req)
	if err != nil {
		return nil, err
	}
	if err := ep.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	start := time.Now()
	_, err = d.manager.Connect(ctx, id, ep)
	d.audit(id, sshaudit.OpConnect, endpointLabel(ep), start, err)
	if err != nil {
		if errors.Is(err, sshmanager.ErrAlreadyExists) || errors.Is(err, sshmanager.ErrTooManyConnections) {
			return nil, err
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	return &ConnectResult{
		ID:       id,
		Host:     ep.Host,
		Port:     ep.Port,
		Username: ep.Username,
		Message:  fmt.Sprintf("Successfully connected to %s:%d as %s", ep.Host, ep.Port, ep.Username),
	}, nil
}

func (d *Dispatcher) resolveEndpoint(req ConnectRequest) (config.Endpoint, error) {
	switch {
	case req.Endpoint.Host != "":
		return req.Endpoint, nil
	case req.Profile != "":
		ep, ok := d.profiles[req.Profile]
		if !ok {
			return config.Endpoint{}, invalid("unknown profile %q", req.Profile)
		}
		return ep, nil
	case d.defaultEndpoint != nil:
		return *d.defaultEndpoint, nil
	default:
		return config.Endpoint{}, invalid("host is required (no default connection configured)")
	}
}

// Execute runs a command on a session. A non-zero exit status is reported in
// the result, not as an error.
func (d *Dispatcher) Execute(ctx context.Context, req ExecRequest) (*sshexec.Result, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, invalid("command is required")
	}
	id := normalizeID(req.ID)
	sess, err := d.session(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := sshexec.Execute(sess.Client, req.Command, req.Cwd)
	d.audit(id, sshaudit.OpExecute, req.Command, start, err)
	if err != nil {
		return nil, fmt.Errorf("command execution failed: %w", err)
	}
	return res, nil
}

// Upload copies a local file to the remote host. A missing local file is
// reported before any session lookup or remote I/O.
func (d *Dispatcher) Upload(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.LocalPath == "" || req.RemotePath == "" {
		return nil, invalid("localPath and remotePath are required")
	}
	if err := sftpxfer.CheckLocalFile(req.LocalPath); err != nil {
		return nil, err
	}
	id := normalizeID(req.ID)
	sess, err := d.session(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	n, err := sftpxfer.Upload(sess.Client, req.LocalPath, req.RemotePath)
	d.audit(id, sshaudit.OpUpload, req.LocalPath+" -> "+req.RemotePath, start, err)
	if err != nil {
		if errors.Is(err, sftpxfer.ErrLocalFileNotFound) || errors.Is(err, sftpxfer.ErrLocalNotRegular) {
			return nil, err
		}
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return &TransferResult{
		Bytes:   n,
		Message: fmt.Sprintf("Successfully uploaded %s to %s", req.LocalPath, req.RemotePath),
	}, nil
}

// Download copies a remote file to the local filesystem, creating missing
// local parent directories.
func (d *Dispatcher) Download(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.LocalPath == "" || req.RemotePath == "" {
		return nil, invalid("remotePath and localPath are required")
	}
	id := normalizeID(req.ID)
	sess, err := d.session(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	n, err := sftpxfer.Download(sess.Client, req.RemotePath, req.LocalPath)
	d.audit(id, sshaudit.OpDownload, req.RemotePath+" -> "+req.LocalPath, start, err)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return &TransferResult{
		Bytes:   n,
		Message: fmt.Sprintf("Successfully downloaded %s to %s", req.RemotePath, req.LocalPath),
	}, nil
}

// List runs "ls -la" on a directory. A listing that exits non-zero is an
// error carrying the remote stderr.
func (d *Dispatcher) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	path := req.Path
	if path == "" {
		path = "."
	}
	id := normalizeID(req.ID)
	sess, err := d.session(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := sshexec.ListDirectory(sess.Client, path)
	if err == nil && res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		err = errors.New(msg)
	}
	d.audit(id, sshaudit.OpList, path, start, err)
	if err != nil {
		return nil, fmt.Errorf("directory listing failed: %w", err)
	}
	return &ListResult{
		Path:    path,
		Output:  res.Stdout,
		Entries: sshexec.ParseLsOutput(res.Stdout),
	}, nil
}

// Disconnect closes the session under id and forgets the identifier.
func (d *Dispatcher) Disconnect(ctx context.Context, id string) (string, error) {
	id = normalizeID(id)
	start := time.Now()
	err := d.manager.Close(id)
	if err != nil {
		return "", err
	}
	d.audit(id, sshaudit.OpDisconnect, "", start, nil)
	return "Disconnected from " + id, nil
}

// Status reports the state of id (DefaultID when empty). Unknown identifiers
// are reported as disconnected, not as an error.
func (d *Dispatcher) Status(id string) Status {
	id = normalizeID(id)
	st := Status{
		ID:          id,
		State:       d.manager.GetConnectionState(id).String(),
		Events:      d.manager.GetRecentEvents(id, statusEventCount),
		Transitions: d.manager.GetTransitions(id),
	}
	if sess, err := d.manager.Get(id); err == nil {
		connectedAt := sess.ConnectedAt
		st.Connected = true
		st.ConnectedAt = &connectedAt
		st.ServerDetails = &ServerDetails{
			Host:     sess.Endpoint.Host,
			Port:     sess.Endpoint.Port,
			Username: sess.Endpoint.Username,
		}
	}
	return st
}

// Connections returns the identifiers of all live sessions, sorted.
func (d *Dispatcher) Connections() []string {
	return d.manager.IDs()
}
