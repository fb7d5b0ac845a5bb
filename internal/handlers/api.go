// Package handlers implements the REST front end. Every endpoint decodes a
// JSON body (or path parameter), calls the shared dispatcher and replies with
// a JSON object carrying a "success" flag.
package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/dispatch"
	"github.com/gluk-w/mcp-ssh/internal/middleware"
	"github.com/gluk-w/mcp-ssh/internal/sshaudit"
)

// API holds the dependencies of the REST handlers.
type API struct {
	Dispatcher *dispatch.Dispatcher
	Version    string
	// Purge is the audit retention scheduler, reported by /health when set.
	Purge *sshaudit.PurgeScheduler

	// set by Router; requests that name files on the adapter host need a token
	localFiles bool
}

// Router builds the chi router. A non-empty apiToken protects every route
// except /health. Without a token, /upload, /download and connects with a
// privateKeyPath are refused with 403.
func (a *API) Router(apiToken string) http.Handler {
	a.localFiles = apiToken != ""

	r := chi.NewRouter()
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: log.Default(), NoColor: true}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", a.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(apiToken))

		r.Post("/connect", a.Connect)
		r.Post("/execute", a.Execute)
		r.Post("/disconnect", a.Disconnect)
		r.Post("/upload", a.requireLocalFiles(a.Upload))
		r.Post("/download", a.requireLocalFiles(a.Download))
		r.Post("/list", a.List)
		r.Get("/status", a.Status)
		r.Get("/status/{id}", a.Status)
		r.Get("/connections", a.Connections)
		r.Get("/audit", a.AuditLogs)
		r.Get("/logs", a.ServerLogs)
	})
	return r
}

type connectBody struct {
	ID             string `json:"id"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	PrivateKey     string `json:"privateKey"`
	PrivateKeyPath string `json:"privateKeyPath"`
	Passphrase     string `json:"passphrase"`
	Profile        string `json:"profile"`
}

// Connect opens a session. Without a host the configured default server is
// used.
func (a *API) Connect(w http.ResponseWriter, r *http.Request) {
	var body connectBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.PrivateKeyPath != "" && !a.localFiles {
		writeError(w, http.StatusForbidden, localFilesDisabled)
		return
	}
	res, err := a.Dispatcher.Connect(r.Context(), dispatch.ConnectRequest{
		ID:      body.ID,
		Profile: body.Profile,
		Endpoint: config.Endpoint{
			Host:           body.Host,
			Port:           body.Port,
			Username:       body.Username,
			Password:       body.Password,
			PrivateKey:     body.PrivateKey,
			PrivateKeyPath: body.PrivateKeyPath,
			Passphrase:     body.Passphrase,
		},
	})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
		"id":      res.ID,
	})
}

type executeBody struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Cwd     string `json:"cwd"`
}

// Execute runs a command and returns its stdout as "output" and its stderr as
// "error". A non-zero exit code is still a successful request.
func (a *API) Execute(w http.ResponseWriter, r *http.Request) {
	var body executeBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := a.Dispatcher.Execute(r.Context(), dispatch.ExecRequest{
		ID:      body.ID,
		Command: body.Command,
		Cwd:     body.Cwd,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"output":   res.Stdout,
		"error":    res.Stderr,
		"exitCode": res.ExitCode,
	})
}

type idBody struct {
	ID string `json:"id"`
}

// Disconnect closes a session.
func (a *API) Disconnect(w http.ResponseWriter, r *http.Request) {
	var body idBody
	if !decodeBody(w, r, &body) {
		return
	}
	msg, err := a.Dispatcher.Disconnect(r.Context(), body.ID)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

type transferBody struct {
	ID         string `json:"id"`
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
}

func (b transferBody) request() dispatch.TransferRequest {
	return dispatch.TransferRequest{ID: b.ID, LocalPath: b.LocalPath, RemotePath: b.RemotePath}
}

// Upload copies a file from the adapter host to the remote server.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := a.Dispatcher.Upload(r.Context(), body.request())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message, "bytes": res.Bytes})
}

// Download copies a file from the remote server to the adapter host.
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := a.Dispatcher.Download(r.Context(), body.request())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message, "bytes": res.Bytes})
}

type listBody struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// List returns "ls -la" output for a remote directory along with the parsed
// entries.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	var body listBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := a.Dispatcher.List(r.Context(), dispatch.ListRequest{ID: body.ID, Path: body.Path})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    res.Path,
		"output":  res.Output,
		"entries": res.Entries,
	})
}

// Status reports one connection, the default connection when the path has no
// ID.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Dispatcher.Status(chi.URLParam(r, "id")))
}

// Connections lists the IDs of all open sessions.
func (a *API) Connections(w http.ResponseWriter, r *http.Request) {
	ids := a.Dispatcher.Connections()
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": ids,
		"count":       len(ids),
	})
}

// Health reports liveness and a summary of the adapter's state.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":          "healthy",
		"version":         a.Version,
		"connections":     len(a.Dispatcher.Connections()),
		"defaultEndpoint": a.Dispatcher.HasDefaultEndpoint(),
		"audit":           a.Dispatcher.Auditor() != nil,
	}
	if a.Purge != nil {
		resp["nextAuditPurge"] = a.Purge.Next().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuditLogs returns paginated audit entries.
//
// Query parameters:
//
//	id        - filter by connection ID
//	operation - filter by operation (connect, execute, upload, download, list, disconnect)
//	failed    - "true" for failed operations only
//	since     - RFC3339 timestamp, only entries after this time
//	until     - RFC3339 timestamp, only entries before this time
//	limit     - max entries to return (default 50, max 1000)
//	offset    - pagination offset
func (a *API) AuditLogs(w http.ResponseWriter, r *http.Request) {
	auditor := a.Dispatcher.Auditor()
	if auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit log is not enabled")
		return
	}

	q := r.URL.Query()
	opts := sshaudit.QueryOptions{
		ConnectionID: q.Get("id"),
		Operation:    q.Get("operation"),
		FailedOnly:   q.Get("failed") == "true",
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp (use RFC3339)")
			return
		}
		opts.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid until timestamp (use RFC3339)")
			return
		}
		opts.Until = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = n
	}

	result, err := auditor.Query(opts)
	if err != nil {
		log.Printf("[rest] audit query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to query audit log")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
