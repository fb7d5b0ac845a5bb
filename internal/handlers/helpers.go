package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gluk-w/mcp-ssh/internal/dispatch"
)

const maxBodySize = 1 << 20

const localFilesDisabled = "Local file access requires API_TOKEN to be set"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// writeOpError maps a dispatcher error to its HTTP status.
func writeOpError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch dispatch.KindOf(err) {
	case dispatch.KindInvalidParams, dispatch.KindLocalFileNotFound:
		return http.StatusBadRequest
	case dispatch.KindAlreadyExists:
		return http.StatusConflict
	case dispatch.KindNotFound:
		return http.StatusNotFound
	case dispatch.KindLimitReached:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (a *API) requireLocalFiles(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.localFiles {
			writeError(w, http.StatusForbidden, localFilesDisabled)
			return
		}
		next(w, r)
	}
}
