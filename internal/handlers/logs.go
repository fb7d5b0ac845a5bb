package handlers

import (
	"net/http"
	"strconv"

	"github.com/gluk-w/mcp-ssh/internal/logging"
)

// ServerLogs returns the tail of the adapter's log file. The "lines" query
// parameter defaults to 200.
func (a *API) ServerLogs(w http.ResponseWriter, r *http.Request) {
	lines := 200
	if q := r.URL.Query().Get("lines"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			lines = n
		}
	}

	content, err := logging.ReadTail(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": content})
}
