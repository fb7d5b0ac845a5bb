// Package mcpserver exposes the dispatcher as MCP tools over line-delimited
// JSON-RPC 2.0 on a pair of streams (normally stdin and stdout).
//
// Protocol methods (initialize, tools/list, tools/call, ping) are answered by
// mcp-go's MCPServer. The stdio loop in front of it announces the server
// before the first request, turns unparseable lines into -32700 replies and
// checks tools/call arguments against the tool schemas so that an unknown
// tool or a bad argument is a -32602 reply rather than a failed call.
package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gluk-w/mcp-ssh/internal/dispatch"
	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// ServerName is reported in serverInfo.
const ServerName = "mcp-ssh"

const maxLineSize = 1024 * 1024

// Server is the MCP front end.
type Server struct {
	dispatcher *dispatch.Dispatcher
	mcp        *server.MCPServer
	version    string
	tools      map[string]mcp.Tool
}

// New registers every tool on a fresh MCPServer.
func New(d *dispatch.Dispatcher, version string) *Server {
	s := &Server{
		dispatcher: d,
		version:    version,
		tools:      make(map[string]mcp.Tool),
		mcp: server.NewMCPServer(ServerName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	handlers := s.handlers()
	for _, tool := range catalog() {
		s.tools[tool.Name] = tool
		s.mcp.AddTool(tool, reportInvalidParams(handlers[tool.Name]))
	}
	return s
}

type announcement struct {
	JSONRPC string             `json:"jsonrpc"`
	Result  announcementResult `json:"result"`
}

type announcementResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    map[string]any     `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   errorBody       `json:"error"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Serve announces the server on out, then answers requests read from in
// until in reaches EOF or ctx is done. Each request is handled on its own
// goroutine; replies are written whole, one per line, in completion order.
// Serve returns after every in-flight request has been answered.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	w := &lineWriter{out: out}
	if err := w.write(s.announcement()); err != nil {
		return fmt.Errorf("write announcement: %w", err)
	}
	log.Printf("[mcp] %s %s ready on stdio (%d tools)", ServerName, s.version, len(s.tools))

	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go func() {
		r := bufio.NewReaderSize(in, 64*1024)
		for {
			line, err := readLine(r)
			if len(line.data) > 0 || line.oversize {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[mcp] shutting down: %v", ctx.Err())
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			log.Printf("[mcp] input closed")
			return nil
		case line := <-lines:
			if line.oversize {
				log.Printf("[mcp] discarded request line over %d bytes", maxLineSize)
				if err := w.write(newError(nil, mcp.PARSE_ERROR, "Parse error: request line too long")); err != nil {
					log.Printf("[mcp] write reply: %v", err)
				}
				continue
			}
			if len(bytes.TrimSpace(line.data)) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if reply := s.handleLine(ctx, line.data); reply != nil {
					if err := w.write(reply); err != nil {
						log.Printf("[mcp] write reply: %v", err)
					}
				}
			}()
		}
	}
}

// inputLine is one request line. An oversize line carries no data.
type inputLine struct {
	data     []byte
	oversize bool
}

// readLine reads up to the next newline. A line longer than maxLineSize is
// consumed to its end and returned as oversize. The final line may end at
// EOF without a newline; it is returned together with io.EOF.
func readLine(r *bufio.Reader) (inputLine, error) {
	var buf []byte
	oversize := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversize {
			n := len(buf) + len(chunk)
			if len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
				n--
			}
			if n > maxLineSize {
				oversize = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if oversize {
			return inputLine{oversize: true}, err
		}
		return inputLine{data: bytes.TrimRight(buf, "\r\n")}, err
	}
}

func (s *Server) announcement() announcement {
	return announcement{
		JSONRPC: mcp.JSONRPC_VERSION,
		Result: announcementResult{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      mcp.Implementation{Name: ServerName, Version: s.version},
		},
	}
}

// handleLine answers one line. A nil reply means nothing is written
// (notifications).
func (s *Server) handleLine(ctx context.Context, line []byte) any {
	if !json.Valid(line) {
		log.Printf("[mcp] parse error: %s", logutil.Truncate(string(line), 80))
		return newError(nil, mcp.PARSE_ERROR, "Parse error")
	}
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return newError(nil, mcp.INVALID_REQUEST, "Invalid Request")
	}

	if req.Method != string(mcp.MethodToolsCall) {
		return s.mcp.HandleMessage(ctx, line)
	}

	if code, msg, ok := s.validateCall(req.Params); !ok {
		log.Printf("[mcp] rejected tools/call: %s", logutil.SanitizeForLog(msg))
		return newError(req.ID, code, msg)
	}
	slot := &invalidParams{}
	reply := s.mcp.HandleMessage(context.WithValue(ctx, invalidParamsKey{}, slot), line)
	if slot.err != nil && reply != nil {
		return newError(req.ID, mcp.INVALID_PARAMS, slot.err.Error())
	}
	return reply
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// validateCall checks a tools/call against the tool's input schema.
func (s *Server) validateCall(raw json.RawMessage) (int, string, bool) {
	var params callParams
	if len(raw) == 0 || json.Unmarshal(raw, &params) != nil {
		return mcp.INVALID_PARAMS, "Invalid params: expected an object with a tool name", false
	}
	tool, ok := s.tools[params.Name]
	if !ok {
		return mcp.INVALID_PARAMS, "Unknown tool: " + params.Name, false
	}

	args := map[string]any{}
	if len(params.Arguments) > 0 && string(params.Arguments) != "null" {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return mcp.INVALID_PARAMS, "Invalid params: arguments must be an object", false
		}
	}
	if err := checkArguments(tool.InputSchema, args); err != nil {
		return mcp.INVALID_PARAMS, "Invalid params: " + err.Error(), false
	}
	return 0, "", true
}

func checkArguments(schema mcp.ToolInputSchema, args map[string]any) error {
	for _, name := range schema.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	for name, v := range args {
		prop, ok := schema.Properties[name].(map[string]any)
		if !ok || v == nil {
			continue
		}
		want, _ := prop["type"].(string)
		if !hasType(v, want) {
			return fmt.Errorf("argument %q must be a %s", name, want)
		}
	}
	return nil
}

func hasType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		_, ok := v.(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

func newError(id json.RawMessage, code int, msg string) errorResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return errorResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   errorBody{Code: code, Message: msg},
	}
}

// lineWriter writes one JSON value per line; concurrent writes never
// interleave.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(data)
	return err
}
