package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/dispatch"
)

func (s *Server) handlers() map[string]server.ToolHandlerFunc {
	return map[string]server.ToolHandlerFunc{
		ToolConnect:     s.handleConnect,
		ToolExecute:     s.handleExecute,
		ToolUpload:      s.handleUpload,
		ToolDownload:    s.handleDownload,
		ToolListDir:     s.listHandler("."),
		ToolListFiles:   s.listHandler("~"),
		ToolDisconnect:  s.handleDisconnect,
		ToolStatus:      s.handleStatus,
		ToolConnections: s.handleConnections,
	}
}

type invalidParamsKey struct{}

// invalidParams receives an argument error raised by a tool handler. mcp-go
// reports every handler error as -32603; handleLine answers these with
// -32602 instead.
type invalidParams struct {
	err error
}

func reportInvalidParams(h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, req)
		if err != nil && dispatch.KindOf(err) == dispatch.KindInvalidParams {
			if slot, ok := ctx.Value(invalidParamsKey{}).(*invalidParams); ok {
				slot.err = err
			}
		}
		return res, err
	}
}

func (s *Server) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ep := config.Endpoint{
		Host:       req.GetString("host", ""),
		Port:       req.GetInt("port", 0),
		Username:   req.GetString("username", ""),
		Password:   req.GetString("password", ""),
		Passphrase: req.GetString("passphrase", ""),
	}
	if key := req.GetString("privateKey", ""); key != "" {
		if strings.Contains(key, "-----BEGIN") {
			ep.PrivateKey = key
		} else {
			ep.PrivateKeyPath = key
		}
	}

	res, err := s.dispatcher.Connect(ctx, dispatch.ConnectRequest{
		ID:       req.GetString("id", ""),
		Profile:  req.GetString("profile", ""),
		Endpoint: ep,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(res, fmt.Sprintf("%s (connection ID: %s)", res.Message, res.ID)), nil
}

func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return nil, err
	}
	res, err := s.dispatcher.Execute(ctx, dispatch.ExecRequest{
		ID:      req.GetString("id", ""),
		Command: command,
		Cwd:     req.GetString("cwd", ""),
	})
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Command output:\n%s\n\nExit code: %d", res.Combined(), res.ExitCode)
	return mcp.NewToolResultStructured(res, text), nil
}

func (s *Server) handleUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Upload(ctx, transferRequest(req))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(res, res.Message), nil
}

func (s *Server) handleDownload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.Download(ctx, transferRequest(req))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(res, res.Message), nil
}

func transferRequest(req mcp.CallToolRequest) dispatch.TransferRequest {
	return dispatch.TransferRequest{
		ID:         req.GetString("id", ""),
		LocalPath:  req.GetString("localPath", ""),
		RemotePath: req.GetString("remotePath", ""),
	}
}

func (s *Server) listHandler(defaultPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.dispatcher.List(ctx, dispatch.ListRequest{
			ID:   req.GetString("id", ""),
			Path: req.GetString("path", defaultPath),
		})
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultStructured(res, fmt.Sprintf("Directory listing for %s:\n%s", res.Path, res.Output)), nil
	}
}

func (s *Server) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := s.dispatcher.Disconnect(ctx, req.GetString("id", ""))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.dispatcher.Status(req.GetString("id", ""))
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return mcp.NewToolResultStructured(st, string(data)), nil
}

func (s *Server) handleConnections(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := s.dispatcher.Connections()
	text := "No active connections"
	if len(ids) > 0 {
		text = "Active connections: " + strings.Join(ids, ", ")
	}
	return mcp.NewToolResultStructured(map[string]any{
		"connections": ids,
		"count":       len(ids),
	}, text), nil
}
