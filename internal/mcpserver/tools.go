package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool names.
const (
	ToolConnect     = "ssh_connect"
	ToolExecute     = "ssh_execute"
	ToolUpload      = "ssh_upload"
	ToolDownload    = "ssh_download"
	ToolListDir     = "ssh_list_dir"
	ToolListFiles   = "ssh_list_files"
	ToolDisconnect  = "ssh_disconnect"
	ToolStatus      = "ssh_status"
	ToolConnections = "ssh_connections"
)

const idDescription = "Connection ID (default: \"default\")"

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func schema(required []string, props map[string]any) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// catalog returns the tool definitions in the order tools/list reports them.
func catalog() []mcp.Tool {
	listProps := func(defaultPath string) map[string]any {
		return map[string]any{
			"id":   str(idDescription),
			"path": str("Directory path to list (default: " + defaultPath + ")"),
		}
	}
	return []mcp.Tool{
		{
			Name:        ToolConnect,
			Description: "Connect to an SSH server. Without host, connects the configured default server.",
			InputSchema: schema(nil, map[string]any{
				"id":         str(idDescription),
				"host":       str("Hostname or IP address"),
				"port":       num("SSH port (default: 22)"),
				"username":   str("Username"),
				"password":   str("Password"),
				"privateKey": str("Private key (PEM) or path to a private key file"),
				"passphrase": str("Passphrase for an encrypted private key"),
				"profile":    str("Name of a configured connection profile"),
			}),
		},
		{
			Name:        ToolExecute,
			Description: "Execute a command on the remote server and return stdout, stderr and the exit code.",
			InputSchema: schema([]string{"command"}, map[string]any{
				"id":      str(idDescription),
				"command": str("Command to execute"),
				"cwd":     str("Working directory for the command"),
			}),
		},
		{
			Name:        ToolUpload,
			Description: "Upload a local file to the remote server over SFTP.",
			InputSchema: schema([]string{"localPath", "remotePath"}, map[string]any{
				"id":         str(idDescription),
				"localPath":  str("Local file path"),
				"remotePath": str("Remote destination path"),
			}),
		},
		{
			Name:        ToolDownload,
			Description: "Download a file from the remote server over SFTP. Missing local directories are created.",
			InputSchema: schema([]string{"remotePath", "localPath"}, map[string]any{
				"id":         str(idDescription),
				"remotePath": str("Remote file path"),
				"localPath":  str("Local destination path"),
			}),
		},
		{
			Name:        ToolListDir,
			Description: "List the contents of a remote directory (ls -la).",
			InputSchema: schema(nil, listProps(".")),
		},
		{
			Name:        ToolListFiles,
			Description: "List files in a remote directory (ls -la). Defaults to the home directory.",
			InputSchema: schema(nil, listProps("~")),
		},
		{
			Name:        ToolDisconnect,
			Description: "Close an SSH connection.",
			InputSchema: schema(nil, map[string]any{
				"id": str(idDescription),
			}),
		},
		{
			Name:        ToolStatus,
			Description: "Report whether a connection is open, its server and recent connection events.",
			InputSchema: schema(nil, map[string]any{
				"id": str(idDescription),
			}),
		},
		{
			Name:        ToolConnections,
			Description: "List the IDs of all open connections.",
			InputSchema: schema(nil, map[string]any{}),
		},
	}
}
