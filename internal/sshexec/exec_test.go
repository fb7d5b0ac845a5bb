package sshexec

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/sshclient"
	"github.com/gluk-w/mcp-ssh/internal/sshtest"
)

func dialTestServer(t *testing.T, opts sshtest.Options) (*sshtest.Server, *ssh.Client) {
	t.Helper()
	srv := sshtest.NewServer(t, opts)
	ep := config.Endpoint{Host: srv.Host, Port: srv.Port, Username: srv.User, Password: srv.Password}
	client, err := sshclient.Dial(context.Background(), ep, sshclient.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("dial test server: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestExecuteCapturesOutput(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{})

	res, err := Execute(client, "echo hi; echo oops >&2", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stdout != "hi\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{})

	res, err := Execute(client, "exit 3", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestExecuteMissingExitStatus(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{
		Exec: func(cmd string) (string, string, int) { return "partial", "", -1 },
	})

	res, err := Execute(client, "anything", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != NoExitStatus {
		t.Errorf("expected %d, got %d", NoExitStatus, res.ExitCode)
	}
	if res.Stdout != "partial" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestExecuteWithCwd(t *testing.T) {
	srv, client := dialTestServer(t, sshtest.Options{
		Exec: func(cmd string) (string, string, int) { return "", "", 0 },
	})

	if _, err := Execute(client, "ls", "/var/it's here"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cmds := srv.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	want := `cd '/var/it'\''s here' && ls`
	if cmds[0] != want {
		t.Errorf("command = %q, want %q", cmds[0], want)
	}
}

func TestExecuteCwdRunsInDirectory(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	res, err := Execute(client, "pwd", dir)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", res.Stdout, dir)
	}
}

func TestExecuteClosedClient(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{})
	client.Close()

	if _, err := Execute(client, "true", ""); err == nil {
		t.Error("expected error on closed client")
	}
}

func TestExecuteNilClient(t *testing.T) {
	if _, err := Execute(nil, "true", ""); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestListDirectory(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "ls -la '.'"},
		{"/tmp", "ls -la '/tmp'"},
		{"~", "ls -la ~"},
		{"~/", "ls -la ~/"},
		{"~/my dir", "ls -la ~/'my dir'"},
		{"; rm -rf /", "ls -la '; rm -rf /'"},
	}

	srv, client := dialTestServer(t, sshtest.Options{
		Exec: func(cmd string) (string, string, int) { return "total 0\n", "", 0 },
	})
	for _, tt := range tests {
		if _, err := ListDirectory(client, tt.path); err != nil {
			t.Fatalf("ListDirectory(%q): %v", tt.path, err)
		}
	}

	cmds := srv.Commands()
	if len(cmds) != len(tests) {
		t.Fatalf("expected %d commands, got %d", len(tests), len(cmds))
	}
	for i, tt := range tests {
		if cmds[i] != tt.want {
			t.Errorf("path %q: command = %q, want %q", tt.path, cmds[i], tt.want)
		}
	}
}

func TestListDirectoryMissing(t *testing.T) {
	_, client := dialTestServer(t, sshtest.Options{})

	res, err := ListDirectory(client, "/definitely/not/here")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if res.ExitCode == 0 || res.Stderr == "" {
		t.Errorf("expected failure exit and stderr, got %+v", res)
	}
}

func TestCombined(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"stdout only", Result{Stdout: "out"}, "out"},
		{"both", Result{Stdout: "out", Stderr: "err"}, "out\n\nErrors:\nerr"},
		{"stderr only", Result{Stderr: "err"}, "\n\nErrors:\nerr"},
		{"empty", Result{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Combined(); got != tt.want {
				t.Errorf("Combined() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/root", "'/root'"},
		{"/path/with spaces", "'/path/with spaces'"},
		{"/it's", `'/it'\''s'`},
		{"", "''"},
		{"$(whoami)", "'$(whoami)'"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.input); got != tt.expected {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
