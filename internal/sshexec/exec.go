// Package sshexec runs shell commands on a connected *ssh.Client.
//
// Every call opens a fresh session on the shared connection, collects the
// complete stdout and stderr and reports the exit status. A non-zero exit
// status is a normal result, not an error; errors are reserved for transport
// failures such as a refused session or a dropped connection.
package sshexec

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// NoExitStatus is reported when the remote side closed the channel without
// sending an exit status.
const NoExitStatus = -1

const slowCommandThreshold = 500 * time.Millisecond

// Result is the captured outcome of one remote command.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// Combined renders stdout followed by a labelled stderr section, the way
// command output is shown to callers that receive a single text block.
func (r *Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n\nErrors:\n" + r.Stderr
}

// Execute runs command on client. When cwd is non-empty the command runs in
// that directory.
func Execute(client *ssh.Client, command, cwd string) (*Result, error) {
	if client == nil {
		return nil, errors.New("execute: no ssh client")
	}
	cmd := command
	if cwd != "" {
		cmd = fmt.Sprintf("cd %s && %s", shellQuote(cwd), command)
	}
	return run(client, cmd)
}

func run(client *ssh.Client, cmd string) (*Result, error) {
	start := time.Now()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	elapsed := time.Since(start)

	if elapsed > slowCommandThreshold {
		log.Printf("[ssh] SLOW command (%s): %s", elapsed, logutil.SanitizeForLog(logutil.Truncate(cmd, 80)))
	}

	res := &Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if runErr != nil {
		var exitErr *ssh.ExitError
		var missing *ssh.ExitMissingError
		switch {
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitStatus()
		case errors.As(runErr, &missing):
			res.ExitCode = NoExitStatus
		default:
			return nil, fmt.Errorf("run command: %w", runErr)
		}
	}
	return res, nil
}

// ListDirectory runs "ls -la" on path. An empty path lists the login
// directory's current directory.
func ListDirectory(client *ssh.Client, path string) (*Result, error) {
	if path == "" {
		path = "."
	}
	return Execute(client, "ls -la "+quotePath(path), "")
}

// quotePath quotes p for the shell but leaves a leading "~" or "~/" outside
// the quotes so the remote shell still expands it.
func quotePath(p string) string {
	switch {
	case p == "~":
		return "~"
	case strings.HasPrefix(p, "~/"):
		rest := p[2:]
		if rest == "" {
			return "~/"
		}
		return "~/" + shellQuote(rest)
	default:
		return shellQuote(p)
	}
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
