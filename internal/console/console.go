// Package console implements the interactive line mode (--cli) and the
// connection smoke test (--check). Both work on the default session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gluk-w/mcp-ssh/internal/dispatch"
)

// Run connects the default session, then executes each line read from in as
// a remote command. Command stdout goes to out and stderr to errOut, followed
// by a newline. "exit" or end of input stops the loop.
func Run(ctx context.Context, d *dispatch.Dispatcher, in io.Reader, out, errOut io.Writer) error {
	if res, err := d.Connect(ctx, dispatch.ConnectRequest{}); err != nil {
		fmt.Fprintf(errOut, "Connection error: %v\n", err)
	} else {
		fmt.Fprintf(out, "Connected to %s:%d\n", res.Host, res.Port)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if !d.Manager().Has(dispatch.DefaultID) {
			fmt.Fprintln(out, "Not connected to server")
			continue
		}

		res, err := d.Execute(ctx, dispatch.ExecRequest{ID: dispatch.DefaultID, Command: line})
		if err != nil {
			fmt.Fprintf(errOut, "Command error: %v\n", err)
			continue
		}
		io.WriteString(out, res.Stdout)
		io.WriteString(errOut, res.Stderr)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

const checkCommand = "whoami && hostname && uname -a"

// Check connects the default endpoint, runs a short identification command
// and prints the outcome. A failure is returned after printing the likely
// causes.
func Check(ctx context.Context, d *dispatch.Dispatcher, out io.Writer) error {
	ep, ok := d.DefaultEndpoint()
	if !ok {
		fmt.Fprintln(out, "✗ No default server configured (set SSH_HOST and SSH_USERNAME)")
		return fmt.Errorf("no default endpoint")
	}
	fmt.Fprintf(out, "Testing SSH connection to %s...\n\n", ep.Addr())

	_, err := d.Connect(ctx, dispatch.ConnectRequest{})
	if err != nil {
		fmt.Fprintf(out, "✗ Connection failed: %v\n\n", err)
		fmt.Fprintln(out, "Please check:")
		fmt.Fprintln(out, "1. The server is reachable on the configured host and port")
		fmt.Fprintln(out, "2. SSH is running on the server")
		fmt.Fprintln(out, "3. The username and credentials are correct")
		fmt.Fprintln(out, "4. No firewall is blocking the connection")
		return err
	}
	fmt.Fprintln(out, "✓ Connection successful!")

	info, err := d.Execute(ctx, dispatch.ExecRequest{ID: dispatch.DefaultID, Command: checkCommand})
	if err != nil {
		fmt.Fprintf(out, "✗ Command execution failed: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "Server Information:")
	fmt.Fprintln(out, "==================")
	fmt.Fprint(out, info.Combined())
	if info.ExitCode != 0 {
		fmt.Fprintf(out, "\n✗ Command exited with code %d\n", info.ExitCode)
		return fmt.Errorf("check command exited with code %d", info.ExitCode)
	}
	fmt.Fprintln(out, "\n✓ Connection tests completed successfully!")
	return nil
}
