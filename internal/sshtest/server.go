// Package sshtest runs an in-process SSH server for tests. It authenticates
// with a password or an authorized public key, executes "exec" requests with
// the local /bin/sh (or a caller-supplied function) and serves the "sftp"
// subsystem from the local filesystem.
package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ExecFunc handles one exec request. A negative exitCode closes the channel
// without sending an exit status.
type ExecFunc func(cmd string) (stdout, stderr string, exitCode int)

// Options configures a test server.
type Options struct {
	User          string
	Password      string
	AuthorizedKey ssh.PublicKey
	Exec          ExecFunc
	DisableSFTP   bool
}

// Server is a running test SSH server.
type Server struct {
	Addr     string
	Host     string
	Port     int
	User     string
	Password string
	HostKey  ssh.PublicKey

	opts     Options
	config   *ssh.ServerConfig
	listener net.Listener

	mu       sync.Mutex
	conns    []net.Conn
	commands []string
	wg       sync.WaitGroup
}

// NewServer starts a server on 127.0.0.1 and registers its shutdown with t.
func NewServer(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.User == "" {
		opts.User = "tester"
	}
	if opts.Password == "" && opts.AuthorizedKey == nil {
		opts.Password = "test-password"
	}
	if opts.Exec == nil {
		opts.Exec = ShellExec
	}

	hostSigner, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}

	s := &Server{
		User:     opts.User,
		Password: opts.Password,
		HostKey:  hostSigner.PublicKey(),
		opts:     opts,
	}

	s.config = &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if opts.Password != "" && conn.User() == opts.User && string(password) == opts.Password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if opts.AuthorizedKey != nil && conn.User() == opts.User &&
				bytes.Equal(key.Marshal(), opts.AuthorizedKey.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	s.config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = listener
	s.Addr = listener.Addr().String()
	host, port, _ := net.SplitHostPort(s.Addr)
	s.Host = host
	s.Port, _ = strconv.Atoi(port)

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Close stops the listener and drops every open connection.
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// Commands returns every exec command the server has received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// ConnectionCount reports how many TCP connections the server has accepted
// and not yet dropped.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.forget(conn)

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) forget(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			stdout, stderr, code := s.opts.Exec(payload.Command)
			io.WriteString(ch, stdout)
			io.WriteString(ch.Stderr(), stderr)
			if code >= 0 {
				ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)}))
			}
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" || s.opts.DisableSFTP {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			server, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			server.Serve()
			server.Close()
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// ShellExec runs cmd with the local /bin/sh.
func ShellExec(cmd string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	c := exec.Command("/bin/sh", "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode()
		}
		return stdout.String(), err.Error(), 127
	}
	return stdout.String(), stderr.String(), 0
}

// GenerateKey creates an ed25519 key pair and returns its signer and the
// OpenSSH PEM encoding of the private key.
func GenerateKey() (ssh.Signer, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, nil, err
	}
	return signer, pem.EncodeToMemory(block), nil
}

// GenerateEncryptedKey is GenerateKey with the PEM encrypted under passphrase.
func GenerateEncryptedKey(passphrase string) (ssh.Signer, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, err
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		return nil, nil, err
	}
	return signer, pem.EncodeToMemory(block), nil
}
