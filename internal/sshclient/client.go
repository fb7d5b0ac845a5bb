package sshclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// DefaultTimeout bounds the TCP dial and SSH handshake when Options leaves it unset.
const DefaultTimeout = 20 * time.Second

// Options controls how Dial reaches and verifies a server.
type Options struct {
	Timeout         time.Duration
	HostKeyCallback ssh.HostKeyCallback
}

var insecureWarning sync.Once

// HostKeyCallback returns a known_hosts verifier for path, or a callback that
// accepts any host key when path is empty.
func HostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		insecureWarning.Do(func() {
			log.Printf("[ssh] WARNING: no known_hosts file configured, host keys are not verified")
		})
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", logutil.SanitizeForLog(path), err)
	}
	return cb, nil
}

// AuthMethods builds the authentication chain for ep. The returned cleanup
// func releases the agent socket, if one was opened, and must be called once
// the handshake has finished.
func AuthMethods(ep config.Endpoint) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	cleanup := func() {}

	keyData := []byte(ep.PrivateKey)
	if len(keyData) == 0 && ep.PrivateKeyPath != "" {
		data, err := os.ReadFile(ep.PrivateKeyPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("read private key %s: %w", logutil.SanitizeForLog(ep.PrivateKeyPath), err)
		}
		keyData = data
	}
	if len(keyData) > 0 {
		signer, err := parseSigner(keyData, ep.Passphrase)
		if err != nil {
			return nil, cleanup, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if ep.UseAgent {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, cleanup, fmt.Errorf("ssh agent requested but SSH_AUTH_SOCK is not set")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to ssh agent: %w", err)
		}
		cleanup = func() { conn.Close() }
		methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
	}

	if ep.Password != "" {
		password := ep.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		cleanup()
		return nil, func() {}, fmt.Errorf("no authentication method configured (password, private key or agent)")
	}
	return methods, cleanup, nil
}

func parseSigner(keyData []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("parse private key: key is encrypted and no passphrase was given")
		}
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

// Dial opens an authenticated SSH connection to ep. The dial and handshake are
// abandoned when ctx is done or the timeout elapses.
func Dial(ctx context.Context, ep config.Endpoint, opts Options) (*ssh.Client, error) {
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	auth, cleanup, err := AuthMethods(ep)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer cleanup()

	hostKeyCallback := opts.HostKeyCallback
	if hostKeyCallback == nil {
		if hostKeyCallback, err = HostKeyCallback(""); err != nil {
			return nil, err
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}
	addr := ep.Addr()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", logutil.SanitizeForLog(addr), err)
	}
	conn.SetDeadline(time.Now().Add(timeout))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, fmt.Errorf("connect: context cancelled: %w", ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to %s: %w", logutil.SanitizeForLog(addr), err)
	}
	conn.SetDeadline(time.Time{})

	log.Printf("[ssh] connected to %s as %s using %s authentication",
		logutil.SanitizeForLog(addr), logutil.SanitizeForLog(ep.Username), ep.AuthKind())
	return ssh.NewClient(c, chans, reqs), nil
}
