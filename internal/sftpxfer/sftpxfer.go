// Package sftpxfer copies files between the local filesystem and a remote
// host over the SFTP subsystem of an existing SSH connection.
package sftpxfer

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// ErrLocalFileNotFound is returned by Upload when the local source does not
// exist. No remote I/O has happened when it is returned.
var ErrLocalFileNotFound = errors.New("local file does not exist")

// ErrLocalNotRegular is returned by Upload when the local source is a
// directory.
var ErrLocalNotRegular = errors.New("local path is a directory")

// CheckLocalFile reports whether localPath names an existing regular file,
// returning an error wrapping ErrLocalFileNotFound when it does not exist.
func CheckLocalFile(localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLocalFileNotFound, localPath)
		}
		return fmt.Errorf("stat local file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrLocalNotRegular, localPath)
	}
	return nil
}

// Upload copies localPath to remotePath and returns the number of bytes
// written. An existing remote file is truncated.
func Upload(client *ssh.Client, localPath, remotePath string) (int64, error) {
	start := time.Now()

	if err := CheckLocalFile(localPath); err != nil {
		return 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open local file: %w", err)
	}
	defer src.Close()

	sc, err := newClient(client)
	if err != nil {
		return 0, err
	}
	defer sc.Close()

	target, err := resolveRemote(sc, remotePath)
	if err != nil {
		return 0, err
	}
	dst, err := sc.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create remote file %s: %w", target, err)
	}

	n, err := dst.ReadFrom(src)
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("write remote file %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("close remote file %s: %w", target, err)
	}

	log.Printf("[sftp] uploaded %s -> %s (%d bytes) in %s",
		logutil.SanitizeForLog(localPath), logutil.SanitizeForLog(target), n, time.Since(start))
	return n, nil
}

// Download copies remotePath to localPath, creating missing parent
// directories of localPath. A failed transfer leaves no partial local file.
func Download(client *ssh.Client, remotePath, localPath string) (n int64, err error) {
	start := time.Now()

	sc, err := newClient(client)
	if err != nil {
		return 0, err
	}
	defer sc.Close()

	source, err := resolveRemote(sc, remotePath)
	if err != nil {
		return 0, err
	}
	src, err := sc.Open(source)
	if err != nil {
		return 0, fmt.Errorf("open remote file %s: %w", source, err)
	}
	defer src.Close()

	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create local directory: %w", err)
		}
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create local file: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close local file: %w", cerr)
		}
		if err != nil {
			os.Remove(localPath)
		}
	}()

	n, err = src.WriteTo(dst)
	if err != nil {
		return n, fmt.Errorf("read remote file %s: %w", source, err)
	}

	log.Printf("[sftp] downloaded %s -> %s (%d bytes) in %s",
		logutil.SanitizeForLog(source), logutil.SanitizeForLog(localPath), n, time.Since(start))
	return n, nil
}

func newClient(client *ssh.Client) (*sftp.Client, error) {
	if client == nil {
		return nil, errors.New("sftp: no ssh client")
	}
	sc, err := sftp.NewClient(client, sftp.UseConcurrentWrites(true), sftp.UseConcurrentReads(true))
	if err != nil {
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}
	return sc, nil
}

// resolveRemote expands a leading "~" against the SFTP server's working
// directory, which is the login user's home on common servers.
func resolveRemote(sc *sftp.Client, p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := sc.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve remote home: %w", err)
	}
	return path.Join(home, strings.TrimPrefix(p, "~")), nil
}
