package sftpxfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/mcp-ssh/internal/config"
	"github.com/gluk-w/mcp-ssh/internal/sshclient"
	"github.com/gluk-w/mcp-ssh/internal/sshtest"
)

func dialTestServer(t *testing.T, opts sshtest.Options) *ssh.Client {
	t.Helper()
	srv := sshtest.NewServer(t, opts)
	ep := config.Endpoint{Host: srv.Host, Port: srv.Port, Username: srv.User, Password: srv.Password}
	client, err := sshclient.Dial(context.Background(), ep, sshclient.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("dial test server: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB
	local := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(local, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	remote := filepath.Join(dir, "remote.bin")
	n, err := Upload(client, local, remote)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("uploaded %d bytes, want %d", n, len(payload))
	}

	back := filepath.Join(dir, "nested", "deeper", "back.bin")
	n, err = Download(client, remote, back)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("downloaded %d bytes, want %d", n, len(payload))
	}
	got, err := os.ReadFile(back)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded content differs from uploaded content")
	}
}

func TestUploadOverwrites(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	remote := filepath.Join(dir, "remote.txt")
	if err := os.WriteFile(remote, []byte("a much longer previous content"), 0o644); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(dir, "local.txt")
	if err := os.WriteFile(local, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Upload(client, local, remote); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	got, _ := os.ReadFile(remote)
	if string(got) != "short" {
		t.Errorf("remote content = %q", got)
	}
}

func TestUploadEmptyFile(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	local := filepath.Join(dir, "empty")
	if err := os.WriteFile(local, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := Upload(client, local, filepath.Join(dir, "empty.remote"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 bytes, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.remote")); err != nil {
		t.Errorf("remote file missing: %v", err)
	}
}

func TestUploadLocalFileMissing(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})

	dir := t.TempDir()
	remote := filepath.Join(dir, "never")
	_, err := Upload(client, filepath.Join(dir, "missing.txt"), remote)
	if !errors.Is(err, ErrLocalFileNotFound) {
		t.Fatalf("expected ErrLocalFileNotFound, got %v", err)
	}
	if _, statErr := os.Stat(remote); !os.IsNotExist(statErr) {
		t.Error("no remote file should be created")
	}
}

func TestUploadDirectoryRejected(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	_, err := Upload(client, dir, filepath.Join(dir, "x"))
	if !errors.Is(err, ErrLocalNotRegular) {
		t.Fatalf("expected ErrLocalNotRegular, got %v", err)
	}
}

func TestUploadRemoteDirMissing(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	local := filepath.Join(dir, "a.txt")
	os.WriteFile(local, []byte("x"), 0o644)

	if _, err := Upload(client, local, filepath.Join(dir, "no", "such", "dir", "a.txt")); err == nil {
		t.Error("expected error for missing remote directory")
	}
}

func TestDownloadRemoteMissing(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{})
	dir := t.TempDir()

	local := filepath.Join(dir, "out.txt")
	if _, err := Download(client, filepath.Join(dir, "missing.txt"), local); err == nil {
		t.Fatal("expected error for missing remote file")
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Error("no local file should be left behind")
	}
}

func TestSFTPUnavailable(t *testing.T) {
	client := dialTestServer(t, sshtest.Options{DisableSFTP: true})
	dir := t.TempDir()

	local := filepath.Join(dir, "a.txt")
	os.WriteFile(local, []byte("x"), 0o644)

	if _, err := Upload(client, local, filepath.Join(dir, "b.txt")); err == nil {
		t.Error("expected error when sftp subsystem is refused")
	}
	if _, err := Download(client, local, filepath.Join(dir, "c.txt")); err == nil {
		t.Error("expected error when sftp subsystem is refused")
	}
}

func TestNilClient(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "a.txt")
	os.WriteFile(local, []byte("x"), 0o644)

	if _, err := Upload(nil, local, "/tmp/x"); err == nil {
		t.Error("expected error for nil client")
	}
}
