package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gluk-w/mcp-ssh/internal/secrets"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SSH_HOST", "SSH_PORT", "SSH_USERNAME", "SSH_PASSWORD", "SSH_SERVER_PORT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	Cfg = Settings{}
	Load()

	if Cfg.Port != 22 {
		t.Errorf("expected default port 22, got %d", Cfg.Port)
	}
	if Cfg.ConnectTimeout != 20*time.Second {
		t.Errorf("expected 20s connect timeout, got %s", Cfg.ConnectTimeout)
	}
	if Cfg.Password != "" {
		t.Error("password must not have a built-in default")
	}
	if _, ok := Cfg.DefaultEndpoint(); ok {
		t.Error("default endpoint should be unconfigured without SSH_HOST")
	}
	if Cfg.ListenAddr() != "127.0.0.1:3000" {
		t.Errorf("expected 127.0.0.1:3000, got %s", Cfg.ListenAddr())
	}
}

func TestLoadUnprefixedSSHVariables(t *testing.T) {
	t.Setenv("SSH_HOST", "10.0.0.5")
	t.Setenv("SSH_PORT", "2222")
	t.Setenv("SSH_USERNAME", "deploy")
	t.Setenv("SSH_PASSWORD", "secret")
	Cfg = Settings{}
	Load()

	ep, ok := Cfg.DefaultEndpoint()
	if !ok {
		t.Fatal("expected default endpoint to be configured")
	}
	if ep.Addr() != "10.0.0.5:2222" {
		t.Errorf("unexpected addr %s", ep.Addr())
	}
	if ep.AuthKind() != "password" {
		t.Errorf("expected password auth, got %s", ep.AuthKind())
	}
}

func TestPrefixedVariableWins(t *testing.T) {
	t.Setenv("SSH_HOST", "plain")
	t.Setenv("SSHMCP_SSH_HOST", "prefixed")
	Cfg = Settings{}
	Load()
	if Cfg.Host != "prefixed" {
		t.Errorf("expected prefixed host, got %q", Cfg.Host)
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		port string
		want string
	}{
		{"3000", "127.0.0.1:3000"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
		{":8080", ":8080"},
		{"0.0.0.0:8080", "0.0.0.0:8080"},
	}
	for _, tt := range tests {
		if got := (Settings{ServerPort: tt.port}).ListenAddr(); got != tt.want {
			t.Errorf("ListenAddr(%q) = %s, want %s", tt.port, got, tt.want)
		}
	}
}

func TestEndpointValidate(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr string
	}{
		{"ok", Endpoint{Host: "h", Username: "u"}, ""},
		{"no host", Endpoint{Username: "u"}, "host is empty"},
		{"no user", Endpoint{Host: "h"}, "username is empty"},
		{"bad port", Endpoint{Host: "h", Username: "u", Port: 70000}, "invalid port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ep.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tt.ep.Port != DefaultSSHPort {
					t.Errorf("expected port defaulted to 22, got %d", tt.ep.Port)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPublicStripsSecrets(t *testing.T) {
	ep := Endpoint{Host: "h", Port: 22, Username: "u", Password: "p", PrivateKey: "k", Passphrase: "x"}
	pub := ep.Public()
	if pub.Password != "" || pub.PrivateKey != "" || pub.Passphrase != "" {
		t.Errorf("Public leaked credentials: %+v", pub)
	}
	if pub.Host != "h" || pub.Username != "u" {
		t.Errorf("Public dropped identity fields: %+v", pub)
	}
}

func TestParseProfiles(t *testing.T) {
	doc := []byte(`
profiles:
  staging:
    host: 10.0.0.5
    username: deploy
    privateKeyPath: /keys/staging
  prod:
    host: prod.example.com
    port: 2200
    username: ops
`)
	profiles, err := ParseProfiles(doc, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles["staging"].Port != 22 {
		t.Errorf("expected staging port defaulted to 22, got %d", profiles["staging"].Port)
	}
	if profiles["prod"].Addr() != "prod.example.com:2200" {
		t.Errorf("unexpected prod addr %s", profiles["prod"].Addr())
	}
}

func TestParseProfilesInvalidEntry(t *testing.T) {
	_, err := ParseProfiles([]byte("profiles:\n  broken:\n    port: 22\n"), "")
	if err == nil || !strings.Contains(err.Error(), `profile "broken"`) {
		t.Errorf("expected profile validation error, got %v", err)
	}
}

func TestLoadProfilesEmptyPath(t *testing.T) {
	profiles, err := LoadProfiles("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err == nil {
		t.Error("expected error for missing profiles file")
	}
}

func TestParseProfilesSealedSecrets(t *testing.T) {
	keyStr, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	key, _ := secrets.ParseKey(keyStr)
	sealed, err := secrets.Seal("s3cret", key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	doc := []byte("profiles:\n  db:\n    host: 10.0.0.7\n    username: ops\n    password: \"" + sealed + "\"\n")

	profiles, err := ParseProfiles(doc, keyStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if profiles["db"].Password != "s3cret" {
		t.Errorf("expected decrypted password, got %q", profiles["db"].Password)
	}

	if _, err := ParseProfiles(doc, ""); !errors.Is(err, secrets.ErrNoKey) {
		t.Errorf("expected ErrNoKey without a key, got %v", err)
	}
	if _, err := ParseProfiles(doc, "bogus"); err == nil || !strings.Contains(err.Error(), "profiles key") {
		t.Errorf("expected key decode error, got %v", err)
	}
}
