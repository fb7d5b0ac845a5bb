package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds the process configuration. SSH endpoint fields accept both
// the SSHMCP_-prefixed names and the plain SSH_* names.
type Settings struct {
	Host           string        `envconfig:"SSH_HOST" default:""`
	Port           int           `envconfig:"SSH_PORT" default:"22"`
	Username       string        `envconfig:"SSH_USERNAME" default:""`
	Password       string        `envconfig:"SSH_PASSWORD" default:""`
	PrivateKeyPath string        `envconfig:"SSH_PRIVATE_KEY_PATH" default:""`
	PrivateKey     string        `envconfig:"SSH_PRIVATE_KEY" default:""`
	Passphrase     string        `envconfig:"SSH_KEY_PASSPHRASE" default:""`
	UseAgent       bool          `envconfig:"SSH_USE_AGENT" default:"false"`
	KnownHostsPath string        `envconfig:"SSH_KNOWN_HOSTS" default:""`
	ConnectTimeout time.Duration `envconfig:"SSH_CONNECT_TIMEOUT" default:"20s"`
	MaxConnections int           `envconfig:"MAX_CONNECTIONS" default:"0"`

	// REST front end
	ServerPort string `envconfig:"SSH_SERVER_PORT" default:"3000"`
	APIToken   string `envconfig:"API_TOKEN" default:""`

	ProfilesPath string `envconfig:"PROFILES" default:""`
	// fernet key for "fernet:" values in the profiles file
	ProfilesKey string `envconfig:"PROFILES_KEY" default:""`
	LogPath      string `envconfig:"LOG_PATH" default:""`

	// Audit trail
	AuditDBPath        string `envconfig:"AUDIT_DB" default:""`
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
	AuditPurgeSchedule string `envconfig:"AUDIT_PURGE_SCHEDULE" default:"@daily"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("SSHMCP", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}

// ListenAddr returns the REST listen address. SSH_SERVER_PORT may be a bare
// port ("3000"), which binds the loopback interface, or a full host:port
// (":3000" for every interface).
func (s Settings) ListenAddr() string {
	if strings.Contains(s.ServerPort, ":") {
		return s.ServerPort
	}
	return "127.0.0.1:" + s.ServerPort
}

// DefaultEndpoint returns the preset endpoint assembled from the environment
// and whether one is configured at all.
func (s Settings) DefaultEndpoint() (Endpoint, bool) {
	ep := Endpoint{
		Host:           s.Host,
		Port:           s.Port,
		Username:       s.Username,
		Password:       s.Password,
		PrivateKey:     s.PrivateKey,
		PrivateKeyPath: s.PrivateKeyPath,
		Passphrase:     s.Passphrase,
		UseAgent:       s.UseAgent,
	}
	return ep, ep.Host != "" && ep.Username != ""
}
