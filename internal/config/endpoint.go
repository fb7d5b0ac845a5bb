package config

import (
	"fmt"
	"net"
	"strconv"
)

// DefaultSSHPort is used when an endpoint leaves the port unset.
const DefaultSSHPort = 22

// Endpoint describes where and how to open an SSH connection.
type Endpoint struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Username       string `yaml:"username" json:"username"`
	Password       string `yaml:"password" json:"-"`
	PrivateKey     string `yaml:"privateKey" json:"-"`
	PrivateKeyPath string `yaml:"privateKeyPath" json:"-"`
	Passphrase     string `yaml:"passphrase" json:"-"`
	UseAgent       bool   `yaml:"useAgent" json:"-"`
}

// Validate fills the default port and checks the required fields.
func (e *Endpoint) Validate() error {
	if e.Port == 0 {
		e.Port = DefaultSSHPort
	}
	if e.Host == "" {
		return fmt.Errorf("host is empty")
	}
	if e.Username == "" {
		return fmt.Errorf("username is empty")
	}
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d", e.Port)
	}
	return nil
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// Public returns a copy with every credential field cleared.
func (e Endpoint) Public() Endpoint {
	return Endpoint{Host: e.Host, Port: e.Port, Username: e.Username}
}

// AuthKind names the credential the endpoint will try first. Used for logs.
func (e Endpoint) AuthKind() string {
	switch {
	case e.PrivateKey != "" || e.PrivateKeyPath != "":
		return "private key"
	case e.UseAgent:
		return "agent"
	case e.Password != "":
		return "password"
	default:
		return "none"
	}
}
