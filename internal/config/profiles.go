package config

import (
	"fmt"
	"os"

	"github.com/fernet/fernet-go"
	"gopkg.in/yaml.v3"

	"github.com/gluk-w/mcp-ssh/internal/secrets"
)

type profilesFile struct {
	Profiles map[string]Endpoint `yaml:"profiles"`
}

// LoadProfiles reads named connection presets from a YAML file. An empty path
// yields an empty set. Sealed credentials (see package secrets) are opened
// with key, which may be empty when the file holds none.
func LoadProfiles(path, key string) (map[string]Endpoint, error) {
	if path == "" {
		return map[string]Endpoint{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data, key)
}

// ParseProfiles decodes the profiles document, opens sealed credentials and
// validates every entry.
func ParseProfiles(data []byte, key string) (map[string]Endpoint, error) {
	var k *fernet.Key
	if key != "" {
		var err error
		if k, err = secrets.ParseKey(key); err != nil {
			return nil, fmt.Errorf("profiles key: %w", err)
		}
	}

	var doc profilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	out := make(map[string]Endpoint, len(doc.Profiles))
	for name, ep := range doc.Profiles {
		for _, field := range []*string{&ep.Password, &ep.Passphrase, &ep.PrivateKey} {
			plain, err := secrets.Open(*field, k)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", name, err)
			}
			*field = plain
		}
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		out[name] = ep
	}
	return out, nil
}
