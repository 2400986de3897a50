// Package config holds the MAAS connection and deployment user settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment and file keys understood by the MAAS configuration
const (
	EnvMAASURL  = "MAAS_URL"
	EnvAPIKey   = "API_KEY"
	EnvPools    = "POOLS"
	EnvUsername = "USERNAME"
	EnvPassword = "PASSWORD"

	// DefaultPool is the only visible pool when POOLS is not configured
	DefaultPool = "default"
)

// MAASConfig represents the connection settings for the MAAS controller
type MAASConfig struct {
	URL    string
	APIKey string
	Pools  []string
}

// UserCredentials is the user created on deployed machines through cloud-init
type UserCredentials struct {
	Username string
	Password string
}

// Configured reports whether a deployment user should be created
func (u *UserCredentials) Configured() bool {
	return u != nil && u.Username != "" && u.Password != ""
}

// Source resolves configuration keys from the environment first and then
// from a key=value file such as maas.conf.
type Source struct {
	file map[string]string
}

// NewSource reads the optional key=value files. Missing files are skipped.
func NewSource(paths ...string) (*Source, error) {
	values := map[string]string{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		fileValues, err := godotenv.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range fileValues {
			if _, exists := values[k]; !exists {
				values[k] = v
			}
		}
	}
	return &Source{file: values}, nil
}

// Get returns the value for key, env taking precedence over files
func (s *Source) Get(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.file[key])
}

// NewMAASConfig builds the MAAS configuration from src
func NewMAASConfig(src *Source) *MAASConfig {
	return &MAASConfig{
		URL:    strings.TrimRight(src.Get(EnvMAASURL), "/"),
		APIKey: src.Get(EnvAPIKey),
		Pools:  ParsePools(src.Get(EnvPools)),
	}
}

// NewUserCredentials returns the deployment user, or nil when none is configured
func NewUserCredentials(src *Source) *UserCredentials {
	creds := &UserCredentials{
		Username: src.Get(EnvUsername),
		Password: src.Get(EnvPassword),
	}
	if creds.Username == "" && creds.Password == "" {
		return nil
	}
	return creds
}

// ParsePools splits a comma-separated pool list, defaulting to the "default" pool
func ParsePools(raw string) []string {
	var pools []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pools = append(pools, p)
		}
	}
	if len(pools) == 0 {
		return []string{DefaultPool}
	}
	return pools
}

// Configured reports whether enough settings exist to reach MAAS
func (c *MAASConfig) Configured() bool {
	return c != nil && c.URL != "" && c.APIKey != ""
}

// Validate validates the MAAS configuration
func (c *MAASConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%s is required", EnvMAASURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s is required", EnvAPIKey)
	}
	if len(strings.Split(c.APIKey, ":")) != 3 {
		return fmt.Errorf("invalid %s format: expected consumer_key:token_key:token_secret", EnvAPIKey)
	}
	return nil
}
