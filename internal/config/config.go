// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the session token and database
// password go to the OS keychain.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"universalmcp/cli/internal/xdg"

	"gopkg.in/yaml.v3"
)

// Transports understood by backend.New.
const (
	TransportHTTP     = "http"
	TransportGRPC     = "grpc"
	TransportPostgres = "postgres"
)

// Environment variables that override file settings.
const (
	EnvBaseURL     = "UMCP_BASE_URL"
	EnvTransport   = "UMCP_TRANSPORT"
	EnvDatabaseURL = "UMCP_DATABASE_URL"
	EnvLogLevel    = "UMCP_LOG_LEVEL"
	EnvKeyringPass = "UMCP_KEYRING_PASSWORD"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
	Backend   BackendConfig  `yaml:"backend"`
	GRPC      GRPCConfig     `yaml:"grpc"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Session   SessionConfig  `yaml:"session"`
	Keyring   KeyringConfig  `yaml:"keyring"`
}

// BackendConfig selects the credential service and its HTTP surface.
type BackendConfig struct {
	Transport string        `yaml:"transport"`
	BaseURL   string        `yaml:"base_url"`
	Endpoints Endpoints     `yaml:"endpoints"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// Endpoints are paths relative to BackendConfig.BaseURL.
type Endpoints struct {
	Login   string `yaml:"login"`
	Me      string `yaml:"me"`
	Logout  string `yaml:"logout"`
	Version string `yaml:"version"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Address  string `yaml:"address"`
	Insecure bool   `yaml:"insecure"`
}

// PostgresConfig configures the direct database transport. The DSN may be
// left empty here and kept in the keychain instead.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	LoginTimeout time.Duration `yaml:"login_timeout"`
}

// KeyringConfig selects keyring backends.
type KeyringConfig struct {
	Backends []string `yaml:"backends,omitempty"`
	FileDir  string   `yaml:"file_dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Backend: BackendConfig{
			Transport: TransportHTTP,
			BaseURL:   "https://api.universal-mcp.dev",
			Endpoints: Endpoints{
				Login:   "/v1/auth/login",
				Me:      "/v1/auth/me",
				Logout:  "/v1/auth/logout",
				Version: "/v1/version",
			},
			Timeout:  15 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
		Session: SessionConfig{LoginTimeout: 30 * time.Second},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path (or the default location when empty).
// A missing file yields defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	c, err := LoadFile(path)
	if err != nil {
		return c, err
	}
	c.applyEnv()
	c.normalize()
	return c, nil
}

// LoadFile reads configuration from path (or the default location when
// empty) without environment overrides. It is the base for Save, so that
// values set in the environment are never written to disk.
func LoadFile(path string) (Config, error) {
	c := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return c, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, err
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.normalize()
	return c, nil
}

// normalize makes an empty transport mean http, as backend.New does.
func (c *Config) normalize() {
	c.Backend.Transport = strings.ToLower(strings.TrimSpace(c.Backend.Transport))
	if c.Backend.Transport == "" {
		c.Backend.Transport = TransportHTTP
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvTransport); v != "" {
		c.Backend.Transport = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Session.LoginTimeout < 0 {
		return errors.New("session.login_timeout must not be negative")
	}
	if c.Backend.CacheTTL < 0 {
		return errors.New("backend.cache_ttl must not be negative")
	}

	switch strings.ToLower(c.Backend.Transport) {
	case TransportHTTP:
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
		}
		if c.Backend.Endpoints.Login == "" || c.Backend.Endpoints.Me == "" {
			return errors.New("backend.endpoints.login and backend.endpoints.me are required")
		}
	case TransportGRPC:
		if c.GRPC.Address == "" {
			return errors.New("grpc.address is required for the grpc transport")
		}
	case TransportPostgres:
		// The DSN may come from the keychain; checked when the transport is built.
	default:
		return fmt.Errorf("backend.transport must be http, grpc or postgres, got %q", c.Backend.Transport)
	}
	return nil
}

// Save writes configuration with 0600 permissions.
func Save(path string, c Config) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
