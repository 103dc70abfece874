// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Dj-Codeman/dusa/lib/sealed"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "DUSA_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for installed daemons.
	Production Environment = "production"
)

// Config is the configuration shared by dusad and the dusa client.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment" json:"environment"`

	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`
	Vault  VaultConfig  `yaml:"vault" json:"vault"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Client ClientConfig `yaml:"client" json:"client"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty" json:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
// Empty strings leave the base value alone.
type Overrides struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	VaultRoot  string `yaml:"vault_root" json:"vault_root"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// DaemonConfig configures dusad.
type DaemonConfig struct {
	// SocketPath is where the daemon listens.
	// Default: /var/run/dusa/dusa.sock
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// ServiceAccount is the user the daemon drops to and hands
	// reaped files to.
	// Default: dusa
	ServiceAccount string `yaml:"service_account" json:"service_account"`

	// ReadTimeout bounds each read from a client.
	// Default: 10s
	ReadTimeout Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout bounds each write to a client.
	// Default: 10s
	WriteTimeout Duration `yaml:"write_timeout" json:"write_timeout"`

	// AckTimeout bounds the wait for the client's closing Acknowledge.
	// Default: 2s
	AckTimeout Duration `yaml:"ack_timeout" json:"ack_timeout"`

	// StrictVersion ends the exchange after an InvalidVersion reply
	// instead of processing the request anyway.
	// Default: true
	StrictVersion bool `yaml:"strict_version" json:"strict_version"`

	// AuthenticatePeer checks request uids against SO_PEERCRED.
	// Default: true
	AuthenticatePeer bool `yaml:"authenticate_peer" json:"authenticate_peer"`

	// DropPrivileges switches to ServiceAccount at startup when the
	// daemon is started as root.
	// Default: true
	DropPrivileges bool `yaml:"drop_privileges" json:"drop_privileges"`
}

// VaultConfig configures the encrypted store.
type VaultConfig struct {
	// Root is the vault directory.
	// Default: /var/lib/dusa
	Root string `yaml:"root" json:"root"`

	// IdentityPath is the age identity sealing the master key.
	// Default: ${DUSA_ROOT}/identity.txt
	IdentityPath string `yaml:"identity_path" json:"identity_path"`

	// TempDir receives decrypted files. Empty means ${DUSA_ROOT}/tmp.
	TempDir string `yaml:"temp_dir" json:"temp_dir"`

	// Compression is one of none, lz4, zstd.
	// Default: zstd
	Compression string `yaml:"compression" json:"compression"`

	// ChunkSize is the plaintext bytes per chunk.
	// Default: 65536
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// RemoveSource deletes a file once it has been stored.
	// Default: true
	RemoveSource bool `yaml:"remove_source" json:"remove_source"`

	// PoolSize is the SQLite connection count.
	// Default: 4
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// EscrowRecipients are extra age recipients the master key is
	// sealed to when first generated.
	EscrowRecipients []string `yaml:"escrow_recipients" json:"escrow_recipients"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level" json:"level"`
}

// ClientConfig configures the dusa client.
type ClientConfig struct {
	// SocketPath is the daemon socket to dial.
	// Default: /var/run/dusa/dusa.sock
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// ServiceAccount receives ownership of files before they are
	// stored.
	// Default: dusa
	ServiceAccount string `yaml:"service_account" json:"service_account"`

	// Timeout bounds one request/response exchange.
	// Default: 30s
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) parse(text string) error {
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	return d.parse(text)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string such as \"10s\": %w", err)
	}
	return d.parse(text)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// Default returns the default configuration, used as the base that a
// config file is merged into.
func Default() *Config {
	const (
		socketPath = "/var/run/dusa/dusa.sock"
		root       = "/var/lib/dusa"
	)
	return &Config{
		Environment: Production,
		Daemon: DaemonConfig{
			SocketPath:       socketPath,
			ServiceAccount:   "dusa",
			ReadTimeout:      Duration(10 * time.Second),
			WriteTimeout:     Duration(10 * time.Second),
			AckTimeout:       Duration(2 * time.Second),
			StrictVersion:    true,
			AuthenticatePeer: true,
			DropPrivileges:   true,
		},
		Vault: VaultConfig{
			Root:         root,
			IdentityPath: "${DUSA_ROOT}/identity.txt",
			Compression:  "zstd",
			ChunkSize:    64 * 1024,
			RemoveSource: true,
			PoolSize:     4,
		},
		Log: LogConfig{
			Level: "info",
		},
		Client: ClientConfig{
			SocketPath:     socketPath,
			ServiceAccount: "dusa",
			Timeout:        Duration(30 * time.Second),
		},
	}
}

// Load loads configuration from the file named by DUSA_CONFIG. It
// fails when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your dusa.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// Resolve picks the config source for a binary: the --config flag
// value when given, then DUSA_CONFIG, then the built-in defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	cfg := Default()
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from path. Files ending in .json or
// .jsonc are parsed as JSON with comments; anything else as YAML.
// Only ${HOME}, ${DUSA_ROOT}, and ${VAR:-default} patterns in path
// fields are expanded; environment variables never override values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}
	if overrides.SocketPath != "" {
		c.Daemon.SocketPath = overrides.SocketPath
		c.Client.SocketPath = overrides.SocketPath
	}
	if overrides.VaultRoot != "" {
		c.Vault.Root = overrides.VaultRoot
	}
	if overrides.LogLevel != "" {
		c.Log.Level = overrides.LogLevel
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"DUSA_ROOT": c.Vault.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Vault.Root = expandVars(c.Vault.Root, vars)
	vars["DUSA_ROOT"] = c.Vault.Root

	c.Vault.IdentityPath = expandVars(c.Vault.IdentityPath, vars)
	c.Vault.TempDir = expandVars(c.Vault.TempDir, vars)
	c.Daemon.SocketPath = expandVars(c.Daemon.SocketPath, vars)
	c.Client.SocketPath = expandVars(c.Client.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking vars
// before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var compressionNames = []string{"none", "lz4", "zstd"}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Daemon.SocketPath == "" {
		errs = append(errs, fmt.Errorf("daemon.socket_path is required"))
	}
	if c.Daemon.ServiceAccount == "" {
		errs = append(errs, fmt.Errorf("daemon.service_account is required"))
	}
	for name, value := range map[string]Duration{
		"daemon.read_timeout":  c.Daemon.ReadTimeout,
		"daemon.write_timeout": c.Daemon.WriteTimeout,
		"daemon.ack_timeout":   c.Daemon.AckTimeout,
		"client.timeout":       c.Client.Timeout,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}

	if c.Vault.Root == "" {
		errs = append(errs, fmt.Errorf("vault.root is required"))
	}
	if !slices.Contains(compressionNames, c.Vault.Compression) {
		errs = append(errs, fmt.Errorf("vault.compression must be one of: %v", compressionNames))
	}
	if c.Vault.ChunkSize < 1024 || c.Vault.ChunkSize > 4*1024*1024 {
		errs = append(errs, fmt.Errorf("vault.chunk_size must be between 1024 and 4194304, got %d", c.Vault.ChunkSize))
	}
	if c.Vault.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("vault.pool_size must be at least 1, got %d", c.Vault.PoolSize))
	}
	for i, recipient := range c.Vault.EscrowRecipients {
		if err := sealed.ValidateRecipient(recipient); err != nil {
			errs = append(errs, fmt.Errorf("vault.escrow_recipients[%d]: %w", i, err))
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.Client.SocketPath == "" {
		errs = append(errs, fmt.Errorf("client.socket_path is required"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the vault root and the socket directory.
func (c *Config) EnsurePaths() error {
	for _, directory := range []struct {
		path string
		mode os.FileMode
	}{
		{c.Vault.Root, 0o700},
		{filepath.Dir(c.Daemon.SocketPath), 0o755},
	} {
		if directory.path == "" || directory.path == "." {
			continue
		}
		if err := os.MkdirAll(directory.path, directory.mode); err != nil {
			return fmt.Errorf("creating %s: %w", directory.path, err)
		}
	}
	return nil
}
