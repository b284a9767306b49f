// Package config holds the typed run configuration, its defaults, the YAML
// file loader and validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/sshping/internal/connector"
	"github.com/eugenetaranov/sshping/internal/executor"
)

// Vantage point kinds.
const (
	ConnectionSSH    = "ssh"
	ConnectionLocal  = "local"
	ConnectionDocker = "docker"
)

// Defaults.
const (
	DefaultPort           = 22
	DefaultTargetsFile    = "config.txt"
	DefaultLogLevel       = "warn"
	DefaultConnectTimeout = 10 * time.Second
	DefaultProbeTimeout   = 60 * time.Second
)

// Config is the complete configuration of a run.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	KeyFile  string `yaml:"identity"`

	// TargetsFile is the address list, one target per line.
	TargetsFile string `yaml:"file"`

	// Targets are probed in addition to TargetsFile.
	Targets []string `yaml:"targets"`

	Tries    int    `yaml:"count"`
	Parallel int    `yaml:"parallel"`
	Command  string `yaml:"command"`

	Connection string `yaml:"connection"`
	Container  string `yaml:"container"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`

	KnownHosts    string `yaml:"known_hosts"`
	HostKeyPolicy string `yaml:"host_key_policy"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		TargetsFile:    DefaultTargetsFile,
		Tries:          executor.DefaultTries,
		Parallel:       executor.DefaultParallel,
		Command:        executor.DefaultCommand,
		Connection:     ConnectionSSH,
		ConnectTimeout: DefaultConnectTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		HostKeyPolicy:  string(connector.HostKeyAcceptNew),
		LogLevel:       DefaultLogLevel,
	}
}

// ConfigurationError reports an invalid or missing setting. It is fatal
// and detected before any probe starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// LoadFile reads a YAML configuration file on top of the defaults. Unknown
// keys are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: err.Error()}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("failed to parse %s: %v", path, err)}
	}

	return cfg, nil
}

// Validate checks the configuration and returns the first problem found as
// a *ConfigurationError.
func (c *Config) Validate() error {
	switch c.Connection {
	case ConnectionSSH:
		if err := c.validateSSH(); err != nil {
			return err
		}
	case ConnectionLocal:
	case ConnectionDocker:
		if c.Container == "" {
			return &ConfigurationError{Field: "container", Reason: "required for docker connection"}
		}
	default:
		return &ConfigurationError{Field: "connection", Reason: fmt.Sprintf("unknown connection %q", c.Connection)}
	}

	if c.Tries < 1 {
		return &ConfigurationError{Field: "count", Reason: fmt.Sprintf("must be at least 1, got %d", c.Tries)}
	}
	if c.Parallel < 1 {
		return &ConfigurationError{Field: "parallel", Reason: fmt.Sprintf("must be at least 1, got %d", c.Parallel)}
	}
	if c.ConnectTimeout < 0 {
		return &ConfigurationError{Field: "connect_timeout", Reason: "must not be negative"}
	}
	if c.ProbeTimeout < 0 {
		return &ConfigurationError{Field: "probe_timeout", Reason: "must not be negative"}
	}

	command := c.Command
	if command == "" {
		command = executor.DefaultCommand
	}
	if !executor.HasVariable(command, "target") {
		return &ConfigurationError{Field: "command", Reason: "template must reference {{ target }}"}
	}

	return nil
}

func (c *Config) validateSSH() error {
	if c.Host == "" {
		return &ConfigurationError{Field: "host", Reason: "required"}
	}
	if c.User == "" {
		return &ConfigurationError{Field: "user", Reason: "required"}
	}
	if c.Password == "" && c.KeyFile == "" {
		return &ConfigurationError{Field: "password", Reason: "a password or an identity file is required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigurationError{Field: "port", Reason: fmt.Sprintf("out of range: %d", c.Port)}
	}
	if c.KeyFile != "" {
		if _, err := os.Stat(c.KeyFile); err != nil {
			return &ConfigurationError{Field: "identity", Reason: err.Error()}
		}
	}

	switch connector.HostKeyPolicy(c.HostKeyPolicy) {
	case connector.HostKeyAcceptNew, connector.HostKeyStrict, connector.HostKeyInsecure:
	default:
		return &ConfigurationError{Field: "host_key_policy", Reason: fmt.Sprintf("unknown policy %q", c.HostKeyPolicy)}
	}

	return nil
}

// Session returns the connection parameters shared by every probe.
func (c *Config) Session() connector.SessionParams {
	return connector.SessionParams{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		KeyFile:        c.KeyFile,
		ConnectTimeout: c.ConnectTimeout,
		KnownHostsFile: c.KnownHosts,
		HostKeyPolicy:  connector.HostKeyPolicy(c.HostKeyPolicy),
	}
}
