package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/sshping/internal/connector"
)

func validSSH() *Config {
	cfg := Default()
	cfg.Host = "gw.example.com"
	cfg.User = "probe"
	cfg.Password = "s3cret"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, 5, cfg.Tries)
	assert.Equal(t, 5, cfg.Parallel)
	assert.Equal(t, "config.txt", cfg.TargetsFile)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "ping -c{{ tries }} {{ target }}", cfg.Command)
	assert.Equal(t, ConnectionSSH, cfg.Connection)
	assert.Equal(t, "accept-new", cfg.HostKeyPolicy)
}

func TestValidate(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0o600))

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "key instead of password", mutate: func(c *Config) { c.Password = ""; c.KeyFile = keyFile }},
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantField: "host"},
		{name: "missing user", mutate: func(c *Config) { c.User = "" }, wantField: "user"},
		{name: "no credential", mutate: func(c *Config) { c.Password = "" }, wantField: "password"},
		{name: "missing key file", mutate: func(c *Config) { c.KeyFile = "/nonexistent/key" }, wantField: "identity"},
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }, wantField: "port"},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantField: "port"},
		{name: "zero tries", mutate: func(c *Config) { c.Tries = 0 }, wantField: "count"},
		{name: "zero parallel", mutate: func(c *Config) { c.Parallel = 0 }, wantField: "parallel"},
		{name: "negative connect timeout", mutate: func(c *Config) { c.ConnectTimeout = -time.Second }, wantField: "connect_timeout"},
		{name: "negative probe timeout", mutate: func(c *Config) { c.ProbeTimeout = -time.Second }, wantField: "probe_timeout"},
		{name: "zero timeouts", mutate: func(c *Config) { c.ConnectTimeout = 0; c.ProbeTimeout = 0 }},
		{name: "template without target", mutate: func(c *Config) { c.Command = "ping -c{{ tries }} 8.8.8.8" }, wantField: "command"},
		{name: "unknown policy", mutate: func(c *Config) { c.HostKeyPolicy = "yolo" }, wantField: "host_key_policy"},
		{name: "unknown connection", mutate: func(c *Config) { c.Connection = "telnet" }, wantField: "connection"},
		{name: "docker without container", mutate: func(c *Config) { c.Connection = ConnectionDocker }, wantField: "container"},
		{name: "docker", mutate: func(c *Config) { c.Connection = ConnectionDocker; c.Container = "box"; c.Host = "" }},
		{name: "local needs no credentials", mutate: func(c *Config) { c.Connection = ConnectionLocal; c.Host = ""; c.User = ""; c.Password = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSSH()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sshping.yaml")
	data := `
host: bastion.example.com
user: probe
password: s3cret
count: 3
parallel: 10
targets:
  - 10.0.0.1
  - 10.0.0.2
connect_timeout: 2s
probe_timeout: 30s
host_key_policy: strict
known_hosts: /tmp/known_hosts
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bastion.example.com", cfg.Host)
	assert.Equal(t, 3, cfg.Tries)
	assert.Equal(t, 10, cfg.Parallel)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Targets)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.ProbeTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, "config.txt", cfg.TargetsFile)

	params := cfg.Session()
	assert.Equal(t, connector.HostKeyStrict, params.HostKeyPolicy)
	assert.Equal(t, "/tmp/known_hosts", params.KnownHostsFile)
	assert.Equal(t, 2*time.Second, params.ConnectTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("hots: typo.example.com\n"), 0o600))

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("count: [1, 2\n"), 0o600))

	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "missing.yaml"),
		"unknown":   unknown,
		"malformed": malformed,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(path)
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func Test_parseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
		ok    bool
	}{
		{"debug", logrus.DebugLevel, true},
		{"info", logrus.InfoLevel, true},
		{"warn", logrus.WarnLevel, true},
		{"error", logrus.ErrorLevel, true},
		{"", logrus.WarnLevel, true},
		{"loud", logrus.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, ok := parseLogLevel(tt.level)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sshping.log")

	var stderr bytes.Buffer
	logger := logrus.New()

	f, err := SetupLogging(logger, "info", logFile, &stderr)
	require.NoError(t, err)
	require.NotNil(t, f)

	logger.WithField("target", "10.0.0.1").Info("Probe failed")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	for _, out := range []string{stderr.String(), string(data)} {
		assert.Contains(t, out, "Probe failed")
		assert.Contains(t, out, "target=10.0.0.1")
	}
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestSetupLoggingUnknownLevel(t *testing.T) {
	var stderr bytes.Buffer
	logger := logrus.New()

	f, err := SetupLogging(logger, "loud", "", &stderr)
	require.NoError(t, err)
	assert.Nil(t, f)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.Contains(t, stderr.String(), "Unknown log level")
}

func TestSetupLoggingBadFile(t *testing.T) {
	_, err := SetupLogging(logrus.New(), "warn", filepath.Join(t.TempDir(), "missing", "x.log"), &bytes.Buffer{})

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
