package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/eugenetaranov/sshping/internal/config"
	"github.com/eugenetaranov/sshping/internal/targets"
)

// bindFlags registers the configuration flags on fs, storing values in v.
func bindFlags(fs *flag.FlagSet, v *config.Config) {
	fs.StringVarP(&v.Host, "host", "H", v.Host, "Gateway host to send probes from")
	fs.StringVarP(&v.User, "user", "u", v.User, "SSH login")
	fs.StringVarP(&v.Password, "password", "p", v.Password, "SSH password (also the passphrase of an encrypted identity)")
	fs.IntVar(&v.Port, "port", v.Port, "SSH port")
	fs.StringVarP(&v.KeyFile, "identity", "i", v.KeyFile, "Private key file")
	fs.StringVarP(&v.TargetsFile, "file", "f", v.TargetsFile, "File with one target per line")
	fs.IntVarP(&v.Tries, "count", "c", v.Tries, "Echo requests per target")
	fs.IntVarP(&v.Parallel, "parallel", "P", v.Parallel, "Maximum number of probes in flight")
	fs.StringVar(&v.Command, "command", v.Command, "Probe command template ({{ tries }}, {{ target }})")
	fs.StringVar(&v.Connection, "connection", v.Connection, "Vantage point: ssh, local or docker")
	fs.StringVar(&v.Container, "container", v.Container, "Container to probe from with --connection docker")
	fs.DurationVar(&v.ConnectTimeout, "connect-timeout", v.ConnectTimeout, "Bound on dial and SSH handshake (0 disables)")
	fs.DurationVar(&v.ProbeTimeout, "probe-timeout", v.ProbeTimeout, "Bound on one probe (0 disables)")
	fs.StringVar(&v.KnownHosts, "known-hosts", v.KnownHosts, "known_hosts file to verify and record host keys")
	fs.StringVar(&v.HostKeyPolicy, "host-key-policy", v.HostKeyPolicy, "Host key policy: accept-new, strict or insecure")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&v.LogFile, "log-file", v.LogFile, "Also write logs to this file")
}

// applyFlags copies the flags that were set on the command line from v
// into cfg, so they take precedence over the config file.
func applyFlags(fs *flag.FlagSet, v, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("host", func() { cfg.Host = v.Host })
	set("user", func() { cfg.User = v.User })
	set("password", func() { cfg.Password = v.Password })
	set("port", func() { cfg.Port = v.Port })
	set("identity", func() { cfg.KeyFile = v.KeyFile })
	set("file", func() { cfg.TargetsFile = v.TargetsFile })
	set("count", func() { cfg.Tries = v.Tries })
	set("parallel", func() { cfg.Parallel = v.Parallel })
	set("command", func() { cfg.Command = v.Command })
	set("connection", func() { cfg.Connection = v.Connection })
	set("container", func() { cfg.Container = v.Container })
	set("connect-timeout", func() { cfg.ConnectTimeout = v.ConnectTimeout })
	set("probe-timeout", func() { cfg.ProbeTimeout = v.ProbeTimeout })
	set("known-hosts", func() { cfg.KnownHosts = v.KnownHosts })
	set("host-key-policy", func() { cfg.HostKeyPolicy = v.HostKeyPolicy })
	set("log-level", func() { cfg.LogLevel = v.LogLevel })
	set("log-file", func() { cfg.LogFile = v.LogFile })
}

// resolveTargets returns the targets to probe. Inline targets (positional
// arguments and the config file's list) replace the address file unless a
// file was named explicitly.
func resolveTargets(fs *flag.FlagSet, cfg *config.Config, args []string) ([]string, error) {
	inline := append(append([]string{}, cfg.Targets...), args...)

	explicitFile := fs.Changed("file") || cfg.TargetsFile != config.DefaultTargetsFile
	if len(inline) > 0 && !explicitFile {
		return inline, nil
	}

	list, err := targets.Load(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}
	return append(list, inline...), nil
}

// promptMissing asks for a missing host, user and password when stdin is a
// terminal. Otherwise the values stay empty and validation reports them.
func promptMissing(cfg *config.Config, in *os.File, out io.Writer) error {
	if cfg.Connection != config.ConnectionSSH {
		return nil
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	reader := bufio.NewReader(in)
	ask := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Fprintf(out, "%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return &config.ConfigurationError{Field: strings.ToLower(label), Reason: "no input"}
		}
		*dst = strings.TrimSpace(line)
		return nil
	}

	if err := ask("Host", &cfg.Host); err != nil {
		return err
	}
	if err := ask("User", &cfg.User); err != nil {
		return err
	}

	if cfg.Password == "" && cfg.KeyFile == "" {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return &config.ConfigurationError{Field: "password", Reason: err.Error()}
		}
		cfg.Password = string(pw)
	}

	return nil
}
