// Package main is the entrypoint for the sshping CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eugenetaranov/sshping/internal/config"
	"github.com/eugenetaranov/sshping/internal/connector"
	"github.com/eugenetaranov/sshping/internal/connector/docker"
	"github.com/eugenetaranov/sshping/internal/connector/local"
	"github.com/eugenetaranov/sshping/internal/connector/ssh"
	"github.com/eugenetaranov/sshping/internal/executor"
	"github.com/eugenetaranov/sshping/internal/output"
	"github.com/eugenetaranov/sshping/pkg/facts"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug             bool
	noColor           bool
	configFile        string
	gatherFacts       bool
	failOnUnreachable bool

	flagValues = config.Default()
)

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sshping [flags] [target ...]",
	Short: "sshping - ping many targets from a remote gateway over SSH",
	Long: `sshping opens one SSH session per target to a gateway host, runs ping
there and reports the round-trip time of every target that answered, their
average and the targets that did not.

Targets are read from the address file (one per line) or given as arguments.

Examples:
  sshping -H bastion.example.com -u probe -f routers.txt
  sshping -H 10.0.0.1 -u probe -i ~/.ssh/id_ed25519 -c 3 8.8.8.8 1.1.1.1
  sshping --connection local --debug 192.0.2.1`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage: true,
	RunE:         runProbes,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug output and debug logging")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	bindFlags(pf, flagValues)

	rootCmd.Flags().BoolVar(&gatherFacts, "facts", false, "Gather and print facts about the vantage point first")
	rootCmd.Flags().BoolVar(&failOnUnreachable, "fail-on-unreachable", false, "Exit with status 2 if any target did not respond")

	rootCmd.AddCommand(validateCmd)
}

// loadConfig builds the run configuration from defaults, the config file
// and the flags set on the command line, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	applyFlags(cmd.Flags(), flagValues, cfg)
	if debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// newFactory returns the connector factory for the configured vantage point.
// All SSH connectors of a run share one host key store.
func newFactory(cfg *config.Config, log *logrus.Entry) (connector.Factory, error) {
	switch cfg.Connection {
	case config.ConnectionLocal:
		return func(string) connector.Connector {
			return local.New()
		}, nil

	case config.ConnectionDocker:
		return func(string) connector.Connector {
			return docker.New(cfg.Container)
		}, nil

	default:
		params := cfg.Session()
		store, err := ssh.NewHostKeyStore(params.KnownHostsFile, params.HostKeyPolicy)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "known_hosts", Reason: err.Error()}
		}
		return func(string) connector.Connector {
			return ssh.New(params, ssh.WithHostKeyStore(store), ssh.WithLogger(log))
		}, nil
	}
}

func runProbes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := config.SetupLogging(logrus.StandardLogger(), cfg.LogLevel, cfg.LogFile, os.Stderr)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	log := logrus.WithField("run", xid.New().String())

	targetList, err := resolveTargets(cmd.Flags(), cfg, args)
	if err != nil {
		return err
	}

	if err := promptMissing(cfg, os.Stdin, os.Stderr); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	factory, err := newFactory(cfg, log)
	if err != nil {
		return err
	}

	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	out.SetDebug(debug)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, waiting for open sessions...")
		cancel()
	}()

	if gatherFacts {
		printFacts(ctx, factory, out, log)
	}

	exec := executor.New(factory)
	exec.Output = out
	exec.Log = log
	exec.Tries = cfg.Tries
	exec.Parallel = cfg.Parallel
	exec.ProbeTimeout = cfg.ProbeTimeout
	exec.Command = cfg.Command

	result, err := exec.Run(ctx, targetList)
	if err != nil {
		return err
	}

	out.Report(result.Report)
	out.RunEnd(result.Report, result.Duration())

	if failOnUnreachable && len(result.Report.Unresponsive) > 0 {
		return &exitError{
			code: 2,
			msg:  fmt.Sprintf("%d of %d target(s) did not respond", len(result.Report.Unresponsive), result.Report.Total),
		}
	}

	return nil
}

// printFacts opens one extra session to describe the vantage point. Failures
// are logged and do not stop the run.
func printFacts(ctx context.Context, factory connector.Factory, out *output.Output, log *logrus.Entry) {
	conn := factory("")
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		log.WithError(err).Warn("Failed to gather facts")
		return
	}

	f, err := facts.Gather(ctx, conn)
	if err != nil {
		log.WithError(err).Warn("Failed to gather facts")
		return
	}

	out.Facts(f)
	if f["ping"] == "" {
		out.Warn("ping was not found on %s", conn)
	}
}

// validateCmd checks configuration and targets without probing
var validateCmd = &cobra.Command{
	Use:   "validate [target ...]",
	Short: "Validate configuration and list the targets that would be probed",
	Long: `Load the configuration file, flags and address list, validate them
and print what a run would do. No session is opened.

Examples:
  sshping validate --config sshping.yaml
  sshping validate -H bastion -u probe -p secret -f routers.txt`,
	RunE: validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return err
	}

	targetList, err := resolveTargets(cmd.Flags(), cfg, args)
	if err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return err
	}

	factory, err := newFactory(cfg, logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		return err
	}

	exec := executor.New(factory)
	exec.Tries = cfg.Tries
	exec.Command = cfg.Command
	sample := "<target>"
	if len(targetList) > 0 {
		sample = targetList[0]
	}
	command, err := exec.BuildCommand(sample)
	if err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return err
	}

	fmt.Printf("OK: %s\n", factory("").String())
	fmt.Printf("  command:  %s\n", command)
	fmt.Printf("  parallel: %d\n", cfg.Parallel)
	fmt.Printf("  targets:  %d\n", len(targetList))
	if len(targetList) > 0 {
		fmt.Printf("    %s\n", strings.Join(targetList, "\n    "))
	}

	return nil
}
