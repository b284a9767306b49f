// Package local provides a connector that probes from the local machine.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/eugenetaranov/sshping/internal/connector"
)

// waitDelay bounds how long a cancelled command may hold its output pipes.
const waitDelay = time.Second

// Connector executes commands through the local shell.
type Connector struct {
	shell     string
	shellArgs []string
	env       []string
}

// Option configures the local connector.
type Option func(*Connector)

// WithShell sets a custom shell for command execution.
func WithShell(shell string, args ...string) Option {
	return func(c *Connector) {
		c.shell = shell
		c.shellArgs = args
	}
}

// WithEnv adds KEY=VALUE pairs to the command environment.
func WithEnv(kv ...string) Option {
	return func(c *Connector) {
		c.env = append(c.env, kv...)
	}
}

// New creates a new local connector.
func New(opts ...Option) *Connector {
	c := &Connector{}

	switch runtime.GOOS {
	case "windows":
		c.shell = "cmd"
		c.shellArgs = []string{"/C"}
	default:
		c.shell = "/bin/sh"
		c.shellArgs = []string{"-c"}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect checks that the configured shell can be found.
func (c *Connector) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}
	if _, err := exec.LookPath(c.shell); err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}
	return nil
}

// Execute runs a command locally and returns the result.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	args := append(append([]string{}, c.shellArgs...), cmd)
	execCmd := exec.CommandContext(ctx, c.shell, args...)
	// Children of the shell may keep the output pipes open after a kill.
	execCmd.WaitDelay = waitDelay
	if len(c.env) > 0 {
		execCmd.Env = append(os.Environ(), c.env...)
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		// A killed process also reports an ExitError, so check the context first.
		if ctx.Err() != nil {
			return nil, &connector.ExecutionError{Command: cmd, Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &connector.ExecutionError{Command: cmd, Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// Close is a no-op for local connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return fmt.Sprintf("local://%s", hostname)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
