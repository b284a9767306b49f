// Package docker provides a connector that probes from inside a running
// Docker container.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/eugenetaranov/sshping/internal/connector"
)

// Connector executes commands inside a Docker container via the docker CLI.
type Connector struct {
	container string
	user      string
	binary    string
}

// Option configures the Docker connector.
type Option func(*Connector)

// WithUser sets the user for command execution.
func WithUser(user string) Option {
	return func(c *Connector) {
		c.user = user
	}
}

// WithBinary overrides the docker executable.
func WithBinary(path string) Option {
	return func(c *Connector) {
		c.binary = path
	}
}

// New creates a new Docker connector for the specified container.
func New(container string, opts ...Option) *Connector {
	c := &Connector{
		container: container,
		binary:    "docker",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect verifies the container exists and is running.
func (c *Connector) Connect(ctx context.Context) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: fmt.Errorf("docker command not found: %w", err)}
	}

	cmd := exec.CommandContext(ctx, c.binary, "inspect", "-f", "{{.State.Running}}", c.container)
	output, err := cmd.Output()
	if err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: fmt.Errorf("container not found or not accessible: %w", err)}
	}

	if strings.TrimSpace(string(output)) != "true" {
		return &connector.ConnectionError{Endpoint: c.String(), Err: errors.New("container is not running")}
	}

	return nil
}

// Execute runs a command inside the container.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	execCmd := exec.CommandContext(ctx, c.binary, c.buildExecArgs(cmd)...)
	execCmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
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

// buildExecArgs builds the docker exec command arguments.
func (c *Connector) buildExecArgs(cmd string) []string {
	args := []string{"exec"}

	if c.user != "" {
		args = append(args, "-u", c.user)
	}

	return append(args, c.container, "/bin/sh", "-c", cmd)
}

// Close is a no-op for Docker connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.user != "" {
		return fmt.Sprintf("docker://%s@%s", c.user, c.container)
	}
	return fmt.Sprintf("docker://%s", c.container)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
