// Package connector defines the interface for opening sessions to a vantage
// point and executing commands there.
package connector

import (
	"context"
	"fmt"
	"time"
)

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector is the interface for connecting to and executing commands on
// the host the probes are sent from.
type Connector interface {
	// Connect establishes a connection to the target.
	Connect(ctx context.Context) error

	// Execute runs a command on the target and returns the result.
	// A nonzero exit status is reported in the Result, not as an error.
	Execute(ctx context.Context, cmd string) (*Result, error)

	// Close terminates the connection.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

// Factory creates a fresh, unconnected Connector for probing target. It is
// called once per probe. Gateway factories ignore target.
type Factory func(target string) Connector

// HostKeyPolicy controls how unknown or changed SSH host keys are handled.
type HostKeyPolicy string

const (
	// HostKeyAcceptNew trusts unknown hosts on first use and rejects
	// hosts whose recorded key changed.
	HostKeyAcceptNew HostKeyPolicy = "accept-new"

	// HostKeyStrict only accepts hosts already present in known_hosts.
	HostKeyStrict HostKeyPolicy = "strict"

	// HostKeyInsecure accepts any host key and records nothing.
	HostKeyInsecure HostKeyPolicy = "insecure"
)

// SessionParams holds the connection parameters shared by every probe.
// It is read-only once a run has started.
type SessionParams struct {
	// Host is the gateway hostname or IP address.
	Host string

	// Port is the SSH port.
	Port int

	// User is the username for authentication.
	User string

	// Password is used for password and keyboard-interactive auth, and
	// as the passphrase of an encrypted KeyFile.
	Password string

	// KeyFile is a private key path. When set it is offered before the password.
	KeyFile string

	// ConnectTimeout bounds dialing and the SSH handshake. Zero means no bound.
	ConnectTimeout time.Duration

	// KnownHostsFile records accepted host keys. Empty keeps them in memory.
	KnownHostsFile string

	// HostKeyPolicy selects the host key verification mode.
	HostKeyPolicy HostKeyPolicy
}

// ConnectionError reports a failure to establish a session.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExecutionError reports a transport failure while a command was running.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %q: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
