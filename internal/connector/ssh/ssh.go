// Package ssh provides a connector that runs probe commands on a gateway
// reached over SSH.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"

	"github.com/eugenetaranov/sshping/internal/connector"
)

// Connector holds one authenticated SSH connection.
type Connector struct {
	params   connector.SessionParams
	hostKeys *HostKeyStore
	log      *logrus.Entry
	dialer   net.Dialer

	client *gossh.Client
}

// Option configures the SSH connector.
type Option func(*Connector)

// WithHostKeyStore shares a host key store between connectors.
func WithHostKeyStore(store *HostKeyStore) Option {
	return func(c *Connector) {
		c.hostKeys = store
	}
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Connector) {
		c.log = log
	}
}

// New creates a new, unconnected SSH connector. Without WithHostKeyStore the
// connector keeps its own in-memory store driven by params.HostKeyPolicy.
func New(params connector.SessionParams, opts ...Option) *Connector {
	c := &Connector{params: params}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.hostKeys == nil {
		c.hostKeys = &HostKeyStore{policy: params.HostKeyPolicy, accepted: make(map[string][]byte)}
		if c.hostKeys.policy == "" {
			c.hostKeys.policy = connector.HostKeyAcceptNew
		}
	}
	c.log = c.log.WithField("endpoint", c.String())

	return c
}

// Connect dials the gateway and performs the SSH handshake. Dialing and the
// handshake are bounded by params.ConnectTimeout and by ctx.
func (c *Connector) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}

	cfg, err := c.clientConfig()
	if err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}

	if c.params.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.params.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	addr := c.address()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	sshConn, chans, reqs, err := gossh.NewClientConn(conn, addr, cfg)
	if !stop() {
		// The context fired during the handshake and the conn is gone.
		if err == nil {
			sshConn.Close()
		}
		return &connector.ConnectionError{Endpoint: c.String(), Err: ctx.Err()}
	}
	if err != nil {
		conn.Close()
		return &connector.ConnectionError{Endpoint: c.String(), Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	c.client = gossh.NewClient(sshConn, chans, reqs)
	c.log.Debugf("SSH connect took %s", time.Since(start))

	return nil
}

// clientConfig builds the SSH client configuration. A key file is offered
// before the password.
func (c *Connector) clientConfig() (*gossh.ClientConfig, error) {
	var auth []gossh.AuthMethod

	if c.params.KeyFile != "" {
		signer, err := loadSigner(c.params.KeyFile, c.params.Password)
		if err != nil {
			return nil, err
		}
		auth = append(auth, gossh.PublicKeys(signer))
	}

	if c.params.Password != "" {
		password := c.params.Password
		auth = append(auth,
			gossh.Password(password),
			gossh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	return &gossh.ClientConfig{
		User:            c.params.User,
		Auth:            auth,
		HostKeyCallback: c.hostKeys.Callback(),
		Timeout:         c.params.ConnectTimeout,
	}, nil
}

// loadSigner reads a private key, using passphrase for encrypted keys.
func loadSigner(path, passphrase string) (gossh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	signer, err := gossh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *gossh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("key file %s is encrypted and no passphrase was given", path)
	}

	signer, err = gossh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key file %s: %w", path, err)
	}
	return signer, nil
}

// Execute runs a command in a new session on the open connection. If ctx is
// done before the command finishes the whole connection is torn down.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	if c.client == nil {
		return nil, &connector.ExecutionError{Command: cmd, Err: errors.New("not connected")}
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, &connector.ExecutionError{Command: cmd, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		c.client.Close()
		<-done
		return nil, &connector.ExecutionError{Command: cmd, Err: ctx.Err()}
	}

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *gossh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &connector.ExecutionError{Command: cmd, Err: err}
		}
		result.ExitCode = exitErr.ExitStatus()
	}

	return result, nil
}

// Close terminates the connection. It is safe to call more than once.
func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.params.User != "" {
		return fmt.Sprintf("ssh://%s@%s", c.params.User, c.address())
	}
	return fmt.Sprintf("ssh://%s", c.address())
}

func (c *Connector) address() string {
	port := c.params.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.params.Host, strconv.Itoa(port))
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
