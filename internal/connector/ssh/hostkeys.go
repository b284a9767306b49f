package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/sshping/internal/connector"
)

// ErrHostKeyChanged is returned when a host presents a key that differs
// from the one previously recorded for it.
var ErrHostKeyChanged = errors.New("host key changed")

// ErrHostKeyUnknown is returned by the strict policy for hosts that are not
// present in known_hosts.
var ErrHostKeyUnknown = errors.New("host key unknown")

// HostKeyStore verifies host keys for every connector of a run. It is safe
// for concurrent use, so parallel first connections to the same gateway
// record the key only once.
type HostKeyStore struct {
	policy connector.HostKeyPolicy
	path   string

	mu       sync.Mutex
	fromFile gossh.HostKeyCallback
	accepted map[string][]byte
}

// NewHostKeyStore loads known_hosts from path (which may be empty or not
// yet exist) and applies the given policy.
func NewHostKeyStore(path string, policy connector.HostKeyPolicy) (*HostKeyStore, error) {
	if policy == "" {
		policy = connector.HostKeyAcceptNew
	}

	s := &HostKeyStore{
		policy:   policy,
		path:     path,
		accepted: make(map[string][]byte),
	}

	if path == "" || policy == connector.HostKeyInsecure {
		return s, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to stat known hosts %s: %w", path, err)
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", path, err)
	}
	s.fromFile = cb

	return s, nil
}

// Policy returns the verification mode of the store.
func (s *HostKeyStore) Policy() connector.HostKeyPolicy {
	return s.policy
}

// Callback returns the host key callback to put in an ssh.ClientConfig.
func (s *HostKeyStore) Callback() gossh.HostKeyCallback {
	if s.policy == connector.HostKeyInsecure {
		return gossh.InsecureIgnoreHostKey()
	}
	return s.check
}

func (s *HostKeyStore) check(hostname string, remote net.Addr, key gossh.PublicKey) error {
	host := knownhosts.Normalize(hostname)
	wire := key.Marshal()

	s.mu.Lock()
	defer s.mu.Unlock()

	if known, ok := s.accepted[host]; ok {
		if bytes.Equal(known, wire) {
			return nil
		}
		return fmt.Errorf("%w for %s", ErrHostKeyChanged, host)
	}

	if s.fromFile != nil {
		err := s.fromFile(hostname, remote, key)
		if err == nil {
			s.accepted[host] = wire
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return fmt.Errorf("%w for %s: %v", ErrHostKeyChanged, host, err)
		}
	}

	if s.policy == connector.HostKeyStrict {
		return fmt.Errorf("%w: %s (%s)", ErrHostKeyUnknown, host, gossh.FingerprintSHA256(key))
	}

	if err := s.record(host, key); err != nil {
		return err
	}
	s.accepted[host] = wire
	return nil
}

// record appends the key to the known_hosts file. Callers hold s.mu.
func (s *HostKeyStore) record(host string, key gossh.PublicKey) error {
	if s.path == "" {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create known hosts directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, knownhosts.Line([]string{host}, key)); err != nil {
		return fmt.Errorf("failed to record host key for %s: %w", host, err)
	}

	return nil
}
