// Package targets reads the list of addresses to probe.
package targets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eugenetaranov/sshping/internal/config"
)

// Load reads targets from the file at path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "file", Reason: err.Error()}
	}
	defer f.Close()

	targets, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets from %s: %w", path, err)
	}
	return targets, nil
}

// Parse reads one target per line. Surrounding whitespace is trimmed and
// blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]string, error) {
	targets := []string{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}
