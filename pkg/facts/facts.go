// Package facts gathers information about the vantage point probes are sent
// from.
package facts

import (
	"context"
	"strings"

	"github.com/eugenetaranov/sshping/internal/connector"
)

// Gather collects facts from an open connection. Individual facts that
// cannot be read are left out. Only a failure of the first command, which
// means the session itself is unusable, is returned as an error.
func Gather(ctx context.Context, conn connector.Connector) (map[string]any, error) {
	facts := make(map[string]any)

	osType, err := run(ctx, conn, "uname -s")
	if err != nil {
		return nil, err
	}
	facts["os_type"] = osType

	if osType == "Linux" {
		if res, err := conn.Execute(ctx, "cat /etc/os-release 2>/dev/null"); err == nil && res.ExitCode == 0 {
			release := parseOSRelease(res.Stdout)
			if id, ok := release["ID"]; ok {
				facts["distribution"] = id
			}
			if name, ok := release["PRETTY_NAME"]; ok {
				facts["os_name"] = name
			}
		}
	}

	if osType == "Darwin" {
		if v, err := run(ctx, conn, "sw_vers -productVersion"); err == nil && v != "" {
			facts["os_version"] = v
		}
	}

	if arch, err := run(ctx, conn, "uname -m"); err == nil && arch != "" {
		facts["arch"] = normalizeArch(arch)
	}

	if kernel, err := run(ctx, conn, "uname -r"); err == nil && kernel != "" {
		facts["kernel"] = kernel
	}

	if hostname, err := run(ctx, conn, "hostname"); err == nil && hostname != "" {
		facts["hostname"] = hostname
	}

	if user, err := run(ctx, conn, "whoami"); err == nil && user != "" {
		facts["user"] = user
	}

	// An empty path means the probe command will most likely fail.
	ping, _ := run(ctx, conn, "command -v ping")
	facts["ping"] = ping

	return facts, nil
}

// run executes cmd and returns its trimmed stdout. A nonzero exit status
// yields an empty string.
func run(ctx context.Context, conn connector.Connector, cmd string) (string, error) {
	res, err := conn.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l":
		return "arm"
	default:
		return arch
	}
}

// parseOSRelease parses /etc/os-release format.
func parseOSRelease(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx > 0 {
			result[line[:idx]] = strings.Trim(line[idx+1:], "\"'")
		}
	}
	return result
}
