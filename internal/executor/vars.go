package executor

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultCommand is the probe command template.
const DefaultCommand = "ping -c{{ tries }} {{ target }}"

// varPattern matches {{ variable }} syntax.
var varPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// safeChars are left unquoted in a shell word.
const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.-_:%@"

// HasVariable reports whether template references the named variable.
func HasVariable(template, name string) bool {
	for _, m := range varPattern.FindAllStringSubmatch(template, -1) {
		if strings.TrimSpace(m[1]) == name {
			return true
		}
	}
	return false
}

// BuildCommand renders the command template for one target.
func (e *Executor) BuildCommand(target string) (string, error) {
	template := e.Command
	if template == "" {
		template = DefaultCommand
	}

	vars := map[string]string{
		"tries":  fmt.Sprintf("%d", e.Tries),
		"target": shellQuote(target),
	}

	return interpolate(template, vars)
}

// interpolate replaces {{ var }} patterns with their values. Unknown
// variables are an error.
func interpolate(s string, vars map[string]string) (string, error) {
	var missing []string

	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(varPattern.FindStringSubmatch(match)[1])
		val, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unknown variable(s) in command template: %s", strings.Join(missing, ", "))
	}

	return result, nil
}

// shellQuote quotes a string for safe use in shell commands. Plain host
// names and addresses are returned as is.
func shellQuote(s string) string {
	if s != "" && strings.Trim(s, safeChars) == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
