// Package latency extracts round-trip times from the textual output of
// ping-style commands.
package latency

import (
	"regexp"
	"strconv"
	"strings"
)

// quadPattern matches the min/avg/max/mdev summary, e.g. "10.1/12.5/15.0/1.2".
var quadPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)`)

// Measurement is a parsed round-trip summary. All times are milliseconds.
type Measurement struct {
	// Text is the summary line without its leading label.
	Text string

	// AvgMs is the average round-trip time.
	AvgMs float64

	MinMs  float64
	MaxMs  float64
	MdevMs float64
}

// Extract parses the last non-empty line of raw. It returns false when the
// line carries no min/avg/max/mdev quadruple.
func Extract(raw string) (Measurement, bool) {
	line := Summary(raw)
	if line == "" {
		return Measurement{}, false
	}

	m := quadPattern.FindStringSubmatch(line)
	if m == nil {
		return Measurement{}, false
	}

	var values [4]float64
	for i := range values {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Measurement{}, false
		}
		values[i] = v
	}

	return Measurement{
		Text:   stripLabel(line),
		MinMs:  values[0],
		AvgMs:  values[1],
		MaxMs:  values[2],
		MdevMs: values[3],
	}, true
}

// Summary returns the last non-empty line of raw, trimmed.
func Summary(raw string) string {
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// stripLabel drops the words in front of the first slash-separated field,
// so "rtt min/avg/max/mdev = ..." becomes "min/avg/max/mdev = ...".
func stripLabel(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if !strings.Contains(f, "/") {
			continue
		}
		if i == 0 {
			return line
		}
		return line[strings.Index(line, f):]
	}
	return line
}
