// Package output renders probe progress and the final report.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eugenetaranov/sshping/internal/report"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

const bannerWidth = 50

// Output handles formatted output. It is safe for concurrent use.
type Output struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// RunStart prints the run banner.
func (o *Output) RunStart(endpoint string, targets, tries, parallel int) {
	o.printf("\n%s %s\n", o.color(colorBold, "PROBE"), endpoint)
	if o.debug {
		o.printf("%s\n", o.color(colorGray, fmt.Sprintf("targets=%d tries=%d parallel=%d", targets, tries, parallel)))
	}
}

// Facts prints the facts gathered from the vantage point, sorted by key.
func (o *Output) Facts(facts map[string]any) {
	if len(facts) == 0 {
		return
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o.printf("\n%s\n", o.color(colorBold, "VANTAGE"))
	for _, k := range keys {
		o.printf("  %s %v\n", o.color(colorGray, k+":"), facts[k])
	}
}

// ProbeResult prints a single line for a finished probe. Lines are only
// written in debug mode; the report lists every target anyway.
func (o *Output) ProbeResult(r report.ProbeResult) {
	if !o.debug {
		return
	}

	took := o.color(colorGray, fmt.Sprintf("(%.2fs)", r.Duration.Seconds()))

	// Probes finish concurrently, so each entry goes out in one write.
	var b strings.Builder
	switch {
	case r.Responded():
		fmt.Fprintf(&b, "  %s %s %s %s\n", o.color(colorGreen, "✓"), r.Target, formatMillis(r.Measurement.AvgMs), took)
	case r.Err != nil:
		fmt.Fprintf(&b, "  %s %s %s\n", o.color(colorRed, "✗"), r.Target, took)
		fmt.Fprintf(&b, "    %s %s\n", o.color(colorGray, "→"), r.Err)
	default:
		fmt.Fprintf(&b, "  %s %s %s\n", o.color(colorYellow, "✗"), r.Target, took)
		fmt.Fprintf(&b, "    %s %s\n", o.color(colorGray, "→"), "no round-trip summary in output")
	}
	o.printf("%s", b.String())
}

// Report prints the results block.
func (o *Output) Report(rep report.Report) {
	rule := strings.Repeat("=", bannerWidth)

	o.printf("\n%s\n", o.color(colorBold, strings.Repeat("=", 20)+" RESULTS: "+strings.Repeat("=", 20)))

	for _, r := range rep.Responses {
		o.printf("Ping statistic for %s: %s\n", r.Target, r.Measurement.Text)
	}

	o.printf("%s\n", rule)
	if !rep.HasLatency() {
		o.printf("%s\n", o.color(colorRed, fmt.Sprintf("No hosts responded out of %d", rep.Total)))
	} else {
		o.printf("Average ping for %s hosts with %d tries: %s\n",
			o.color(colorGreen, fmt.Sprintf("%d", rep.Responded)),
			rep.Tries,
			o.color(colorBold, formatMillis(rep.AverageMs)))
		o.printf("%s\n", o.color(colorGray, fmt.Sprintf("min=%s median=%s max=%s",
			formatMillis(rep.MinMs), formatMillis(rep.MedianMs), formatMillis(rep.MaxMs))))
	}
	o.printf("%s\n", rule)

	if len(rep.Unresponsive) > 0 {
		o.printf("For these hosts ping failed: %s\n", o.color(colorRed, strings.Join(rep.Unresponsive, ", ")))
		o.printf("%s\n", rule)
	}
}

// RunEnd prints the recap line.
func (o *Output) RunEnd(rep report.Report, duration time.Duration) {
	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	ok := o.color(colorGreen, fmt.Sprintf("responded=%d", rep.Responded))
	failed := o.color(colorRed, fmt.Sprintf("unresponsive=%d", len(rep.Unresponsive)))

	o.printf("%s %s", ok, failed)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", duration.Seconds())))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorCyan, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func formatMillis(ms float64) string {
	return fmt.Sprintf("%.3f ms", ms)
}

func (o *Output) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, args...)
}
