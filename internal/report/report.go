// Package report folds per-target probe results into a run summary.
package report

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/eugenetaranov/sshping/internal/latency"
)

// ProbeResult is the outcome of probing one target. It is not modified
// after the probe returns it.
type ProbeResult struct {
	// Target is the probed host identifier.
	Target string

	// Measurement is nil when the target did not respond.
	Measurement *latency.Measurement

	// Err is the recovered connection or execution error, if any.
	Err error

	// Duration is how long the probe took end to end.
	Duration time.Duration
}

// Responded reports whether the probe produced a measurement.
func (r ProbeResult) Responded() bool {
	return r.Measurement != nil
}

// Report summarizes a run. Responded + len(Unresponsive) == Total.
type Report struct {
	// Tries is the echo count each probe used.
	Tries int

	Total     int
	Responded int

	// AverageMs is the mean of the per-target averages. MinMs, MedianMs
	// and MaxMs describe the same set. None of them is meaningful unless
	// HasLatency returns true.
	AverageMs float64
	MinMs     float64
	MedianMs  float64
	MaxMs     float64

	// Responses holds responding results in submission order.
	Responses []ProbeResult

	// Unresponsive lists failed targets in submission order.
	Unresponsive []string
}

// HasLatency reports whether the latency statistics are defined.
func (r Report) HasLatency() bool {
	return r.Responded > 0
}

// Summarize partitions results into responders and unresponsive targets and
// computes latency statistics over the responders.
func Summarize(results []ProbeResult, tries int) Report {
	rep := Report{
		Tries:        tries,
		Total:        len(results),
		Responses:    []ProbeResult{},
		Unresponsive: []string{},
	}

	var samples stats.Float64Data
	for _, r := range results {
		if !r.Responded() {
			rep.Unresponsive = append(rep.Unresponsive, r.Target)
			continue
		}
		rep.Responses = append(rep.Responses, r)
		samples = append(samples, r.Measurement.AvgMs)
	}
	rep.Responded = len(rep.Responses)

	if samples.Len() == 0 {
		return rep
	}

	// The stats functions only fail on empty input, which is excluded above.
	rep.AverageMs, _ = samples.Mean()
	rep.MinMs, _ = samples.Min()
	rep.MedianMs, _ = samples.Median()
	rep.MaxMs, _ = samples.Max()

	return rep
}
