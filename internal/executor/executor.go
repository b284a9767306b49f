// Package executor probes targets concurrently through a connector.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eugenetaranov/sshping/internal/connector"
	"github.com/eugenetaranov/sshping/internal/latency"
	"github.com/eugenetaranov/sshping/internal/output"
	"github.com/eugenetaranov/sshping/internal/report"
)

// Defaults for a new Executor.
const (
	DefaultTries    = 5
	DefaultParallel = 5
)

// ErrInvalidTarget is recorded for targets that cannot be put on a command line.
var ErrInvalidTarget = errors.New("invalid target")

// Executor runs probes.
type Executor struct {
	// Output handles formatted output. It may be nil.
	Output *output.Output

	// Log receives per-probe diagnostics.
	Log *logrus.Entry

	// Tries is the echo count passed to the command template.
	Tries int

	// Parallel caps the number of probes, and so sessions, in flight.
	Parallel int

	// ProbeTimeout bounds one probe from connect to extraction. Zero
	// means no bound.
	ProbeTimeout time.Duration

	// Command is the command template. Empty means DefaultCommand.
	Command string

	factory connector.Factory
}

// New creates a new executor that opens one connector per probe.
func New(factory connector.Factory) *Executor {
	return &Executor{
		Output:   output.New(os.Stdout),
		Log:      logrus.NewEntry(logrus.StandardLogger()),
		Tries:    DefaultTries,
		Parallel: DefaultParallel,
		Command:  DefaultCommand,
		factory:  factory,
	}
}

// RunResult holds the result of a run.
type RunResult struct {
	// Results has one entry per target, in submission order.
	Results []report.ProbeResult

	// Report is the summary of Results.
	Report report.Report

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total execution time.
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Run probes every target and summarizes the results. The only errors it
// returns are configuration errors detected before any probe starts.
func (e *Executor) Run(ctx context.Context, targets []string) (*RunResult, error) {
	if e.factory == nil {
		return nil, errors.New("executor has no connector factory")
	}
	if e.Tries < 1 {
		return nil, fmt.Errorf("tries must be at least 1, got %d", e.Tries)
	}
	if _, err := e.BuildCommand("localhost"); err != nil {
		return nil, err
	}

	result := &RunResult{StartTime: time.Now()}

	if e.Output != nil {
		e.Output.RunStart(e.factory("").String(), len(targets), e.Tries, e.parallel())
	}

	result.Results = e.RunAll(ctx, targets)
	result.Report = report.Summarize(result.Results, e.Tries)
	result.EndTime = time.Now()

	e.log().Infof("Script execution time: %s", result.Duration())

	return result, nil
}

// RunAll probes targets with at most Parallel probes in flight and waits for
// all of them. The returned slice is aligned with targets regardless of
// completion order.
func (e *Executor) RunAll(ctx context.Context, targets []string) []report.ProbeResult {
	results := make([]report.ProbeResult, len(targets))

	// A plain group: a failed probe must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(e.parallel())

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = e.Probe(ctx, target)
			if e.Output != nil {
				e.Output.ProbeResult(results[i])
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Probe connects, runs the command for one target and extracts the latency.
// Failures are logged and recorded in the result, never returned.
func (e *Executor) Probe(ctx context.Context, target string) (result report.ProbeResult) {
	start := time.Now()
	log := e.log().WithField("target", target)

	result.Target = target
	defer func() {
		result.Duration = time.Since(start)
		log.Debugf("Script execution time (ping %s): %s", target, result.Duration)
	}()

	if err := ctx.Err(); err != nil {
		result.Err = err
		log.WithError(err).Warn("Probe not started")
		return result
	}

	if strings.TrimSpace(target) == "" || strings.HasPrefix(target, "-") {
		result.Err = fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		log.WithError(result.Err).Error("Probe skipped")
		return result
	}

	cmd, err := e.BuildCommand(target)
	if err != nil {
		result.Err = err
		log.WithError(err).Error("Probe skipped")
		return result
	}

	if e.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ProbeTimeout)
		defer cancel()
	}

	conn := e.factory(target)
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("Failed to close session")
		}
	}()

	if err := conn.Connect(ctx); err != nil {
		result.Err = err
		log.WithError(err).Error("Probe failed")
		return result
	}

	raw, err := runCommand(ctx, conn, cmd, log)
	if err != nil {
		result.Err = err
		log.WithError(err).Error("Probe failed")
		return result
	}

	m, ok := latency.Extract(raw)
	if !ok {
		log.WithField("output", latency.Summary(raw)).Warnf("Couldn't ping host: %s", target)
		return result
	}

	result.Measurement = &m
	return result
}

// runCommand executes cmd and returns stdout with trailing newlines and
// blanks removed. The exit status is not inspected.
func runCommand(ctx context.Context, conn connector.Connector, cmd string, log *logrus.Entry) (string, error) {
	log.Debugf("Executing command: %q", cmd)

	res, err := conn.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}

	if res.ExitCode != 0 || res.Stderr != "" {
		log.WithFields(logrus.Fields{
			"exit_code": res.ExitCode,
			"stderr":    strings.TrimSpace(res.Stderr),
		}).Debug("Command finished")
	}

	return strings.TrimRight(res.Stdout, "\r\n \t"), nil
}

func (e *Executor) parallel() int {
	if e.Parallel < 1 {
		return 1
	}
	return e.Parallel
}

func (e *Executor) log() *logrus.Entry {
	if e.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return e.Log
}
