// Package report turns the collected metric records of a run into the
// quality-gate decision: one ExecutionReport value, rendered twice (JSON for
// CI, a styled table for humans).
package report

import (
	"time"

	"github.com/qgate/qgate/internal/metrics"
)

// Severity of a threshold breach.
type Severity string

const (
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// Threshold is the configured minimum for a metric kind, optionally pinned
// to a single stage. Configuration data, never derived at runtime.
type Threshold struct {
	Metric   metrics.Kind `json:"metric"`
	Stage    string       `json:"stage,omitempty"`
	Min      float64      `json:"min"`
	Severity Severity     `json:"severity"`
}

// StageResult pairs a stage's subprocess outcome with its extracted metric.
type StageResult struct {
	Name     string         `json:"name"`
	ExitCode int            `json:"exit_code"`
	TimedOut bool           `json:"timed_out,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
	Duration time.Duration  `json:"duration"`
	Metric   metrics.Record `json:"metric"`
}

// Status of the whole run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// ExecutionReport is the consolidated result of one pipeline run. Issues
// drive the exit code; Warnings are informational. Overall is done
// exactly when Issues is empty.
type ExecutionReport struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Mode      string        `json:"mode"`
	Seed      int64         `json:"seed"`
	PerStage  []StageResult `json:"stages"`
	Issues    []string      `json:"issues"`
	Warnings  []string      `json:"warnings"`
	Overall   Status        `json:"overall_status"`
}

// Failed reports whether the gate closed.
func (r *ExecutionReport) Failed() bool {
	return r.Overall == StatusFailed
}
