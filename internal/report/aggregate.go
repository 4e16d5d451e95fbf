package report

import (
	"fmt"
	"time"

	"github.com/qgate/qgate/internal/metrics"
)

// Combine evaluates every stage result against the configured thresholds and
// produces the execution report. Deterministic and idempotent: identical
// inputs yield identical Issues, Warnings and Overall, with only the
// timestamp differing between calls.
//
// Classification rules:
//   - a stage that exited nonzero (or timed out) is an issue
//   - a skipped or not-run metric is a warning, never a crash and never a
//     stand-in zero value
//   - a metric at or above its threshold minimum passes; below it, the
//     threshold's severity decides issue vs warning
//
// runIssues carries run-level failures (a mandatory service that never came
// up) and is prepended verbatim.
func Combine(results []StageResult, thresholds []Threshold, runIssues []string) *ExecutionReport {
	r := &ExecutionReport{
		Timestamp: time.Now().UTC(),
		PerStage:  results,
		Issues:    append([]string(nil), runIssues...),
	}

	for _, sr := range results {
		if sr.Skipped {
			r.Warnings = append(r.Warnings, fmt.Sprintf("stage %s: not run (pipeline aborted earlier)", sr.Name))
			continue
		}

		if sr.TimedOut {
			r.Issues = append(r.Issues, fmt.Sprintf("stage %s: timed out (exit %d)", sr.Name, sr.ExitCode))
		} else if sr.ExitCode != 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("stage %s: exited %d", sr.Name, sr.ExitCode))
		}

		if sr.Metric.NotRun {
			r.Warnings = append(r.Warnings, fmt.Sprintf("stage %s: %s metric not extracted (source missing or unparsable)", sr.Name, sr.Metric.Kind))
			continue
		}

		th, ok := lookup(thresholds, sr)
		if !ok {
			continue
		}

		if sr.Metric.Value >= th.Min {
			continue
		}

		breach := fmt.Sprintf("stage %s: %s %.2f below minimum %.2f", sr.Name, sr.Metric.Kind, sr.Metric.Value, th.Min)
		if th.Severity == SeverityWarn {
			r.Warnings = append(r.Warnings, breach)
		} else {
			r.Issues = append(r.Issues, breach)
		}
	}

	if len(r.Issues) == 0 {
		r.Overall = StatusDone
	} else {
		r.Overall = StatusFailed
	}
	return r
}

// lookup finds the applicable threshold: a stage-pinned entry wins over a
// kind-level one.
func lookup(thresholds []Threshold, sr StageResult) (Threshold, bool) {
	var kindLevel *Threshold
	for i, th := range thresholds {
		if th.Metric != sr.Metric.Kind {
			continue
		}
		if th.Stage == sr.Name {
			return th, true
		}
		if th.Stage == "" && kindLevel == nil {
			kindLevel = &thresholds[i]
		}
	}
	if kindLevel != nil {
		return *kindLevel, true
	}
	return Threshold{}, false
}

// SkippedResult builds the placeholder row for a stage the pipeline never
// reached.
func SkippedResult(name string, kind metrics.Kind) StageResult {
	return StageResult{
		Name:    name,
		Skipped: true,
		Metric:  metrics.NotRunRecord(name, kind),
	}
}
