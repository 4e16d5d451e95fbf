package stage

import "time"

// FailurePolicy decides what a nonzero exit from a stage does to the rest of
// the pipeline.
type FailurePolicy string

const (
	// FailFast aborts all later stages.
	FailFast FailurePolicy = "fail-fast"
	// Tolerant records the failure and lets the pipeline continue.
	Tolerant FailurePolicy = "tolerant"
)

// Stage is one verification step in the fixed pipeline sequence. The slice
// order in the run configuration is the execution order.
type Stage struct {
	Name         string
	Command      string
	Policy       FailurePolicy
	Timeout      time.Duration
	ArtifactPath string
	LogPath      string
}

// Result captures a terminated stage subprocess. The runner guarantees the
// process is fully gone before a Result exists, so metric extraction can
// safely read whatever artifacts the stage left behind.
type Result struct {
	Stage    string
	ExitCode int
	Output   string
	Duration time.Duration
	TimedOut bool
}

// Failed reports whether the stage exited nonzero (including timeouts).
func (r Result) Failed() bool {
	return r.ExitCode != 0
}
