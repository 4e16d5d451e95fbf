package orchestrator

import (
	"fmt"
	"time"

	"github.com/qgate/qgate/internal/report"
	"github.com/qgate/qgate/internal/service"
)

// ExecutionContext is the run-level state threaded through every component
// call: started service handles, accumulated stage results, and the
// environment every stage subprocess inherits. Nothing here is ambient or
// global; one run owns one context.
type ExecutionContext struct {
	Mode       string
	Seed       int64
	LogsDir    string
	ReportsDir string
	TmpDir     string

	Services []*service.Handle
	Results  []report.StageResult

	start time.Time
	state State
}

func newExecutionContext(mode string, seed int64) *ExecutionContext {
	return &ExecutionContext{
		Mode:  mode,
		Seed:  seed,
		start: time.Now(),
		state: StateInit,
	}
}

// State returns the current lifecycle state.
func (ec *ExecutionContext) State() State {
	return ec.state
}

func (ec *ExecutionContext) to(next State) error {
	if err := ValidateTransition(ec.state, next); err != nil {
		return err
	}
	ec.state = next
	return nil
}

// Env is the environment slice exported to every stage and service
// subprocess: execution mode, the deterministic seed, the run's scratch
// directory, and one address variable per ready service.
func (ec *ExecutionContext) Env() []string {
	env := []string{
		"QGATE_MODE=" + ec.Mode,
		fmt.Sprintf("QGATE_SEED=%d", ec.Seed),
	}
	if ec.TmpDir != "" {
		env = append(env, "QGATE_TMP="+ec.TmpDir)
	}
	for _, h := range ec.Services {
		if !h.Ready() {
			continue
		}
		env = append(env, fmt.Sprintf("QGATE_SERVICE_%s=%s:%d", envKey(h.Name), h.Host, h.Port))
	}
	return env
}

func envKey(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
