package orchestrator

import "fmt"

// State is the orchestrator's position in the run lifecycle.
type State string

const (
	StateInit             State = "init"
	StateServicesStarting State = "services_starting"
	StateServicesReady    State = "services_ready"
	StateStageRunning     State = "stage_running"
	StateStagesDone       State = "stages_done"
	StateAnalyzing        State = "analyzing"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateCleaningUp       State = "cleaning_up"
	StateTerminal         State = "terminal"
)

var allowedTransitions = map[State]map[State]struct{}{
	StateInit: {
		StateServicesStarting: {},
	},
	StateServicesStarting: {
		StateServicesReady: {},
		StateFailed:        {},
	},
	StateServicesReady: {
		StateStageRunning: {},
		StateStagesDone:   {},
	},
	StateStageRunning: {
		StateStageRunning: {},
		StateStagesDone:   {},
	},
	StateStagesDone: {
		StateAnalyzing: {},
	},
	StateAnalyzing: {
		StateDone:   {},
		StateFailed: {},
	},
	StateDone: {
		StateCleaningUp: {},
	},
	StateFailed: {
		StateCleaningUp: {},
	},
	StateCleaningUp: {
		StateTerminal: {},
	},
	StateTerminal: {},
}

// ValidateTransition reports whether from → to is a legal lifecycle move.
func ValidateTransition(from, to State) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("invalid run state: %q", from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("invalid run transition: %s -> %s", from, to)
	}
	return nil
}
