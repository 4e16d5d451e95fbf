package orchestrator

// EventKind tags progress events emitted during a run.
type EventKind int

const (
	EventServiceStarting EventKind = iota
	EventServiceReady
	EventStageStarted
	EventStageFinished
	EventStageSkipped
	EventRunFinished
)

// Event is a progress notification for live views. Emission is best-effort
// and never blocks the run.
type Event struct {
	Kind     EventKind
	Service  string
	Stage    string
	Index    int
	Total    int
	Status   string
	ExitCode int
}

func (o *Orchestrator) emit(ev Event) {
	if o.OnEvent != nil {
		o.OnEvent(ev)
	}
}
