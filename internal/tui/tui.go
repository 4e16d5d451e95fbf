// Package tui renders a live view of a pipeline run in the terminal. It
// consumes orchestrator events from a channel and exits on its own once
// the run finishes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qgate/qgate/internal/orchestrator"
)

type stageState int

const (
	statePending stageState = iota
	stateRunning
	statePassed
	stateFailed
	stateSkipped
)

type stageRow struct {
	name     string
	state    stageState
	exitCode int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	serviceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Model is the bubbletea model for one pipeline run.
type Model struct {
	mode string
	seed int64

	events <-chan orchestrator.Event
	spin   spinner.Model

	services []string
	stages   []stageRow
	verdict  string
	aborted  bool
}

// NewModel creates a run view fed by the given event channel. The channel
// must be closed or deliver a RunFinished event for the view to exit.
func NewModel(mode string, seed int64, events <-chan orchestrator.Event) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	return Model{
		mode:   mode,
		seed:   seed,
		events: events,
		spin:   sp,
	}
}

type eventMsg orchestrator.Event

type eventsClosedMsg struct{}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		m = m.apply(orchestrator.Event(msg))
		if m.verdict != "" {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) apply(ev orchestrator.Event) Model {
	switch ev.Kind {
	case orchestrator.EventServiceStarting:
		// Shown only once ready or failed; nothing to track yet.

	case orchestrator.EventServiceReady:
		m.services = append(m.services, fmt.Sprintf("%s (%s)", ev.Service, ev.Status))

	case orchestrator.EventStageStarted:
		m.stages = m.setStage(ev, stateRunning)

	case orchestrator.EventStageFinished:
		st := statePassed
		if ev.ExitCode != 0 {
			st = stateFailed
		}
		m.stages = m.setStage(ev, st)

	case orchestrator.EventStageSkipped:
		m.stages = m.setStage(ev, stateSkipped)

	case orchestrator.EventRunFinished:
		m.verdict = ev.Status
	}
	return m
}

// setStage updates the row at the event's index, growing the list with
// pending placeholders so stages appear in pipeline order.
func (m Model) setStage(ev orchestrator.Event, st stageState) []stageRow {
	rows := m.stages
	for len(rows) <= ev.Index {
		rows = append(rows, stageRow{state: statePending})
	}
	rows[ev.Index] = stageRow{name: ev.Stage, state: st, exitCode: ev.ExitCode}
	return rows
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("qgate") + dimStyle.Render(fmt.Sprintf("  mode=%s seed=%d", m.mode, m.seed)) + "\n\n")

	for _, s := range m.services {
		b.WriteString("  " + serviceStyle.Render("◆ "+s) + "\n")
	}
	if len(m.services) > 0 {
		b.WriteString("\n")
	}

	for _, row := range m.stages {
		switch row.state {
		case stateRunning:
			b.WriteString(fmt.Sprintf("  %s %s\n", m.spin.View(), row.name))
		case statePassed:
			b.WriteString("  " + passStyle.Render("✓") + " " + row.name + "\n")
		case stateFailed:
			b.WriteString("  " + failStyle.Render("✗") + fmt.Sprintf(" %s (exit %d)", row.name, row.exitCode) + "\n")
		case stateSkipped:
			b.WriteString("  " + warnStyle.Render("⚠") + " " + row.name + dimStyle.Render(" skipped") + "\n")
		default:
			b.WriteString("  " + dimStyle.Render("· pending") + "\n")
		}
	}

	switch {
	case m.verdict == "done":
		b.WriteString("\n" + passStyle.Render("Quality gate: PASSED") + "\n")
	case m.verdict != "":
		b.WriteString("\n" + failStyle.Render("Quality gate: FAILED") + "\n")
	case m.aborted:
		b.WriteString("\n" + dimStyle.Render("detached (run continues)") + "\n")
	default:
		b.WriteString("\n" + dimStyle.Render("[q] detach") + "\n")
	}

	return b.String()
}

// Run blocks until the run finishes or the user detaches. Events arriving
// while the program starts up are buffered by the channel, not dropped.
func Run(mode string, seed int64, events <-chan orchestrator.Event) error {
	p := tea.NewProgram(NewModel(mode, seed, events))
	_, err := p.Run()
	return err
}
