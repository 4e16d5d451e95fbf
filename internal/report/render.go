package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// JSON renders the structured form for machine consumption.
func (r *ExecutionReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Render renders the human-readable table. With styled false the output is
// plain text, suitable for files and non-TTY pipes.
func (r *ExecutionReport) Render(styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", style(titleStyle, fmt.Sprintf("QA pipeline report — %s mode, seed %d", r.Mode, r.Seed)))
	fmt.Fprintf(&b, "%s\n\n", r.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(&b, "  %-3s %-14s %-10s %10s %12s\n", "", "STAGE", "METRIC", "VALUE", "DURATION")
	for _, sr := range r.PerStage {
		icon, s := stageGlyph(sr)
		value := fmt.Sprintf("%.2f", sr.Metric.Value)
		if sr.Metric.NotRun {
			value = "-"
		}
		duration := sr.Duration.Round(time.Millisecond).String()
		if sr.Skipped {
			duration = "-"
		}
		fmt.Fprintf(&b, "  %-3s %-14s %-10s %10s %12s\n",
			style(s, icon), sr.Name, string(sr.Metric.Kind), value, duration)
	}

	if len(r.Issues) > 0 {
		fmt.Fprintf(&b, "\n%s\n", style(failStyle, "Issues:"))
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "  %s %s\n", style(failStyle, "✗"), issue)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\n%s\n", style(warnStyle, "Warnings:"))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s %s\n", style(warnStyle, "⚠"), w)
		}
	}

	b.WriteString("\n")
	if r.Failed() {
		fmt.Fprintf(&b, "%s\n", style(failStyle, fmt.Sprintf("Quality gate: FAILED (%d issue(s))", len(r.Issues))))
	} else {
		fmt.Fprintf(&b, "%s\n", style(passStyle, "Quality gate: PASSED"))
	}
	return b.String()
}

func stageGlyph(sr StageResult) (string, lipgloss.Style) {
	switch {
	case sr.Skipped:
		return "⚠", warnStyle
	case sr.ExitCode != 0:
		return "✗", failStyle
	case sr.Metric.NotRun:
		return "⚠", warnStyle
	default:
		return "✓", passStyle
	}
}

const (
	jsonFile    = "report.json"
	summaryFile = "summary.txt"
)

// WriteFiles persists both renderings into dir, regenerating (never
// appending) on each run.
func (r *ExecutionReport) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}

	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, jsonFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", jsonFile, err)
	}

	if err := os.WriteFile(filepath.Join(dir, summaryFile), []byte(r.Render(false)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", summaryFile, err)
	}
	return nil
}
