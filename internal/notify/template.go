package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/qgate/qgate/internal/report"
)

// TemplateData holds all data available to notification templates.
type TemplateData struct {
	Gate     map[string]string
	Issues   []string
	Warnings []string
}

// DefaultTemplate is used when neither the target nor the notify config
// names one.
const DefaultTemplate = `{{gate.status_emoji}} quality gate {{gate.status | upper}}: {{gate.issue_count}} issue(s), {{gate.warning_count}} warning(s) [{{gate.mode}} mode, seed {{gate.seed}}]`

// BuildTemplateData flattens a report into template-friendly maps.
func BuildTemplateData(rep *report.ExecutionReport) TemplateData {
	status := string(rep.Overall)
	gate := map[string]string{
		"status":        status,
		"status_emoji":  statusEmoji(rep.Overall),
		"issue_count":   fmt.Sprint(len(rep.Issues)),
		"warning_count": fmt.Sprint(len(rep.Warnings)),
		"mode":          rep.Mode,
		"seed":          fmt.Sprint(rep.Seed),
		"duration":      rep.Duration.String(),
		"stage_count":   fmt.Sprint(len(rep.PerStage)),
	}

	return TemplateData{
		Gate:     gate,
		Issues:   append([]string(nil), rep.Issues...),
		Warnings: append([]string(nil), rep.Warnings...),
	}
}

func statusEmoji(s report.Status) string {
	switch s {
	case report.StatusFailed:
		return "\U0001f534" // 🔴
	case report.StatusDone:
		return "\U0001f7e2" // 🟢
	default:
		return "\u2753" // ❓
	}
}

// Render executes a Go text/template string with Sprig functions and the
// custom accessor functions (gate, issues, warnings).
func Render(tmplStr string, data TemplateData) (string, error) {
	funcMap := sprig.TxtFuncMap()

	// Register accessor functions so {{gate.status}} works:
	// "gate" returns the gate map, then ".status" accesses a key.
	funcMap["gate"] = func() map[string]string { return data.Gate }
	funcMap["issues"] = func() []string { return data.Issues }
	funcMap["warnings"] = func() []string { return data.Warnings }
	funcMap["issue_lines"] = func() string { return strings.Join(data.Issues, "\n") }

	t, err := template.New("notify").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
