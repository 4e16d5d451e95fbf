package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/qgate/qgate/internal/report"
)

func failedReport() *report.ExecutionReport {
	return &report.ExecutionReport{
		Timestamp: time.Now().UTC(),
		Duration:  90 * time.Second,
		Mode:      "nightly",
		Seed:      1234,
		Issues:    []string{"stage mutation: score 60.00 below minimum 80.00"},
		Warnings:  []string{"stage ui: presence metric not extracted (source missing or unparsable)"},
		Overall:   report.StatusFailed,
	}
}

func TestBuildTemplateData(t *testing.T) {
	data := BuildTemplateData(failedReport())

	if data.Gate["status"] != "failed" {
		t.Errorf("status = %q, want %q", data.Gate["status"], "failed")
	}
	if data.Gate["issue_count"] != "1" {
		t.Errorf("issue_count = %q, want %q", data.Gate["issue_count"], "1")
	}
	if data.Gate["mode"] != "nightly" {
		t.Errorf("mode = %q, want %q", data.Gate["mode"], "nightly")
	}
	if data.Gate["status_emoji"] != "\U0001f534" {
		t.Errorf("status_emoji = %q, want red circle", data.Gate["status_emoji"])
	}
}

func TestRender_Accessors(t *testing.T) {
	data := BuildTemplateData(failedReport())

	got, err := Render(`{{gate.status | upper}} seed={{gate.seed}}`, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != "FAILED seed=1234" {
		t.Errorf("rendered = %q, want %q", got, "FAILED seed=1234")
	}
}

func TestRender_IssueLines(t *testing.T) {
	data := BuildTemplateData(failedReport())

	got, err := Render(`{{issue_lines}}`, data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "mutation") {
		t.Errorf("rendered = %q, want issue text", got)
	}
}

func TestRender_DefaultTemplate(t *testing.T) {
	data := BuildTemplateData(failedReport())

	got, err := Render(DefaultTemplate, data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "FAILED") || !strings.Contains(got, "1 issue(s)") {
		t.Errorf("rendered = %q, want verdict and issue count", got)
	}
}

func TestRender_BadTemplate(t *testing.T) {
	if _, err := Render(`{{gate.status`, TemplateData{}); err == nil {
		t.Fatal("expected parse error")
	}
}
