package notify

import (
	"strings"
	"testing"

	"github.com/qgate/qgate/internal/report"
)

func targets(t *testing.T, refs []NotifyRef, services map[string]ServiceDef, defaultTmpl string) []Target {
	t.Helper()
	data := BuildTemplateData(&report.ExecutionReport{Overall: report.StatusFailed, Mode: "pr"})
	out, err := ResolveTargets(refs, services, defaultTmpl, data)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestResolveTargets(t *testing.T) {
	out := targets(t,
		[]NotifyRef{{ServiceName: "ops"}},
		map[string]ServiceDef{"ops": {URL: "logger://"}},
		`gate {{gate.status}}`,
	)

	if len(out) != 1 {
		t.Fatalf("targets = %d, want 1", len(out))
	}
	if out[0].Message != "gate failed" {
		t.Errorf("message = %q, want %q", out[0].Message, "gate failed")
	}
	if out[0].URL != "logger://" {
		t.Errorf("url = %q, want %q", out[0].URL, "logger://")
	}
}

func TestResolveTargets_TemplatePrecedence(t *testing.T) {
	out := targets(t,
		[]NotifyRef{
			{ServiceName: "ops", Template: "override {{gate.status}}"},
			{ServiceName: "ops"},
		},
		map[string]ServiceDef{"ops": {URL: "logger://"}},
		"default {{gate.status}}",
	)

	if out[0].Message != "override failed" {
		t.Errorf("message = %q, want per-target override", out[0].Message)
	}
	if out[1].Message != "default failed" {
		t.Errorf("message = %q, want configured default", out[1].Message)
	}
}

func TestResolveTargets_BuiltinDefaultTemplate(t *testing.T) {
	out := targets(t,
		[]NotifyRef{{ServiceName: "ops"}},
		map[string]ServiceDef{"ops": {URL: "logger://"}},
		"",
	)

	if !strings.Contains(out[0].Message, "FAILED") {
		t.Errorf("message = %q, want builtin default rendering", out[0].Message)
	}
}

func TestResolveTargets_ParamMergeAndRender(t *testing.T) {
	out := targets(t,
		[]NotifyRef{{ServiceName: "ops", Params: map[string]string{"title": "gate {{gate.status}}"}}},
		map[string]ServiceDef{"ops": {URL: "logger://", Params: map[string]string{"title": "base", "channel": "ci"}}},
		"msg",
	)

	if out[0].Params["title"] != "gate failed" {
		t.Errorf("title = %q, want rendered override", out[0].Params["title"])
	}
	if out[0].Params["channel"] != "ci" {
		t.Errorf("channel = %q, want base param preserved", out[0].Params["channel"])
	}
}

func TestResolveTargets_UnknownService(t *testing.T) {
	data := BuildTemplateData(&report.ExecutionReport{Overall: report.StatusFailed})
	_, err := ResolveTargets([]NotifyRef{{ServiceName: "ghost"}}, nil, "", data)
	if err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestSend_LoggerService(t *testing.T) {
	err := Send(Target{ServiceName: "ops", URL: "logger://", Message: "quality gate failed"})
	if err != nil {
		t.Fatalf("send via logger service: %v", err)
	}
}

func TestValidate_BadURL(t *testing.T) {
	if err := Validate(Target{ServiceName: "ops", URL: "not-a-scheme"}); err == nil {
		t.Fatal("expected error for unroutable URL")
	}
}
