package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
stages:
  - name: contract
    command: npm run test:contract
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Dirs.Logs != "logs" {
		t.Errorf("logs dir = %q, want %q", cfg.Dirs.Logs, "logs")
	}
	if cfg.Dirs.Reports != "reports" {
		t.Errorf("reports dir = %q, want %q", cfg.Dirs.Reports, "reports")
	}
	if cfg.Mode != "pr" {
		t.Errorf("mode = %q, want %q", cfg.Mode, "pr")
	}
	if cfg.Stages[0].Policy != "fail-fast" {
		t.Errorf("policy = %q, want %q", cfg.Stages[0].Policy, "fail-fast")
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("QGATE_TEST_CMD", "make verify")

	cfg, err := Load(writeConfig(t, `
stages:
  - name: verify
    command: ${QGATE_TEST_CMD}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stages[0].Command != "make verify" {
		t.Errorf("command = %q, want %q", cfg.Stages[0].Command, "make verify")
	}
}

func TestLoad_MetricUnion(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
stages:
  - name: ui
    command: npm run test:ui
    metric: presence
  - name: mutation
    command: npm run test:mutation
    metric:
      kind: score
      artifact: reports/mutation.json
      field: score
  - name: unit
    command: npm test
    metric:
      kind: count
      patterns:
        - '(\d+) passing'
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Stages[0].Metric.Kind != "presence" {
		t.Errorf("kind = %q, want %q", cfg.Stages[0].Metric.Kind, "presence")
	}
	if cfg.Stages[1].Metric.Field != "score" {
		t.Errorf("field = %q, want %q", cfg.Stages[1].Metric.Field, "score")
	}
	if len(cfg.Stages[2].Metric.Patterns) != 1 {
		t.Errorf("patterns = %v, want one entry", cfg.Stages[2].Metric.Patterns)
	}
}

func TestLoad_HealthUnion(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
services:
  - name: mock-api
    command: ./mock-api
    port: 4010
    health: /status
  - name: static
    command: ./static
    port: 8080
    health:
      path: /ping
      interval: 250ms
      attempts: 10
stages:
  - name: contract
    command: make contract
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Services[0].Health.Path != "/status" {
		t.Errorf("path = %q, want %q", cfg.Services[0].Health.Path, "/status")
	}
	if cfg.Services[1].Health.Attempts != 10 {
		t.Errorf("attempts = %d, want 10", cfg.Services[1].Health.Attempts)
	}
	if cfg.Services[0].Host != "127.0.0.1" {
		t.Errorf("host = %q, want default 127.0.0.1", cfg.Services[0].Host)
	}
}

func TestLoad_NotifyTargetUnion(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
stages:
  - name: s
    command: true
notify:
  services:
    slack:
      url: logger://
  on_failure:
    - slack
    - service: slack
      template: "custom {{gate.status}}"
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Notify.OnFailure[0].Service != "slack" {
		t.Errorf("service = %q, want %q", cfg.Notify.OnFailure[0].Service, "slack")
	}
	if cfg.Notify.OnFailure[1].Template == "" {
		t.Error("expected template override on second target")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: `
stages:
  - name: contract
    command: make contract
    timeout: 5m
thresholds:
  - metric: score
    min: 80
    severity: fail
`,
		},
		{
			name: "duplicate stage",
			yaml: `
stages:
  - name: a
    command: "true"
  - name: a
    command: "true"
`,
			wantErr: true,
		},
		{
			name: "bad timeout",
			yaml: `
stages:
  - name: a
    command: "true"
    timeout: fivemin
`,
			wantErr: true,
		},
		{
			name: "threshold unknown stage",
			yaml: `
stages:
  - name: a
    command: "true"
thresholds:
  - metric: score
    stage: nonexistent
    min: 80
`,
			wantErr: true,
		},
		{
			name: "bad policy",
			yaml: `
stages:
  - name: a
    command: "true"
    policy: sometimes
`,
			wantErr: true,
		},
		{
			name: "bad schedule",
			yaml: `
schedule: "not a cron line at all ever"
stages:
  - name: a
    command: "true"
`,
			wantErr: true,
		},
		{
			name: "notify unknown service",
			yaml: `
stages:
  - name: a
    command: "true"
notify:
  on_failure: [slack]
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_EnvOverlay(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QGATE_MODE", "nightly")
	t.Setenv("QGATE_SEED", "42")

	cfg, err := Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "nightly" {
		t.Errorf("mode = %q, want %q", cfg.Mode, "nightly")
	}
	if cfg.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Seed)
	}
}

func TestResolve_BadMode(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QGATE_MODE", "weekly")

	if _, err := Resolve(path); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestResolve_MissingConfig(t *testing.T) {
	if _, err := Resolve(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
