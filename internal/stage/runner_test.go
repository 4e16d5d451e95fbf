package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesCombinedOutput(t *testing.T) {
	st := Stage{
		Name:    "unit",
		Command: "echo to-stdout; echo to-stderr >&2",
	}

	result, err := Run(context.Background(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
	if !strings.Contains(result.Output, "to-stdout") || !strings.Contains(result.Output, "to-stderr") {
		t.Errorf("output = %q, want both streams", result.Output)
	}
}

func TestRun_NonzeroExitIsData(t *testing.T) {
	st := Stage{Name: "unit", Command: "exit 3"}

	result, err := Run(context.Background(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if !result.Failed() {
		t.Error("expected Failed()")
	}
}

func TestRun_Timeout(t *testing.T) {
	st := Stage{
		Name:    "slow",
		Command: "sleep 5",
		Timeout: 50 * time.Millisecond,
	}

	result, err := Run(context.Background(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", result.ExitCode, ExitTimeout)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
}

func TestRun_TimeoutKillsBackgroundChildren(t *testing.T) {
	st := Stage{
		Name:    "watcher",
		Command: "sleep 30 & sleep 30",
		Timeout: 100 * time.Millisecond,
	}

	start := time.Now()
	result, err := Run(context.Background(), st, nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}

	// A background child inheriting the output pipe must not keep Run
	// blocked past the deadline.
	if elapsed > 2*time.Second {
		t.Fatalf("Run blocked %v waiting on orphaned child, timeout was %v", elapsed, st.Timeout)
	}
	if result.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", result.ExitCode, ExitTimeout)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
}

func TestRun_WritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "unit.log")
	st := Stage{Name: "unit", Command: "echo hello", LogPath: logPath}

	if _, err := Run(context.Background(), st, nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log = %q, want stage output", string(data))
	}
}

func TestRun_LogRegeneratedNotAppended(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "unit.log")
	st := Stage{Name: "unit", Command: "echo once", LogPath: logPath}

	for range 2 {
		if _, err := Run(context.Background(), st, nil); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "once"); got != 1 {
		t.Errorf("log contains %d runs, want 1", got)
	}
}

func TestRun_EnvPassedToStage(t *testing.T) {
	st := Stage{Name: "unit", Command: "echo seed=$QGATE_SEED"}

	result, err := Run(context.Background(), st, []string{"QGATE_SEED=1234"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Output, "seed=1234") {
		t.Errorf("output = %q, want seed env var", result.Output)
	}
}

func TestRun_TerminatedBeforeReturn(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "late")
	st := Stage{
		Name:    "bg",
		Command: "touch " + marker,
	}

	result, err := Run(context.Background(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d", result.ExitCode)
	}
	// The artifact written by the stage must already be visible.
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("artifact missing after Run returned: %v", err)
	}
}
