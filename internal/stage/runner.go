package stage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Exit codes synthesized by the runner when the subprocess never produced a
// real one. 124 matches coreutils timeout; 127 is the shell's command-not-found.
const (
	ExitTimeout  = 124
	ExitSpawnErr = 127
)

// Run executes the stage command as a subprocess and blocks until it has
// fully terminated. Combined stdout/stderr is captured and, when
// stage.LogPath is set, written there (truncated per run). Nonzero exits and
// timeouts are data in the Result, not errors; the only error path is
// failing to open the log file.
func Run(ctx context.Context, st Stage, env []string) (Result, error) {
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	var captured bytes.Buffer
	out := io.Writer(&captured)

	if st.LogPath != "" {
		f, err := os.Create(st.LogPath)
		if err != nil {
			return Result{Stage: st.Name}, fmt.Errorf("creating stage log: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(&captured, f)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", st.Command)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(), env...)

	// The stage runs in its own process group and the whole group is killed
	// on timeout. Killing only the shell would leave background children
	// alive holding the output pipe, and Wait would block past the deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 3 * time.Second

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stage:    st.Name,
		Output:   captured.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.ExitCode = ExitTimeout
			result.TimedOut = true
			return result, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = ExitSpawnErr
		result.Output += err.Error() + "\n"
		return result, nil
	}

	return result, nil
}
