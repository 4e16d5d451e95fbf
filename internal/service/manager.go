package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrServiceStart marks a service whose process could not be spawned or died
// before its first successful health probe. Always fatal for that service.
var ErrServiceStart = errors.New("service failed to start")

// Handle tracks one started service by process identity.
type Handle struct {
	Name         string
	PID          int
	Host         string
	Port         int
	HealthTarget string
	LogPath      string
	Mandatory    bool

	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}

	mu     sync.Mutex
	status Status
}

// Status returns the current lifecycle state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

// Ready reports whether stages may use this service.
func (h *Handle) Ready() bool {
	s := h.Status()
	return s == StatusHealthy || s == StatusDegraded
}

// Manager starts and stops auxiliary services.
type Manager struct {
	logger *slog.Logger
	client *http.Client
}

// NewManager creates a Manager with the given logger.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Start launches the service, redirects its output to spec.LogPath, and
// polls the health target at a fixed interval up to a bounded attempt count.
// A process that can not be spawned, or exits before a probe succeeds,
// yields ErrServiceStart. Exhausting the probe budget with the process still
// up is not an error: the handle comes back degraded and the caller decides.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Handle, error) {
	log := m.logger.With("service", spec.Name)

	target := spec.HealthTarget
	if target == "" {
		target = fmt.Sprintf("http://%s:%d%s", spec.Host, spec.Port, spec.HealthPath)
	}

	h := &Handle{
		Name:         spec.Name,
		Host:         spec.Host,
		Port:         spec.Port,
		HealthTarget: target,
		LogPath:      spec.LogPath,
		Mandatory:    spec.Mandatory,
		done:         make(chan struct{}),
		status:       StatusStarting,
	}

	if spec.LogPath != "" {
		f, err := os.Create(spec.LogPath)
		if err != nil {
			return nil, fmt.Errorf("creating service log: %w", err)
		}
		h.logFile = f
	}

	cmd := exec.Command("sh", "-c", spec.Command)
	if h.logFile != nil {
		cmd.Stdout = h.logFile
		cmd.Stderr = h.logFile
	}

	log.Info("starting service", "command", spec.Command)
	if err := cmd.Start(); err != nil {
		if h.logFile != nil {
			h.logFile.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrServiceStart, spec.Name, err)
	}
	h.cmd = cmd
	h.PID = cmd.Process.Pid

	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()

	interval := spec.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	attempts := spec.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	log.Info("waiting for health", "target", target, "attempts", attempts, "interval", interval)
	for i := range attempts {
		select {
		case <-h.done:
			m.release(h)
			return nil, fmt.Errorf("%w: %s exited before becoming healthy", ErrServiceStart, spec.Name)
		case <-ctx.Done():
			m.Stop(h)
			return nil, ctx.Err()
		default:
		}

		if m.probe(ctx, target) {
			h.setStatus(StatusHealthy)
			log.Info("service healthy", "pid", h.PID, "attempt", i+1)
			return h, nil
		}

		// No sleep after the last probe; the verdict is already in.
		if i < attempts-1 {
			time.Sleep(interval)
		}
	}

	select {
	case <-h.done:
		m.release(h)
		return nil, fmt.Errorf("%w: %s exited before becoming healthy", ErrServiceStart, spec.Name)
	default:
	}

	h.setStatus(StatusDegraded)
	log.Warn("health budget exhausted, continuing degraded", "pid", h.PID, "target", target)
	return h, nil
}

func (m *Manager) probe(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Stop terminates the owned process. Idempotent: stopping an already-stopped
// handle is a no-op. The process gets SIGTERM, then SIGKILL after a grace
// period.
func (m *Manager) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.status == StatusStopped {
		h.mu.Unlock()
		return
	}
	h.status = StatusStopped
	h.mu.Unlock()

	log := m.logger.With("service", h.Name, "pid", h.PID)

	select {
	case <-h.done:
		// Already exited on its own.
	default:
		log.Info("stopping service")
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-h.done:
		case <-time.After(3 * time.Second):
			log.Warn("service ignored SIGTERM, killing")
			_ = h.cmd.Process.Kill()
			<-h.done
		}
	}

	if h.logFile != nil {
		h.logFile.Close()
		h.logFile = nil
	}
	log.Info("service stopped")
}

// release cleans up a handle whose process already exited during startup.
func (m *Manager) release(h *Handle) {
	h.setStatus(StatusStopped)
	if h.logFile != nil {
		h.logFile.Close()
		h.logFile = nil
	}
}

// StopAll stops every handle, last started first.
func (m *Manager) StopAll(handles []*Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		m.Stop(handles[i])
	}
}
