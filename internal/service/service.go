// Package service owns the auxiliary background processes a pipeline run
// depends on (mock API, static content server). Shutdown is tracked by
// process handle, never by name matching, so stopping a run can not take
// down unrelated processes.
package service

import "time"

// Status is the lifecycle state of an auxiliary service.
type Status string

const (
	StatusStarting Status = "starting"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded" // health budget exhausted, process still up
	StatusStopped  Status = "stopped"
)

// Spec describes a service to launch. HealthTarget overrides the URL built
// from Host/Port/HealthPath when set.
type Spec struct {
	Name         string
	Command      string
	Host         string
	Port         int
	HealthPath   string
	HealthTarget string
	Interval     time.Duration
	Attempts     int
	Mandatory    bool
	LogPath      string
}

const (
	defaultInterval = 500 * time.Millisecond
	defaultAttempts = 6
)
