// Package orchestrator drives one QA pipeline run end to end: start
// auxiliary services, execute the fixed stage sequence, extract metrics,
// aggregate the quality-gate report. Cleanup runs on every exit path.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/qgate/qgate/internal/config"
	"github.com/qgate/qgate/internal/metrics"
	"github.com/qgate/qgate/internal/report"
	"github.com/qgate/qgate/internal/service"
	"github.com/qgate/qgate/internal/stage"
)

const defaultStageTimeout = 10 * time.Minute

// Orchestrator owns the run lifecycle. One Orchestrator runs one pipeline at
// a time; stages are strictly sequential.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	services *service.Manager

	// OnEvent, when set, receives progress events (used by the TUI).
	OnEvent func(Event)
}

// New creates an Orchestrator for the given config.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		services: service.NewManager(logger),
	}
}

// boundStage is a stage with its metric extractor resolved up front, so a
// bad pattern or metric spec fails before anything starts.
type boundStage struct {
	stage     stage.Stage
	kind      metrics.Kind
	extractor metrics.Extractor
}

// Run executes the full pipeline and returns the consolidated report. The
// report is produced on every path, including early aborts; the returned
// error covers infrastructure problems only (unwritable directories), never
// stage failures — those live in the report.
func (o *Orchestrator) Run(ctx context.Context) (*report.ExecutionReport, error) {
	bound, err := o.buildStages()
	if err != nil {
		return nil, err
	}

	ec := newExecutionContext(o.cfg.Mode, o.cfg.Seed)
	ec.LogsDir = o.cfg.Dirs.Logs
	ec.ReportsDir = o.cfg.Dirs.Reports

	for _, dir := range []string{ec.LogsDir, ec.ReportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	tmp, err := os.MkdirTemp("", "qgate-run-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	ec.TmpDir = tmp

	defer o.cleanup(ec)

	log := o.logger.With("mode", ec.Mode, "seed", ec.Seed)
	log.Info("run starting", "stages", len(bound), "services", len(o.cfg.Services))

	var runIssues, runWarnings []string

	_ = ec.to(StateServicesStarting)
	for _, spec := range o.serviceSpecs() {
		o.emit(Event{Kind: EventServiceStarting, Service: spec.Name})
		h, err := o.services.Start(ctx, spec)
		if err != nil {
			if spec.Mandatory {
				log.Error("mandatory service failed to start", "service", spec.Name, "error", err)
				runIssues = append(runIssues, fmt.Sprintf("service %s: %v", spec.Name, err))
				_ = ec.to(StateFailed)
				for _, b := range bound {
					ec.Results = append(ec.Results, report.SkippedResult(b.stage.Name, b.kind))
				}
				return o.finish(ec, runIssues, runWarnings)
			}
			log.Warn("optional service failed to start", "service", spec.Name, "error", err)
			runWarnings = append(runWarnings, fmt.Sprintf("service %s: %v", spec.Name, err))
			continue
		}
		ec.Services = append(ec.Services, h)
		if h.Status() == service.StatusDegraded {
			// A mandatory service that never reported healthy fails the run
			// before any stage executes, live process or not.
			if spec.Mandatory {
				log.Error("mandatory service never became healthy", "service", h.Name)
				runIssues = append(runIssues, fmt.Sprintf("service %s: never became healthy within the probe budget", h.Name))
				_ = ec.to(StateFailed)
				for _, b := range bound {
					ec.Results = append(ec.Results, report.SkippedResult(b.stage.Name, b.kind))
				}
				return o.finish(ec, runIssues, runWarnings)
			}
			runWarnings = append(runWarnings, fmt.Sprintf("service %s: degraded (health check never succeeded)", h.Name))
		}
		o.emit(Event{Kind: EventServiceReady, Service: h.Name, Status: string(h.Status())})
	}
	_ = ec.to(StateServicesReady)

	aborted := false
	for i, b := range bound {
		if aborted {
			ec.Results = append(ec.Results, report.SkippedResult(b.stage.Name, b.kind))
			o.emit(Event{Kind: EventStageSkipped, Stage: b.stage.Name, Index: i, Total: len(bound)})
			continue
		}

		_ = ec.to(StateStageRunning)
		o.emit(Event{Kind: EventStageStarted, Stage: b.stage.Name, Index: i, Total: len(bound)})
		stageLog := log.With("stage", b.stage.Name)
		stageLog.Info("stage starting", "policy", b.stage.Policy, "timeout", b.stage.Timeout)

		res, err := stage.Run(ctx, b.stage, ec.Env())
		if err != nil {
			// Log file could not be created; the stage never ran.
			res = stage.Result{Stage: b.stage.Name, ExitCode: stage.ExitSpawnErr, Output: err.Error()}
		}

		rec := b.extractor.Extract(b.stage.Name, res.Output)
		ec.Results = append(ec.Results, report.StageResult{
			Name:     b.stage.Name,
			ExitCode: res.ExitCode,
			TimedOut: res.TimedOut,
			Duration: res.Duration,
			Metric:   rec,
		})
		o.emit(Event{Kind: EventStageFinished, Stage: b.stage.Name, Index: i, Total: len(bound), ExitCode: res.ExitCode})

		if res.Failed() {
			stageLog.Error("stage failed", "exit_code", res.ExitCode, "timed_out", res.TimedOut)
			if b.stage.Policy == stage.FailFast {
				stageLog.Error("fail-fast policy, aborting remaining stages")
				aborted = true
			}
		} else {
			stageLog.Info("stage finished", "duration", res.Duration, "metric", rec.Value, "not_run", rec.NotRun)
		}
	}
	_ = ec.to(StateStagesDone)

	_ = ec.to(StateAnalyzing)
	rep, err := o.finish(ec, runIssues, runWarnings)
	if err != nil {
		return rep, err
	}
	if rep.Failed() {
		_ = ec.to(StateFailed)
	} else {
		_ = ec.to(StateDone)
	}
	return rep, nil
}

// finish aggregates the collected records, writes both report files, and
// emits the final event.
func (o *Orchestrator) finish(ec *ExecutionContext, runIssues, runWarnings []string) (*report.ExecutionReport, error) {
	rep := report.Combine(ec.Results, o.thresholds(), runIssues)
	rep.Mode = ec.Mode
	rep.Seed = ec.Seed
	rep.Duration = time.Since(ec.start)
	rep.Warnings = append(append([]string(nil), runWarnings...), rep.Warnings...)

	o.emit(Event{Kind: EventRunFinished, Status: string(rep.Overall)})
	o.logger.Info("run analyzed", "status", rep.Overall, "issues", len(rep.Issues), "warnings", len(rep.Warnings))

	if err := rep.WriteFiles(ec.ReportsDir); err != nil {
		return rep, err
	}
	return rep, nil
}

// cleanup stops every started service and removes the run's scratch
// directory. Deferred from Run, so it executes regardless of how the run
// ended.
func (o *Orchestrator) cleanup(ec *ExecutionContext) {
	if err := ec.to(StateCleaningUp); err != nil {
		ec.state = StateCleaningUp
	}
	o.services.StopAll(ec.Services)
	if ec.TmpDir != "" {
		os.RemoveAll(ec.TmpDir)
	}
	_ = ec.to(StateTerminal)
	o.logger.Info("run cleaned up", "services_stopped", len(ec.Services))
}

func (o *Orchestrator) serviceSpecs() []service.Spec {
	specs := make([]service.Spec, 0, len(o.cfg.Services))
	for _, s := range o.cfg.Services {
		interval, _ := time.ParseDuration(s.Health.Interval)
		specs = append(specs, service.Spec{
			Name:       s.Name,
			Command:    s.Command,
			Host:       s.Host,
			Port:       s.Port,
			HealthPath: s.Health.Path,
			Interval:   interval,
			Attempts:   s.Health.Attempts,
			Mandatory:  s.Mandatory,
			LogPath:    filepath.Join(o.cfg.Dirs.Logs, "service-"+s.Name+".log"),
		})
	}
	return specs
}

// buildStages maps the config stages active in the current mode onto
// runnable stages with compiled extractors.
func (o *Orchestrator) buildStages() ([]boundStage, error) {
	var bound []boundStage
	for _, s := range o.cfg.Stages {
		if len(s.Modes) > 0 && !slices.Contains(s.Modes, o.cfg.Mode) {
			continue
		}

		timeout := defaultStageTimeout
		if s.Timeout != "" {
			d, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, fmt.Errorf("stage %q: invalid timeout: %w", s.Name, err)
			}
			timeout = d
		}

		st := stage.Stage{
			Name:         s.Name,
			Command:      s.Command,
			Policy:       stage.FailurePolicy(s.Policy),
			Timeout:      timeout,
			ArtifactPath: s.Metric.Artifact,
			LogPath:      filepath.Join(o.cfg.Dirs.Logs, s.Name+".log"),
		}

		ex, kind, err := buildExtractor(s.Metric, st.LogPath)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name, err)
		}

		bound = append(bound, boundStage{stage: st, kind: kind, extractor: ex})
	}
	if len(bound) == 0 {
		return nil, fmt.Errorf("no stages active in mode %q", o.cfg.Mode)
	}
	return bound, nil
}

// Fallback patterns for the log formats the common test tools emit.
var defaultPatterns = map[metrics.Kind][]string{
	metrics.KindCount: {
		`(\d+) passing`,
		`Tests: (\d+) passed`,
		`(\d+) passed`,
	},
	metrics.KindRatio: {
		`scenarios: \d+ passed: (\d+) failed: (\d+)`,
	},
	metrics.KindScore: {
		`mutation score of (\d+(?:\.\d+)?)`,
	},
}

func buildExtractor(m config.Metric, logPath string) (metrics.Extractor, metrics.Kind, error) {
	kind := metrics.Kind(m.Kind)
	if kind == "" {
		kind = metrics.KindPresence
	}

	if kind == metrics.KindPresence {
		path := m.Artifact
		if path == "" {
			path = logPath
		}
		return metrics.Presence{Path: path}, kind, nil
	}

	if m.Artifact != "" {
		field := m.Field
		if field == "" {
			field = "score"
		}
		return metrics.ArtifactField{Kind: kind, Path: m.Artifact, Field: field}, kind, nil
	}

	patterns := m.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns[kind]
	}
	if len(patterns) == 0 {
		return nil, kind, fmt.Errorf("metric %s needs an artifact or patterns", kind)
	}
	ex, err := metrics.NewPattern(kind, patterns)
	if err != nil {
		return nil, kind, err
	}
	return ex, kind, nil
}

func (o *Orchestrator) thresholds() []report.Threshold {
	ths := make([]report.Threshold, 0, len(o.cfg.Thresholds))
	for _, t := range o.cfg.Thresholds {
		sev := report.Severity(t.Severity)
		if sev == "" {
			sev = report.SeverityFail
		}
		ths = append(ths, report.Threshold{
			Metric:   metrics.Kind(t.Metric),
			Stage:    t.Stage,
			Min:      t.Min,
			Severity: sev,
		})
	}
	return ths
}
