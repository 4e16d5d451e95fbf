package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/qgate/qgate/internal/config"
	"github.com/qgate/qgate/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the pipeline on a schedule",
	Long: "Starts the qgate daemon: runs the pipeline on the configured cron " +
		"schedule and reloads the config when the file changes. Overlapping " +
		"runs are skipped, not queued.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		cfgPath := cfgFile
		if cfgPath == "" {
			for _, p := range config.DefaultConfigPaths() {
				if _, err := os.Stat(p); err == nil {
					cfgPath = p
					break
				}
			}
		}

		d, err := newDaemon(cfgPath, logger)
		if err != nil {
			return err
		}

		runNow, _ := cmd.Flags().GetBool("run-now")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return d.run(ctx, runNow)
	},
}

func init() {
	startCmd.Flags().Bool("run-now", false, "run once immediately, then follow the schedule")
	rootCmd.AddCommand(startCmd)
}

type daemon struct {
	cfgPath string
	logger  *slog.Logger

	mu      sync.Mutex
	cfg     *config.Config
	running bool
}

func newDaemon(cfgPath string, logger *slog.Logger) (*daemon, error) {
	cfg, err := config.Resolve(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Schedule == "" {
		return nil, fmt.Errorf("daemon mode needs a schedule in the config (e.g. \"0 2 * * *\")")
	}
	return &daemon{cfgPath: cfgPath, logger: logger, cfg: cfg}, nil
}

func (d *daemon) run(ctx context.Context, runNow bool) error {
	c := cron.New()
	if _, err := c.AddFunc(d.schedule(), func() { d.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(d.cfgPath); err != nil {
		return fmt.Errorf("watching %s: %w", d.cfgPath, err)
	}

	c.Start()
	defer c.Stop()
	d.logger.Info("daemon started", "config", d.cfgPath, "schedule", d.schedule())

	if runNow {
		go d.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				d.reload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (d *daemon) schedule() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Schedule
}

// reload swaps in the changed config file. A config that fails to parse or
// validate keeps the previous one; the schedule itself stays fixed for the
// daemon's lifetime.
func (d *daemon) reload() {
	cfg, err := config.Resolve(d.cfgPath)
	if err != nil {
		d.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		d.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.logger.Info("config reloaded", "config", d.cfgPath)
}

func (d *daemon) runOnce(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn("previous run still in progress, skipping this tick")
		return
	}
	d.running = true
	cfg := d.cfg
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	rep, err := orchestrator.New(cfg, d.logger).Run(ctx)
	if err != nil {
		d.logger.Error("scheduled run failed to start", "error", err)
		return
	}

	recordHistory(cfg, rep, d.logger)
	if rep.Failed() {
		notifyFailure(cfg, rep, d.logger)
	}
}
