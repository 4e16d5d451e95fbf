package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/qgate/qgate/internal/config"
	"github.com/qgate/qgate/internal/history"
	"github.com/qgate/qgate/internal/notify"
	"github.com/qgate/qgate/internal/orchestrator"
	"github.com/qgate/qgate/internal/report"
	"github.com/qgate/qgate/internal/tui"
)

var noNotify bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: "Runs the full pipeline: services up, stages in order, metrics extracted, " +
		"report written. Exits non-zero when the quality gate fails.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		cfg, err := config.Resolve(cfgFile)
		if err != nil {
			return err
		}
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep, err := runPipeline(ctx, cmd, cfg, logger)
		if err != nil {
			return err
		}

		recordHistory(cfg, rep, logger)
		if rep.Failed() {
			notifyFailure(cfg, rep, logger)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("tui", false, "live terminal view (default: on when stdout is a terminal)")
	runCmd.Flags().String("mode", "", "override run mode (pr, nightly)")
	runCmd.Flags().Int64("seed", 0, "override the run seed")
	runCmd.Flags().BoolVar(&noNotify, "no-notify", false, "skip failure notifications")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays CLI flag values onto the config. Only flags
// explicitly set by the user are applied.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("mode") {
		cfg.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
}

func runPipeline(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*report.ExecutionReport, error) {
	o := orchestrator.New(cfg, logger)

	interactive := isatty.IsTerminal(os.Stdout.Fd())
	useTUI := interactive
	if cmd.Flags().Changed("tui") {
		useTUI, _ = cmd.Flags().GetBool("tui")
	}

	if !useTUI {
		rep, err := o.Run(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Print(rep.Render(interactive))
		return rep, nil
	}

	// The TUI owns the terminal while the run executes in the background.
	// Events are buffered; a stalled view must not stall the pipeline.
	events := make(chan orchestrator.Event, 64)
	o.OnEvent = func(ev orchestrator.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	var rep *report.ExecutionReport
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		rep, runErr = o.Run(ctx)
	}()

	if err := tui.Run(cfg.Mode, cfg.Seed, events); err != nil {
		logger.Warn("terminal view failed, run continues", "error", err)
	}
	<-done
	if runErr != nil {
		return nil, runErr
	}

	fmt.Print(rep.Render(true))
	return rep, nil
}

// recordHistory appends the run to the local history database. History is
// best-effort: a broken database never fails the run.
func recordHistory(cfg *config.Config, rep *report.ExecutionReport, logger *slog.Logger) {
	s, err := history.Open(filepath.Join(cfg.Dirs.Data, "qgate.db"))
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer s.Close()

	if _, err := s.RecordRun(rep); err != nil {
		logger.Warn("recording run failed", "error", err)
	}
}

func notifyFailure(cfg *config.Config, rep *report.ExecutionReport, logger *slog.Logger) {
	if len(cfg.Notify.OnFailure) == 0 || noNotify {
		return
	}

	data := notify.BuildTemplateData(rep)
	targets, err := notify.ResolveTargets(mapNotifyRefs(cfg.Notify.OnFailure), mapServiceDefs(cfg.Notify.Services), cfg.Notify.Template, data)
	if err != nil {
		logger.Error("resolving notify targets", "error", err)
		return
	}

	for _, t := range targets {
		if err := notify.Send(t); err != nil {
			logger.Error("notification failed", "service", t.ServiceName, "error", err)
			continue
		}
		logger.Info("notification sent", "service", t.ServiceName)
	}
}

func mapNotifyRefs(refs []config.NotifyTarget) []notify.NotifyRef {
	out := make([]notify.NotifyRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, notify.NotifyRef{ServiceName: r.Service, Template: r.Template, Params: r.Params})
	}
	return out
}

func mapServiceDefs(services map[string]config.Service) map[string]notify.ServiceDef {
	out := make(map[string]notify.ServiceDef, len(services))
	for name, s := range services {
		out[name] = notify.ServiceDef{URL: s.URL, Params: s.Params}
	}
	return out
}
