package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qgate/qgate/internal/config"
	"github.com/qgate/qgate/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [run_id]",
	Short: "List recent runs, or show one run's stages",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(cfgFile)
		if err != nil {
			return err
		}

		s, err := history.Open(filepath.Join(cfg.Dirs.Data, "qgate.db"))
		if err != nil {
			return err
		}
		defer s.Close()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return printStages(s, id)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		return printRuns(s, limit)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func printRuns(s *history.Store, limit int) error {
	runs, err := s.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs yet.")
		return nil
	}

	fmt.Printf("%-5s %-8s %-8s %-20s %-10s %s\n", "ID", "STATUS", "MODE", "STARTED", "DURATION", "ISSUES")
	for _, r := range runs {
		fmt.Printf("%-5d %-8s %-8s %-20s %-10s %d\n",
			r.ID, r.Status, r.Mode, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration, r.Issues)
	}
	return nil
}

func printStages(s *history.Store, id int64) error {
	stages, err := s.StagesForRun(id)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return fmt.Errorf("no stages recorded for run %d", id)
	}

	for _, st := range stages {
		switch {
		case st.Skipped:
			fmt.Printf("⚠ %s: skipped\n", st.Name)
		case st.TimedOut:
			fmt.Printf("✗ %s: timed out after %s\n", st.Name, st.Duration)
		case st.ExitCode != 0:
			fmt.Printf("✗ %s: exit %d (%s)\n", st.Name, st.ExitCode, st.Duration)
		case st.NotRun:
			fmt.Printf("✓ %s: passed, %s metric not extracted (%s)\n", st.Name, st.MetricKind, st.Duration)
		default:
			fmt.Printf("✓ %s: %s=%.2f (%s)\n", st.Name, st.MetricKind, st.MetricValue, st.Duration)
		}
	}
	return nil
}
