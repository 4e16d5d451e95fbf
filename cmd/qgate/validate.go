package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qgate/qgate/internal/config"
	"github.com/qgate/qgate/internal/notify"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without running anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Notify URLs only route at send time; check them now so a typo
		// does not surface on the first failing nightly run.
		for name, svc := range cfg.Notify.Services {
			if err := notify.Validate(notify.Target{ServiceName: name, URL: svc.URL}); err != nil {
				return err
			}
		}

		fmt.Printf("✓ Config OK: %d stage(s), %d service(s), %d threshold(s)\n",
			len(cfg.Stages), len(cfg.Services), len(cfg.Thresholds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
