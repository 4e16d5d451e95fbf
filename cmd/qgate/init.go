package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `# qgate pipeline configuration.
mode: pr

services:
  - name: api
    command: npm run start:test
    port: 3000
    health: /health
    mandatory: true

stages:
  - name: unit
    command: npm test
    metric:
      kind: count
  - name: mutation
    command: npx stryker run
    policy: tolerant
    timeout: 30m
    modes: [nightly]
    metric:
      kind: score
      artifact: reports/mutation/mutation.json
      field: mutationScore

thresholds:
  - metric: score
    stage: mutation
    min: 80

# notify:
#   services:
#     team:
#       url: slack://token@channel
#   on_failure:
#     - team
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter qgate.yaml in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "qgate.yaml"
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, not overwriting", path)
		}
		if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s — edit the stages, then `qgate run`.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
