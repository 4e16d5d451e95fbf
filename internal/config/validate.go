package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Validate checks struct constraints and the cross-references a decoded
// config can still get wrong: duplicate names, unparsable durations,
// thresholds pointing at stages that do not exist, notify targets without a
// service definition.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	stages := make(map[string]bool, len(c.Stages))
	for _, s := range c.Stages {
		if stages[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		stages[s.Name] = true

		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				return fmt.Errorf("stage %q: invalid timeout: %w", s.Name, err)
			}
		}
	}

	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if seen[svc.Name] {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		seen[svc.Name] = true

		if svc.Health.Interval != "" {
			if _, err := time.ParseDuration(svc.Health.Interval); err != nil {
				return fmt.Errorf("service %q: invalid health interval: %w", svc.Name, err)
			}
		}
	}

	for _, t := range c.Thresholds {
		if t.Stage != "" && !stages[t.Stage] {
			return fmt.Errorf("threshold references unknown stage %q", t.Stage)
		}
	}

	for _, n := range c.Notify.OnFailure {
		if _, ok := c.Notify.Services[n.Service]; !ok {
			return fmt.Errorf("notify target references unknown service %q", n.Service)
		}
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}

	return nil
}
