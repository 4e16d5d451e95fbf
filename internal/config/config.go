package config

import (
	"fmt"
	"os"

	"github.com/a8m/envsubst"
	"github.com/goccy/go-yaml"
)

type Config struct {
	Dirs       Dirs          `yaml:"dirs"`
	Mode       string        `yaml:"mode"`
	Seed       int64         `yaml:"seed"`
	Schedule   string        `yaml:"schedule"`
	Services   []ServiceSpec `yaml:"services" validate:"dive"`
	Stages     []StageSpec   `yaml:"stages" validate:"min=1,dive"`
	Thresholds []Threshold   `yaml:"thresholds" validate:"dive"`
	Notify     Notify        `yaml:"notify"`
}

type Dirs struct {
	Logs    string `yaml:"logs"`
	Reports string `yaml:"reports"`
	Data    string `yaml:"data"`
}

type ServiceSpec struct {
	Name      string `yaml:"name" validate:"required"`
	Command   string `yaml:"command" validate:"required"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"required,min=1,max=65535"`
	Health    Health `yaml:"health"`
	Mandatory bool   `yaml:"mandatory"`
}

// Health accepts either a plain path string or an object with polling
// overrides.
type Health struct {
	Path     string
	Interval string
	Attempts int
}

func (h *Health) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		h.Path = str
		return nil
	}

	var obj healthObj
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("health: must be a path string or an object with path/interval/attempts")
	}
	h.Path = obj.Path
	h.Interval = obj.Interval
	h.Attempts = obj.Attempts
	return nil
}

type healthObj struct {
	Path     string `yaml:"path"`
	Interval string `yaml:"interval"`
	Attempts int    `yaml:"attempts"`
}

type StageSpec struct {
	Name    string   `yaml:"name" validate:"required"`
	Command string   `yaml:"command" validate:"required"`
	Policy  string   `yaml:"policy" validate:"omitempty,oneof=fail-fast tolerant"`
	Timeout string   `yaml:"timeout"`
	Modes   []string `yaml:"modes" validate:"dive,oneof=pr nightly"`
	Metric  Metric   `yaml:"metric"`
}

// Metric accepts either a bare kind string ("presence") or an object naming
// the artifact field or log patterns to extract from.
type Metric struct {
	Kind     string `validate:"omitempty,oneof=count ratio score presence"`
	Artifact string
	Field    string
	Patterns []string
}

func (m *Metric) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		m.Kind = str
		return nil
	}

	var obj metricObj
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("metric: must be a kind string or an object with kind/artifact/field/patterns")
	}
	m.Kind = obj.Kind
	m.Artifact = obj.Artifact
	m.Field = obj.Field
	m.Patterns = obj.Patterns
	return nil
}

type metricObj struct {
	Kind     string   `yaml:"kind"`
	Artifact string   `yaml:"artifact"`
	Field    string   `yaml:"field"`
	Patterns []string `yaml:"patterns"`
}

type Threshold struct {
	Metric   string  `yaml:"metric" validate:"required,oneof=count ratio score presence"`
	Stage    string  `yaml:"stage"`
	Min      float64 `yaml:"min"`
	Severity string  `yaml:"severity" validate:"omitempty,oneof=warn fail"`
}

type Notify struct {
	Services  map[string]Service `yaml:"services"`
	OnFailure []NotifyTarget     `yaml:"on_failure"`
	Template  string             `yaml:"template"`
}

type Service struct {
	URL    string            `yaml:"url"`
	Params map[string]string `yaml:"params"`
}

// NotifyTarget handles a plain service name string or an object with overrides.
type NotifyTarget struct {
	Service  string            `yaml:"service"`
	Template string            `yaml:"template"`
	Params   map[string]string `yaml:"params"`
}

func (n *NotifyTarget) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		n.Service = str
		return nil
	}

	type notifyAlias NotifyTarget
	var obj notifyAlias
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("notify: must be a service name string or an object with service/template/params")
	}
	*n = NotifyTarget(obj)
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	data, err = envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dirs.Logs == "" {
		c.Dirs.Logs = "logs"
	}
	if c.Dirs.Reports == "" {
		c.Dirs.Reports = "reports"
	}
	if c.Dirs.Data == "" {
		c.Dirs.Data = "data"
	}
	if c.Mode == "" {
		c.Mode = "pr"
	}
	for i := range c.Services {
		if c.Services[i].Host == "" {
			c.Services[i].Host = "127.0.0.1"
		}
		if c.Services[i].Health.Path == "" {
			c.Services[i].Health.Path = "/health"
		}
	}
	for i := range c.Stages {
		if c.Stages[i].Policy == "" {
			c.Stages[i].Policy = "fail-fast"
		}
	}
}
