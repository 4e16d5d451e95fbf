package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultConfigPaths returns the search order for config files.
func DefaultConfigPaths() []string {
	paths := []string{"qgate.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "qgate", "config.yaml"))
	}
	return paths
}

// Resolve loads the config from the given explicit path, or searches the
// default locations. Environment settings (QGATE_MODE, QGATE_SEED) overlay
// the file, with a .env file in the working directory loaded first.
func Resolve(explicit string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	path, err := findConfig(explicit)
	if err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if mode := os.Getenv("QGATE_MODE"); mode != "" {
		cfg.Mode = mode
	}
	if cfg.Mode != "pr" && cfg.Mode != "nightly" {
		return nil, fmt.Errorf("unknown mode %q (want pr or nightly)", cfg.Mode)
	}

	if seed := os.Getenv("QGATE_SEED"); seed != "" {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing QGATE_SEED: %w", err)
		}
		cfg.Seed = n
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return cfg, nil
}

func findConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched %v)", DefaultConfigPaths())
}
