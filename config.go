package nestbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the host-level configuration read from nestbox.yaml.
type Config struct {
	// Image is the container image helpers run in.
	Image string `yaml:"image"`

	// NamePrefix is prepended to helper container names,
	// e.g. "nestbox-myproject" yields "nestbox-myproject-helper-3".
	NamePrefix string `yaml:"name_prefix"`

	// Entrypoint is the agent command executed inside a helper after the
	// init wrapper has registered with the hub.
	Entrypoint string `yaml:"entrypoint"`

	// Env holds extra environment variables for helper containers.
	Env map[string]string `yaml:"env"`

	// HelpersDisabled switches off the hub entirely.
	HelpersDisabled bool `yaml:"helpers_disabled"`

	// Spawn holds host-level spawn limits. Zero pointers mean
	// "not configured at this level".
	Spawn struct {
		Depth   *int `yaml:"depth"`
		Breadth *int `yaml:"breadth"`
	} `yaml:"spawn"`
}

// SpawnBudget returns the host-level spawn budget, or nil when the
// config does not set one.
func (c *Config) SpawnBudget() *SpawnBudget {
	if c.Spawn.Depth == nil && c.Spawn.Breadth == nil {
		return nil
	}
	budget := SpawnBudget{Depth: DefaultDepth, Breadth: DefaultBreadth}
	if c.Spawn.Depth != nil {
		budget.Depth = *c.Spawn.Depth
	}
	if c.Spawn.Breadth != nil {
		budget.Breadth = *c.Spawn.Breadth
	}
	return &budget
}

// LoadConfig reads the host config from path. A missing file is not an
// error; it yields a zero-value config so defaults apply.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
