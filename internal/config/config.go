package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Models     []string   `yaml:"models"`
	Sandboxes  []string   `yaml:"sandboxes"`
	Tasks      []string   `yaml:"tasks"`
	Runs       int        `yaml:"runs"`
	Parallel   int        `yaml:"parallel"`
	Seed       int64      `yaml:"seed"`
	Gateway    Gateway    `yaml:"gateway"`
	Limits     Limits     `yaml:"limits"`
	Results    Results    `yaml:"results"`
	Workspaces Workspaces `yaml:"workspaces"`
	Pricing    Pricing    `yaml:"pricing"`
}

type Gateway struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
	MaxAttempts int    `yaml:"max_attempts"`
	RetryBaseMs int    `yaml:"retry_base_ms"`
	RetryCapMs  int    `yaml:"retry_cap_ms"`
	TurnDelayMs int    `yaml:"turn_delay_ms"`
}

// Limits holds every turn, size, and time budget in one place. Call sites
// never embed their own constants.
type Limits struct {
	MaxTurns       int `yaml:"max_turns"`
	Window         int `yaml:"window"`
	ObservationCap int `yaml:"observation_cap"`
	BashTimeoutS   int `yaml:"bash_timeout_s"`
	QueryRowCap    int `yaml:"query_row_cap"`
	SampleRows     int `yaml:"sample_rows"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Workspaces struct {
	Dir  string `yaml:"dir"`
	Keep bool   `yaml:"keep"`
}

type Pricing struct {
	Table string `yaml:"table"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no config file is
// present. It is the same struct Load produces, run through validate so the
// defaulting lives in exactly one place.
func Default() *Config {
	cfg := &Config{}
	if err := validate(cfg); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func validate(cfg *Config) error {
	if cfg.Runs < 0 {
		return fmt.Errorf("runs must not be negative")
	}
	if cfg.Runs == 0 {
		cfg.Runs = 1
	}
	if cfg.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative")
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 2
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{
			"claude-3-5-haiku-20241022",
			"claude-sonnet-4-20250514",
			"claude-opus-4-5",
		}
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Gateway.APIKeyEnv == "" {
		cfg.Gateway.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Gateway.MaxTokens == 0 {
		cfg.Gateway.MaxTokens = 2048
	}
	if cfg.Gateway.MaxAttempts == 0 {
		cfg.Gateway.MaxAttempts = 5
	}
	if cfg.Gateway.RetryBaseMs == 0 {
		cfg.Gateway.RetryBaseMs = 2000
	}
	if cfg.Gateway.RetryCapMs == 0 {
		cfg.Gateway.RetryCapMs = 60000
	}
	if cfg.Limits.MaxTurns < 0 {
		return fmt.Errorf("limits: max_turns must not be negative")
	}
	if cfg.Limits.MaxTurns == 0 {
		cfg.Limits.MaxTurns = 12
	}
	if cfg.Limits.Window == 0 {
		cfg.Limits.Window = 40
	}
	if cfg.Limits.ObservationCap == 0 {
		cfg.Limits.ObservationCap = 12000
	}
	if cfg.Limits.BashTimeoutS == 0 {
		cfg.Limits.BashTimeoutS = 20
	}
	if cfg.Limits.QueryRowCap == 0 {
		cfg.Limits.QueryRowCap = 200
	}
	if cfg.Limits.SampleRows == 0 {
		cfg.Limits.SampleRows = 5
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}
