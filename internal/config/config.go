package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default config file looked up in the working
// directory.
const ConfigFileName = "planforge.yaml"

// Config is the root configuration.
type Config struct {
	// Name labels the deployment in logs and telemetry.
	Name string `yaml:"name"`

	// Tiers is the ordered producer ladder, best model first.
	Tiers []TierConfig `yaml:"tiers"`

	// Execution controls how ready plans are run.
	Execution ExecutionConfig `yaml:"execution"`

	// Logging controls category log output.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry controls attempt-record persistence.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TierConfig describes one producer tier.
type TierConfig struct {
	// Provider selects the backend: "openai", "gemini", or "static".
	Provider string `yaml:"provider"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. The PLANFORGE_API_KEY
	// environment variable overrides it for every tier.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// MaxAttempts is the tier's retry budget.
	MaxAttempts int `yaml:"max_attempts"`

	// Timeout bounds a single producer call.
	Timeout time.Duration `yaml:"timeout"`
}

// ExecutionConfig controls plan execution.
type ExecutionConfig struct {
	// Concurrent enables the affinity-aware concurrent executor.
	Concurrent bool `yaml:"concurrent"`

	// MaxWorkers bounds concurrently running steps. Zero means unbounded.
	MaxWorkers int `yaml:"max_workers"`

	// SandboxDir is where file-writing operations are allowed to touch.
	SandboxDir string `yaml:"sandbox_dir"`
}

// LoggingConfig controls the category log files.
type LoggingConfig struct {
	// DebugMode enables debug-level entries.
	DebugMode bool `yaml:"debug_mode"`

	// Categories enables or disables individual categories. Empty means
	// all categories follow DebugMode.
	Categories map[string]bool `yaml:"categories"`

	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSONFormat switches entries to structured JSON lines.
	JSONFormat bool `yaml:"json_format"`
}

// TelemetryConfig controls attempt-record persistence.
type TelemetryConfig struct {
	// Enabled turns attempt tracking on.
	Enabled bool `yaml:"enabled"`

	// Path is the JSON file attempt summaries are persisted to.
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Name: "planforge",
		Execution: ExecutionConfig{
			Concurrent: false,
			MaxWorkers: 4,
			SandboxDir: ".planforge/sandbox",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    filepath.Join(".planforge", "telemetry.json"),
		},
	}
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. A present-but-unreadable file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "planforge"
	}
	if c.Execution.SandboxDir == "" {
		c.Execution.SandboxDir = ".planforge/sandbox"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telemetry.Path == "" {
		c.Telemetry.Path = filepath.Join(".planforge", "telemetry.json")
	}
	for i := range c.Tiers {
		if c.Tiers[i].MaxAttempts == 0 {
			c.Tiers[i].MaxAttempts = 2
		}
		if c.Tiers[i].Timeout == 0 {
			c.Tiers[i].Timeout = 120 * time.Second
		}
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv("PLANFORGE_API_KEY"); key != "" {
		for i := range c.Tiers {
			c.Tiers[i].APIKey = key
		}
	}
}

// Validate checks tier sanity before any producer is built.
func (c *Config) Validate() error {
	for i, t := range c.Tiers {
		switch t.Provider {
		case "openai", "gemini", "static":
		default:
			return fmt.Errorf("tier %d: unknown provider %q", i, t.Provider)
		}
		if t.Provider != "static" && t.Model == "" {
			return fmt.Errorf("tier %d: model is required for provider %q", i, t.Provider)
		}
		if t.MaxAttempts < 1 {
			return fmt.Errorf("tier %d: max_attempts must be at least 1", i)
		}
	}
	return nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigFileName
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
