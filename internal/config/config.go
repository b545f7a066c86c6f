package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"conecta/internal/catalog"
)

// Config models conecta.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	APIKeyEnv         string  `yaml:"api_key_env"`
}

type AnalysisConfig struct {
	// StrictJSONAfterTurns is the history length after which the model is
	// asked for pure JSON.
	StrictJSONAfterTurns int    `yaml:"strict_json_after_turns"`
	FallbackSpecialty    string `yaml:"fallback_specialty"`
	DefaultEstimateHours int    `yaml:"default_estimate_hours"`
}

// APIKey reads the provider key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	env := c.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return strings.TrimSpace(os.Getenv(env))
}

// Load reads and validates config from workspace. A missing file yields defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Log.Mode {
	case "", "dev", "prod":
	default:
		return fmt.Errorf("config.log.mode must be dev or prod")
	}
	switch c.LLM.Provider {
	case "openai", "echo":
	default:
		return fmt.Errorf("config.llm.provider must be openai or echo")
	}
	if c.LLM.Provider == "openai" && c.LLM.Model == "" {
		return fmt.Errorf("config.llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config.llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("config.llm.max_tokens must be positive")
	}
	if c.LLM.TimeoutSeconds < 0 || c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("config.llm timeouts and rate limits cannot be negative")
	}
	if c.Analysis.StrictJSONAfterTurns < 4 {
		return fmt.Errorf("config.analysis.strict_json_after_turns must be at least 4")
	}
	if !catalog.IsCode(c.Analysis.FallbackSpecialty) {
		return fmt.Errorf("config.analysis.fallback_specialty %q is not a catalog code", c.Analysis.FallbackSpecialty)
	}
	if c.Analysis.DefaultEstimateHours <= 0 {
		return fmt.Errorf("config.analysis.default_estimate_hours must be positive")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "conecta.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

database:
  path: ""

log:
  mode: dev

llm:
  provider: openai
  base_url: https://api.openai.com
  model: gpt-4o-mini
  temperature: 0.7
  max_tokens: 1500
  timeout_seconds: 60
  requests_per_minute: 0
  api_key_env: OPENAI_API_KEY

analysis:
  strict_json_after_turns: 6
  fallback_specialty: DESARROLLO_MEDIDA
  default_estimate_hours: 40
`
