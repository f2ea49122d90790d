// Package config loads the process-wide configuration. The struct is
// constructed once in main and passed explicitly to every component that
// needs it; nothing reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects the chat-completions endpoint the assistant talks to.
// The default targets DashScope's OpenAI-compatible mode.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	// MaxRounds bounds tool-call round-trips within one user turn.
	MaxRounds int `yaml:"max_rounds"`
}

// ServiceConfig describes one remote MCP service: the subprocess that
// speaks JSON-RPC over stdio plus its credentials.
type ServiceConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Enabled bool              `yaml:"enabled"`
	// TimeoutSeconds caps a single call to this service. 0 uses the
	// gateway default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MinIntervalMS spaces out consecutive calls to rate-limited
	// services (the maps API rejects bursts).
	MinIntervalMS int `yaml:"min_interval_ms"`
}

// MCPConfig groups the remote services.
type MCPConfig struct {
	Services []ServiceConfig `yaml:"services"`
}

// DispatchConfig tunes the tool dispatch loop.
type DispatchConfig struct {
	// Workers bounds concurrent tool calls within one orchestrator turn.
	Workers int `yaml:"workers"`
	// MaxRetries is the retry bound for transient service failures.
	// Total attempts per call are MaxRetries+1.
	MaxRetries int `yaml:"max_retries"`
	// RetryBackoffMS is the initial backoff, doubled per retry.
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
	// CallTimeoutSeconds caps a single tool execution.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// RetentionConfig controls the periodic cleanup sweep.
type RetentionConfig struct {
	// Schedule is a cron expression; empty disables the sweep.
	Schedule string `yaml:"schedule"`
	// ChartMaxAgeDays prunes rendered chart files older than this.
	ChartMaxAgeDays int `yaml:"chart_max_age_days"`
	// DoneTaskMaxAgeDays prunes done tasks not touched for this long.
	// 0 keeps them forever.
	DoneTaskMaxAgeDays int `yaml:"done_task_max_age_days"`
}

// OtelConfig controls trace/metric export. Endpoint empty means the
// stdout dev exporter only.
type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	BindAddr string `yaml:"bind_addr"`
	LogLevel string `yaml:"log_level"`

	LLM       LLMConfig       `yaml:"llm"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	MCP       MCPConfig       `yaml:"mcp"`
	Retention RetentionConfig `yaml:"retention"`
	Otel      OtelConfig      `yaml:"otel"`

	// APIKeys holds keys for local leaf tools. Known names: "amap"
	// (weather + maps), "serp" (web search). Env vars override:
	// AMAP_API_KEY, SERP_API_KEY.
	APIKeys map[string]string `yaml:"api_keys"`
}

// APIKey returns the named leaf-tool key. Env overrides are folded in
// during Load; nothing here touches the environment.
func (c Config) APIKey(name string) string {
	return c.APIKeys[name]
}

// Service returns the config for a named MCP service, if present.
func (c Config) Service(name string) (ServiceConfig, bool) {
	for _, s := range c.MCP.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceConfig{}, false
}

// Timeout is the per-call cap for this service. Falls back to 30s when
// the config leaves it unset.
func (s ServiceConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// MinInterval is the minimum spacing between consecutive calls.
func (s ServiceConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMS) * time.Millisecond
}

// DBPath is the sqlite file holding tasks and notes.
func (c Config) DBPath() string {
	return filepath.Join(c.HomeDir, "valet.db")
}

// ResourceDir holds generated artifacts (charts, downloaded images)
// served by the web gateway under /resource/.
func (c Config) ResourceDir() string {
	return filepath.Join(c.HomeDir, "resource")
}

// CallTimeout returns the per-call execution cap as a duration.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.Dispatch.CallTimeoutSeconds) * time.Second
}

// HomeDir resolves the data directory, honoring VALET_HOME.
func HomeDir() string {
	if override := os.Getenv("VALET_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".valet")
}

// ConfigPath returns the path to config.yaml within the home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// Load reads config.yaml under the home directory, writes the default
// file on first run, applies env overrides and normalizes defaults.
func Load(homeDir string) (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = homeDir

	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create valet home: %w", err)
	}

	path := ConfigPath(homeDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
		if werr := writeDefault(path); werr != nil {
			return cfg, werr
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("VALET_BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("VALET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Otel.Endpoint = v
	}
	for name, envVar := range map[string]string{
		"amap": "AMAP_API_KEY",
		"serp": "SERP_API_KEY",
	} {
		if v := os.Getenv(envVar); v != "" {
			if cfg.APIKeys == nil {
				cfg.APIKeys = map[string]string{}
			}
			cfg.APIKeys[name] = v
		}
	}
}

func normalize(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:18990"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "qwen-plus"
	}
	if cfg.LLM.MaxRounds <= 0 {
		cfg.LLM.MaxRounds = 6
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.MaxRetries < 0 {
		cfg.Dispatch.MaxRetries = 0
	}
	if cfg.Dispatch.RetryBackoffMS <= 0 {
		cfg.Dispatch.RetryBackoffMS = 500
	}
	if cfg.Dispatch.CallTimeoutSeconds <= 0 {
		cfg.Dispatch.CallTimeoutSeconds = 30
	}
	if cfg.Retention.ChartMaxAgeDays <= 0 {
		cfg.Retention.ChartMaxAgeDays = 30
	}
}

func defaultConfig() Config {
	return Config{
		BindAddr: "127.0.0.1:18990",
		LogLevel: "info",
		LLM: LLMConfig{
			BaseURL:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:     "qwen-plus",
			MaxRounds: 6,
		},
		Dispatch: DispatchConfig{
			Workers:            4,
			MaxRetries:         2,
			RetryBackoffMS:     500,
			CallTimeoutSeconds: 30,
		},
		Retention: RetentionConfig{
			Schedule:        "0 3 * * *",
			ChartMaxAgeDays: 30,
		},
		MCP: MCPConfig{
			Services: []ServiceConfig{
				{
					Name:    "amap-maps",
					Command: "npx",
					Args:    []string{"-y", "@amap/amap-maps-mcp-server"},
					Env:     map[string]string{"AMAP_MAPS_API_KEY": "$AMAP_API_KEY"},
					Enabled: false,
					// The maps API rejects bursts; space calls out.
					MinIntervalMS: 500,
				},
				{
					Name:    "12306",
					Command: "npx",
					Args:    []string{"-y", "12306-mcp"},
					Enabled: false,
				},
				{
					Name:    "fetch",
					Command: "uvx",
					Args:    []string{"mcp-server-fetch"},
					Enabled: false,
				},
			},
		},
	}
}

func writeDefault(path string) error {
	out, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write default config.yaml: %w", err)
	}
	return nil
}
