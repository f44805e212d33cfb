package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Audio     AudioConfig     `yaml:"audio"`
	History   HistoryConfig   `yaml:"history"`
	Providers ProvidersConfig `yaml:"providers"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type WorkerConfig struct {
	// ExtraPaths are prepended to PATH for the worker process so that
	// Homebrew-installed interpreters resolve in bundled builds.
	ExtraPaths          []string `yaml:"extra_paths"`
	HandshakeTimeout    string   `yaml:"handshake_timeout"`
	ReadyTimeout        string   `yaml:"ready_timeout"`
	HealthCheckInterval string   `yaml:"health_check_interval"`
	RecordingMode       string   `yaml:"recording_mode"`
	WorkMode            string   `yaml:"work_mode"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
}

type HistoryConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

type ProvidersConfig struct {
	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type MetricsConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if len(c.Worker.ExtraPaths) == 0 {
		c.Worker.ExtraPaths = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}
	}
	if c.Worker.HandshakeTimeout == "" {
		c.Worker.HandshakeTimeout = "25s"
	}
	if c.Worker.ReadyTimeout == "" {
		c.Worker.ReadyTimeout = "30s"
	}
	if c.Worker.HealthCheckInterval == "" {
		c.Worker.HealthCheckInterval = "30s"
	}
	if c.Worker.RecordingMode == "" {
		c.Worker.RecordingMode = "push-to-talk"
	}
	if c.Worker.WorkMode == "" {
		c.Worker.WorkMode = "conversation"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.History.Path == "" {
		c.History.Path = "./speekium.db"
	}
	if c.Providers.Ollama.BaseURL == "" {
		c.Providers.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Providers.OpenAI.BaseURL == "" {
		c.Providers.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
