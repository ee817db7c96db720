// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// TuningConfig covers the remote fine-tuning API and the control loop.
type TuningConfig struct {
	APIKey  string `yaml:"api_key"`  // overridden by OPENAI_API_KEY
	BaseURL string `yaml:"base_url"` // optional OpenAI-compatible gateway

	BaseModel     string `yaml:"base_model"`
	FallbackModel string `yaml:"fallback_model"`
	// SwitchAfter is the number of completed attempts before escalating to
	// the fallback model.
	SwitchAfter int `yaml:"switch_after"`
	// MaxRetries is the total attempt budget per lineage.
	MaxRetries          int `yaml:"max_retries"`
	WatchdogMinutes     int `yaml:"watchdog_minutes"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// RequestTimeoutSeconds bounds each remote call; defaults to half the
	// poll interval, capped at 30s.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	EventWindow           int `yaml:"event_window"`
}

type StoreConfig struct {
	// Dir holds the lineage snapshots, audit logs and upload descriptors.
	Dir string `yaml:"dir"`
	// MinInputBytes is the size floor under which a quarantined dataset is
	// not acceptable as training input.
	MinInputBytes int64 `yaml:"min_input_bytes"`
}

type AdminConfig struct {
	Port int `yaml:"port"` // status/metrics HTTP server; 0 disables
}

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Tuning TuningConfig `yaml:"tuning"`
	Store  StoreConfig  `yaml:"store"`
	Admin  AdminConfig  `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func (t TuningConfig) WatchdogThreshold() time.Duration {
	return time.Duration(t.WatchdogMinutes) * time.Minute
}

func (t TuningConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

func (t TuningConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSeconds) * time.Second
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// env overrides
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Tuning.APIKey = k
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Tuning.BaseModel == "" {
		cfg.Tuning.BaseModel = "gpt-4o-mini-2024-07-18"
	}
	if cfg.Tuning.FallbackModel == "" {
		cfg.Tuning.FallbackModel = "gpt-4o-2024-08-06"
	}
	if cfg.Tuning.SwitchAfter <= 0 {
		cfg.Tuning.SwitchAfter = 2
	}
	if cfg.Tuning.MaxRetries <= 0 {
		cfg.Tuning.MaxRetries = 3
	}
	if cfg.Tuning.WatchdogMinutes <= 0 {
		cfg.Tuning.WatchdogMinutes = 30
	}
	if cfg.Tuning.PollIntervalSeconds <= 0 {
		cfg.Tuning.PollIntervalSeconds = 60
	}
	if cfg.Tuning.EventWindow <= 0 {
		cfg.Tuning.EventWindow = 50
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "./artifacts"
	}
	if cfg.Store.MinInputBytes <= 0 {
		cfg.Store.MinInputBytes = 1024
	}

	// Minimal validation
	if cfg.Tuning.APIKey == "" {
		return nil, errors.New("tuning.api_key (or OPENAI_API_KEY) is required")
	}
	if cfg.Tuning.RequestTimeoutSeconds >= cfg.Tuning.PollIntervalSeconds && cfg.Tuning.RequestTimeoutSeconds > 0 {
		return nil, errors.New("tuning.request_timeout_seconds must be shorter than the poll interval")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
