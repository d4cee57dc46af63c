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

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name           string        `yaml:"name"`            // redis list key
	Workers        int           `yaml:"workers"`         // consumer loops
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"` // blocking-pop bound
	MaxRetries     int           `yaml:"max_retries"`     // default per job
	ProcessingTTL  time.Duration `yaml:"processing_ttl"`  // liveness marker TTL
}

type AIConfig struct {
	OpenAIKey       string  `yaml:"openai_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"` // optional OpenAI-compatible gateway
	GeminiKey       string  `yaml:"gemini_key"`
	GeminiURL       string  `yaml:"gemini_url"`
	RescueModel     string  `yaml:"rescue_model"`
	Temperature     float64 `yaml:"temperature"`       // sampling variance for diagnosis
	PromptBudget    int     `yaml:"prompt_budget"`     // max prompt tokens for diagnosis
	ConcurrentLimit int     `yaml:"concurrent_limit"`  // max concurrent reasoning calls
	MinConfidence   float64 `yaml:"min_confidence"`    // auto-fix gate
}

type BotConfig struct {
	Token string `yaml:"token"`
}

type WebConfig struct {
	Port       int    `yaml:"port"`
	JWTSecret  string `yaml:"jwt_secret"`
	OutboxSize int    `yaml:"outbox_size"` // bound per-user outbound list
}

type IncidentConfig struct {
	Dir string `yaml:"dir"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	AI       AIConfig       `yaml:"ai"`
	Bot      BotConfig      `yaml:"bot"`
	Web      WebConfig      `yaml:"web"`
	Incident IncidentConfig `yaml:"incident"`

	Runtime RuntimeConfig `yaml:"-"`
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

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "task_queue"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.DequeueTimeout <= 0 {
		cfg.Queue.DequeueTimeout = 5 * time.Second
	}
	if cfg.Queue.MaxRetries <= 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.ProcessingTTL <= 0 {
		cfg.Queue.ProcessingTTL = 5 * time.Minute
	}
	if cfg.AI.RescueModel == "" {
		cfg.AI.RescueModel = "gpt-4o"
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.3
	}
	if cfg.AI.PromptBudget <= 0 {
		cfg.AI.PromptBudget = 8000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.MinConfidence <= 0 {
		cfg.AI.MinConfidence = 0.8
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.OutboxSize <= 0 {
		cfg.Web.OutboxSize = 100
	}
	if cfg.Incident.Dir == "" {
		cfg.Incident.Dir = "data/rescue_issues"
	}

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" {
		return nil, errors.New("one of ai.openai_key or ai.gemini_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
