// Package config loads the ticketpilot runtime configuration from an optional
// YAML file with environment variable overrides on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Escalation EscalationConfig `yaml:"escalation"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	LogLevel   string           `yaml:"log_level"`
}

// ProviderConfig selects the chat model backing the pipeline collaborators.
type ProviderConfig struct {
	Name   string `yaml:"name"` // groq, openai or claude
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig selects the embedding model behind the knowledge base.
type EmbeddingConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// WorkflowConfig holds the controller and collaborator knobs.
type WorkflowConfig struct {
	MaxRetries       int           `yaml:"max_retries"`
	StepTimeout      time.Duration `yaml:"step_timeout"`
	TopK             int           `yaml:"top_k"`
	ApproveThreshold float64       `yaml:"approve_threshold"`
}

// EscalationConfig selects the escalation log backend.
type EscalationConfig struct {
	Backend string `yaml:"backend"` // csv, postgres, redis or mongo
	CSVPath string `yaml:"csv_path"`
}

// KafkaConfig controls optional progress event publishing.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load reads configuration from path (skipped when missing), then applies
// environment overrides. An empty path falls back to config.yaml.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Provider: ProviderConfig{
			Name:  "groq",
			Model: "mixtral-8x7b-32768",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Workflow: WorkflowConfig{
			MaxRetries:       2,
			StepTimeout:      60 * time.Second,
			TopK:             5,
			ApproveThreshold: 0.7,
		},
		Escalation: EscalationConfig{
			Backend: "csv",
			CSVPath: "escalation_log.csv",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "ticketpilot-events",
		},
		LogLevel: "info",
	}

	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TICKETPILOT_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("TICKETPILOT_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("TICKETPILOT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("TICKETPILOT_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("TICKETPILOT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workflow.MaxRetries = n
		}
	}
	if v := os.Getenv("TICKETPILOT_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Workflow.StepTimeout = d
		}
	}
	if v := os.Getenv("TICKETPILOT_ESCALATION_BACKEND"); v != "" {
		cfg.Escalation.Backend = v
	}
	if v := os.Getenv("TICKETPILOT_ESCALATION_CSV_PATH"); v != "" {
		cfg.Escalation.CSVPath = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	v := NewValidator()

	v.ValidateOneOf("provider.name", c.Provider.Name, "groq", "openai", "claude")
	v.RequireNonEmpty("provider.model", c.Provider.Model)
	v.RequireNonNegative("workflow.max_retries", c.Workflow.MaxRetries)
	v.RequirePositive("workflow.top_k", c.Workflow.TopK)
	v.ValidateFloatRange("workflow.approve_threshold", c.Workflow.ApproveThreshold, 0.0, 1.0)
	v.ValidateOneOf("escalation.backend", c.Escalation.Backend, "csv", "postgres", "redis", "mongo")
	if c.Escalation.Backend == "csv" {
		v.RequireNonEmpty("escalation.csv_path", c.Escalation.CSVPath)
	}
	if c.Kafka.Enabled {
		v.RequireNonEmpty("kafka.topic", c.Kafka.Topic)
		if len(c.Kafka.Brokers) == 0 {
			v.RequireNonEmpty("kafka.brokers", "")
		}
	}
	v.RequirePositive("embedding.dimension", c.Embedding.Dimension)

	return v.Error()
}
