package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the gateway configuration. Loaded from YAML, then
// overridden from the environment for values that differ between
// deployments.
type Config struct {
	Listen string `yaml:"listen"`

	Books []BookConfig `yaml:"books"`

	Feed struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"feed"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// BookConfig names one (venue, symbol) pair to open at startup.
type BookConfig struct {
	Venue  string `yaml:"venue"`
	Symbol string `yaml:"symbol"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":8000"
	}
	if cfg.Feed.Buffer == 0 {
		cfg.Feed.Buffer = 64
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "disorderbook.feed"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if len(c.Books) == 0 {
		return fmt.Errorf("at least one book is required")
	}
	for i, b := range c.Books {
		if b.Venue == "" || b.Symbol == "" {
			return fmt.Errorf("book %d: venue and symbol are both required", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled with no brokers")
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("DISORDERBOOK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DISORDERBOOK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
}
