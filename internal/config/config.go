package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionsPerDay      int    `yaml:"questionsPerDay"`
		MinCategoryQuestions int    `yaml:"minCategoryQuestions"`
		RetentionDays        int    `yaml:"retentionDays"`
		AdminSecret          string `yaml:"adminSecret"`
	} `yaml:"quiz"`
	StatsCache struct {
		MemoryTTL        string `yaml:"memoryTTL"`
		MetadataTTL      string `yaml:"metadataTTL"`
		MinQuestions     int    `yaml:"minQuestions"`
		CountConcurrency int    `yaml:"countConcurrency"`
	} `yaml:"statsCache"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Quiz.QuestionsPerDay <= 0 {
		c.Quiz.QuestionsPerDay = 10
	}
	if c.Quiz.MinCategoryQuestions <= 0 {
		c.Quiz.MinCategoryQuestions = 100
	}
	if c.Quiz.RetentionDays <= 0 {
		c.Quiz.RetentionDays = 30
	}
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
