package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Detector turns uploaded images into face observations
	DetectorType string `envconfig:"DETECTOR_TYPE" default:"mock"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Sessions
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"10m"`
	FrameRate       int           `envconfig:"FRAME_RATE" default:"5"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`
	Retention       time.Duration `envconfig:"SESSION_RETENTION" default:"24h"`
	RateLimit       int           `envconfig:"SESSION_RATE_LIMIT" default:"30"`

	// Completion webhook (optional)
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DetectorType {
	case "mock", "rekognition":
	default:
		return fmt.Errorf("DETECTOR_TYPE must be mock or rekognition, got %q", c.DetectorType)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("FRAME_RATE must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	return nil
}

// FrameInterval is the minimum spacing between two processed frames of a session.
// Zero disables sampling.
func (c *Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FrameRate)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
