// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the campaign service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	SES      SESConfig      `yaml:"ses"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Pacing   PacingConfig   `yaml:"pacing"`
	Progress ProgressConfig `yaml:"progress"`
	Storage  StorageConfig  `yaml:"storage"`
	Azure    AzureConfig    `yaml:"azure_openai"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SMTPConfig holds outbound SMTP session settings.
type SMTPConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SESConfig holds AWS SES credentials for the SES delivery provider.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// DeliveryConfig selects the outbound transport: "smtp" (default) or "ses".
type DeliveryConfig struct {
	Provider string `yaml:"provider"`
}

// PacingConfig holds default campaign pacing. Individual campaigns may
// override these per launch request.
type PacingConfig struct {
	MessageDelaySeconds int `yaml:"message_delay_seconds"`
	BatchSize           int `yaml:"batch_size"`
	BatchDelaySeconds   int `yaml:"batch_delay_seconds"`
}

// ProgressConfig tunes the progress publisher and snapshot retention.
type ProgressConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	RetentionMinutes    int `yaml:"retention_minutes"` // 0 = keep forever
}

// PollInterval returns the publisher poll interval.
func (p ProgressConfig) PollInterval() time.Duration {
	if p.PollIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// StorageConfig holds on-disk paths for uploads and saved templates.
type StorageConfig struct {
	UploadDir   string `yaml:"upload_dir"`
	TemplateDir string `yaml:"template_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// AzureConfig holds Azure OpenAI settings for the content improvement
// endpoint. AI features are disabled when APIKey or Endpoint is empty.
type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"deployment"`
}

// Enabled reports whether AI features can be used.
func (a AzureConfig) Enabled() bool {
	return a.APIKey != "" && a.Endpoint != ""
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is loaded first (if present) so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = p
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("DELIVERY_PROVIDER"); v != "" {
		cfg.Delivery.Provider = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
		cfg.Azure.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		cfg.Azure.Endpoint = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		cfg.Azure.APIVersion = v
	}
	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"); v != "" {
		cfg.Azure.Deployment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 25
	}
	if c.Delivery.Provider == "" {
		c.Delivery.Provider = "smtp"
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-east-1"
	}
	if c.Pacing.MessageDelaySeconds == 0 {
		c.Pacing.MessageDelaySeconds = 2
	}
	if c.Pacing.BatchSize == 0 {
		c.Pacing.BatchSize = 10
	}
	if c.Pacing.BatchDelaySeconds == 0 {
		c.Pacing.BatchDelaySeconds = 5
	}
	if c.Progress.PollIntervalSeconds == 0 {
		c.Progress.PollIntervalSeconds = 1
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.TemplateDir == "" {
		c.Storage.TemplateDir = "templates_saved"
	}
	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = 16
	}
	if c.Azure.APIVersion == "" {
		c.Azure.APIVersion = "2024-11-20-preview"
	}
	if c.Azure.Deployment == "" {
		c.Azure.Deployment = "gpt-4o"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// DefaultPacingSeconds exposes the configured pacing as raw seconds for
// handlers that build per-campaign pacing from request parameters.
func (c *Config) DefaultPacingSeconds() (msgDelay, batchSize, batchDelay int) {
	return c.Pacing.MessageDelaySeconds, c.Pacing.BatchSize, c.Pacing.BatchDelaySeconds
}
