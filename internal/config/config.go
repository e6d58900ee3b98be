package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	HubSpot   HubSpotConfig   `yaml:"hubspot"`
	Email     EmailConfig     `yaml:"email"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings for the analytics cache
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// AdminConfig holds admin API authentication settings
type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

// MailchimpConfig holds Mailchimp API configuration
type MailchimpConfig struct {
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailchimpConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HubSpotConfig holds HubSpot API configuration
type HubSpotConfig struct {
	AccessToken    string `yaml:"access_token"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c HubSpotConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmailConfig holds notification email settings (AWS SES)
type EmailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
	SiteName  string `yaml:"site_name"`
}

// AnalyticsConfig holds analytics cache and retention settings
type AnalyticsConfig struct {
	CacheTTLMinutes  int `yaml:"cache_ttl_minutes"`
	RetentionDays    int `yaml:"retention_days"`
	RecentEventLimit int `yaml:"recent_event_limit"`
}

// CacheTTL returns the overview cache TTL as a duration
func (c AnalyticsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// Retention returns the event retention window as a duration
func (c AnalyticsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// WebhookConfig holds inbound webhook verification settings
type WebhookConfig struct {
	// SharedSecret signs inbound payloads; verification is skipped when empty.
	SharedSecret string `yaml:"shared_secret"`
}

// Load reads configuration from a YAML file and applies defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Mailchimp.TimeoutSeconds == 0 {
		cfg.Mailchimp.TimeoutSeconds = 15
	}
	if cfg.HubSpot.TimeoutSeconds == 0 {
		cfg.HubSpot.TimeoutSeconds = 15
	}
	if cfg.HubSpot.BaseURL == "" {
		cfg.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = "us-west-2"
	}
	if cfg.Email.SiteName == "" {
		cfg.Email.SiteName = "formbridge"
	}
	if cfg.Analytics.CacheTTLMinutes == 0 {
		cfg.Analytics.CacheTTLMinutes = 30
	}
	if cfg.Analytics.RetentionDays == 0 {
		cfg.Analytics.RetentionDays = 90
	}
	if cfg.Analytics.RecentEventLimit == 0 {
		cfg.Analytics.RecentEventLimit = 50
	}
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Admin.APIKey == "" {
		return fmt.Errorf("admin.api_key is required (or set ADMIN_API_KEY)")
	}
	return nil
}

// LoadFromEnv loads config from a YAML file with environment variable
// overrides. A missing file is not an error: container deployments run
// on env vars alone.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		applyDefaults(cfg)
	} else if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if key := os.Getenv("ADMIN_API_KEY"); key != "" {
		cfg.Admin.APIKey = key
	}
	if key := os.Getenv("MAILCHIMP_API_KEY"); key != "" {
		cfg.Mailchimp.APIKey = key
	}
	if token := os.Getenv("HUBSPOT_ACCESS_TOKEN"); token != "" {
		cfg.HubSpot.AccessToken = token
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.Email.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.Email.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Email.Region = region
	}
	if secret := os.Getenv("WEBHOOK_SHARED_SECRET"); secret != "" {
		cfg.Webhook.SharedSecret = secret
	}

	return cfg, nil
}
