// Package config loads the YAML configuration file and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	LogLevel      string `yaml:"logLevel"`

	JWTSecret  string `yaml:"jwtSecret"`
	JWTIssuer  string `yaml:"jwtIssuer"`
	SessionTTL string `yaml:"sessionTTL"`
	EditTTL    string `yaml:"editTTL"`

	ClientURL     string `yaml:"clientURL"`
	SupportEmail  string `yaml:"supportEmail"`
	SiteName      string `yaml:"siteName"`
	SecureCookies bool   `yaml:"secureCookies"`

	ContactCooldown           string   `yaml:"contactCooldown"`
	AuthRateLimitPerMinute    int      `yaml:"authRateLimitPerMinute"`
	ContactRateLimitPerMinute int      `yaml:"contactRateLimitPerMinute"`
	TrustedProxies            []string `yaml:"trustedProxies"`

	Mail MailConfig `yaml:"mail"`
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	Provider    string `yaml:"provider"` // api, smtp, or log
	FromEmail   string `yaml:"fromEmail"`
	FromName    string `yaml:"fromName"`
	APIEndpoint string `yaml:"apiEndpoint"`
	APIKey      string `yaml:"apiKey"`
	SMTPHost    string `yaml:"smtpHost"`
	SMTPPort    int    `yaml:"smtpPort"`
	SMTPUser    string `yaml:"smtpUser"`
	SMTPPass    string `yaml:"smtpPass"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("CLIENT_URL"); v != "" {
		cfg.ClientURL = v
	}
	if v := os.Getenv("SUPPORT_EMAIL"); v != "" {
		cfg.SupportEmail = v
	}
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		cfg.Mail.Provider = v
	}
	if v := os.Getenv("MAIL_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		cfg.Mail.SMTPPass = v
	}
	if v := os.Getenv("CONTACT_COOLDOWN"); v != "" {
		cfg.ContactCooldown = v
	}
	if v := os.Getenv("AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuthRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("CONTACT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContactRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required for rate limiting")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if cfg.AuthRateLimitPerMinute < 0 || cfg.ContactRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	switch cfg.Mail.Provider {
	case "", "log":
	case "api":
		if cfg.Mail.APIKey == "" {
			return errors.New("config: mail.apiKey is required for the api provider")
		}
	case "smtp":
		if cfg.Mail.SMTPHost == "" {
			return errors.New("config: mail.smtpHost is required for the smtp provider")
		}
	default:
		return fmt.Errorf("config: unknown mail provider %q", cfg.Mail.Provider)
	}
	return nil
}

// ParseDuration parses an optional duration string like "15m" or "1h".
func ParseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	return dur, nil
}
