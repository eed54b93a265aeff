// Package config loads and validates the bot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/linktrim/linktrim/resolver"
)

// TokenEnvVar overrides the configured Telegram token when set.
const TokenEnvVar = "TELEGRAM_TOKEN"

// Config is the top-level configuration for the bot.
type Config struct {
	Telegram TelegramConfig  `yaml:"telegram"`
	Resolve  resolver.Config `yaml:"resolve"`
	Send     SendConfig      `yaml:"send"`
	Admin    AdminConfig     `yaml:"admin"`
	Rules    RulesConfig     `yaml:"rules"`
}

// New returns a Config with sensible defaults. The Telegram token has no
// default and must come from the file or the environment.
func New() *Config {
	return &Config{
		Resolve: resolver.Config{
			Timeout:              10 * time.Second,
			EnableSSRFProtection: true,
		},
	}
}

// TelegramConfig holds the bot credentials and the chat allowlist.
type TelegramConfig struct {
	Token        string  `yaml:"token,omitempty"`
	EnabledChats []int64 `yaml:"enabled_chats,omitempty"`
}

// SendConfig bounds outbound Telegram API calls.
type SendConfig struct {
	Rate  float64 `yaml:"rate,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// GetRate returns messages per second, defaulting under Telegram's ~30/s cap.
func (s *SendConfig) GetRate() float64 {
	if s.Rate > 0 {
		return s.Rate
	}
	return 25
}

// GetBurst returns the send burst capacity.
func (s *SendConfig) GetBurst() int {
	if s.Burst > 0 {
		return s.Burst
	}
	return 5
}

// AdminConfig configures the optional admin HTTP server.
type AdminConfig struct {
	Addr              string        `yaml:"addr,omitempty"`
	RedisURL          string        `yaml:"redis_url,omitempty"`
	RateLimitRequests int           `yaml:"rate_limit_requests,omitempty"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window,omitempty"`
}

// IsEnabled returns true when an admin listen address is configured.
func (a *AdminConfig) IsEnabled() bool {
	return a.Addr != ""
}

// GetRateLimitRequests returns the admin request limit per window.
func (a *AdminConfig) GetRateLimitRequests() int {
	if a.RateLimitRequests > 0 {
		return a.RateLimitRequests
	}
	return 60
}

// GetRateLimitWindow returns the admin rate limit window.
func (a *AdminConfig) GetRateLimitWindow() time.Duration {
	if a.RateLimitWindow > 0 {
		return a.RateLimitWindow
	}
	return time.Minute
}

// RulesConfig tunes the rewrite rule catalog.
type RulesConfig struct {
	Disable []string    `yaml:"disable,omitempty"`
	Extra   []ExtraRule `yaml:"extra,omitempty"`
}

// ExtraRule is a user-defined static-template rewrite appended after the
// built-in catalog.
type ExtraRule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Template string `yaml:"template"`
}

// LoadConfig loads configuration from a YAML file. The TELEGRAM_TOKEN
// environment variable, when set, takes precedence over the file's token.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.Telegram.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors. A malformed extra rule
// pattern is fatal here, at startup, never at message time.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (set telegram.token or %s)", TokenEnvVar)
	}

	for _, chatID := range c.Telegram.EnabledChats {
		if chatID == 0 {
			return fmt.Errorf("telegram.enabled_chats must not contain 0")
		}
	}

	if c.Send.Rate < 0 {
		return fmt.Errorf("send.rate must not be negative")
	}
	if c.Send.Burst < 0 {
		return fmt.Errorf("send.burst must not be negative")
	}

	if c.Resolve.Timeout < 0 {
		return fmt.Errorf("resolve.timeout must not be negative")
	}

	seen := make(map[string]bool)
	for i, rule := range c.Rules.Extra {
		if rule.Name == "" {
			return fmt.Errorf("rules.extra[%d]: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rules.extra[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true

		if rule.Pattern == "" {
			return fmt.Errorf("rules.extra[%d] (%s): pattern is required", i, rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("rules.extra[%d] (%s): invalid pattern: %w", i, rule.Name, err)
		}
		if rule.Template == "" {
			return fmt.Errorf("rules.extra[%d] (%s): template is required", i, rule.Name)
		}
	}

	return nil
}
