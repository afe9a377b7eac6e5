package config

import (
	"fmt"
	"time"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	App       AppConfig       `yaml:"app"`
	Captcha   CaptchaConfig   `yaml:"captcha"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Roster    RosterConfig    `yaml:"roster"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AppConfig identifies the upstream rewards service and the browser
// extension this process impersonates.
type AppConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AppID       string        `yaml:"app_id"`
	ExtensionID string        `yaml:"extension_id"`
	Version     string        `yaml:"app_version"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CaptchaConfig contains the solver service configuration.
type CaptchaConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// SchedulerConfig contains account lifecycle timing configuration.
type SchedulerConfig struct {
	// MaxLoginAttempts bounds a single login drive, not the account lifetime.
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	StartupSpacing   time.Duration `yaml:"startup_spacing"`

	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	// PointsEvery refreshes points on every Nth keepalive tick.
	PointsEvery int `yaml:"points_every"`

	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	ExpiryMargin        time.Duration `yaml:"expiry_margin"`
}

// RosterConfig locates the account roster file.
type RosterConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// StoreConfig contains credential store configuration.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig contains the status API server configuration.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelegramConfig contains Telegram notifier configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// DashboardConfig contains terminal dashboard configuration.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	// RingSize is the number of entries kept for the dashboard log pane.
	RingSize int `yaml:"ring_size"`
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := c.Captcha.Validate(); err != nil {
		return fmt.Errorf("captcha: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := c.Roster.Validate(); err != nil {
		return fmt.Errorf("roster: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// Validate validates app configuration and applies defaults.
func (a *AppConfig) Validate() error {
	if a.BaseURL == "" {
		a.BaseURL = "https://www.aeropres.in"
	}
	if a.AppID == "" {
		a.AppID = "67d5987fede3e379578664b6"
	}
	if a.ExtensionID == "" {
		a.ExtensionID = "fpdkjdnhkakefebpekbdhillbhonfjjp"
	}
	if a.Version == "" {
		a.Version = "1.1.3"
	}
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
	return nil
}

// Validate validates captcha configuration and applies defaults.
func (c *CaptchaConfig) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.anti-captcha.com"
	}
	if c.APIKey == "" {
		return &errors.ErrConfigMissing{Key: "captcha.api_key"}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Minute
	}
	return nil
}

// Validate validates scheduler configuration and applies defaults.
func (s *SchedulerConfig) Validate() error {
	if s.MaxLoginAttempts < 0 {
		return fmt.Errorf("max_login_attempts cannot be negative")
	}
	if s.MaxLoginAttempts == 0 {
		s.MaxLoginAttempts = 10
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 3 * time.Second
	}
	if s.StartupSpacing < 0 {
		return fmt.Errorf("startup_spacing cannot be negative")
	}
	if s.StartupSpacing == 0 {
		s.StartupSpacing = 5 * time.Second
	}
	if s.KeepAliveInterval <= 0 {
		s.KeepAliveInterval = 180 * time.Second
	}
	if s.PointsEvery <= 0 {
		s.PointsEvery = 5
	}
	if s.ExpiryCheckInterval <= 0 {
		s.ExpiryCheckInterval = 3 * time.Hour
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = 156 * time.Hour
	}
	if s.ExpiryMargin <= 0 {
		s.ExpiryMargin = 6 * time.Hour
	}
	if s.ExpiryMargin >= s.TokenTTL {
		return fmt.Errorf("expiry_margin must be smaller than token_ttl")
	}
	return nil
}

// Validate validates roster configuration and applies defaults.
func (r *RosterConfig) Validate() error {
	if r.Path == "" {
		r.Path = "accounts.txt"
	}
	return nil
}

// Validate validates store configuration and applies defaults.
func (s *StoreConfig) Validate() error {
	if s.Path == "" {
		s.Path = "dawnkeeper.db"
	}
	return nil
}

// Validate validates server configuration and applies defaults.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 8480
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return &errors.ErrConfigMissing{Key: "telegram.bot_token"}
	}
	if t.ChatID == 0 {
		return &errors.ErrConfigMissing{Key: "telegram.chat_id"}
	}
	return nil
}

// Validate validates logging configuration and applies defaults.
func (l *LoggingConfig) Validate() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of: debug, info, warn, error")
	}
	if l.RingSize <= 0 {
		l.RingSize = 500
	}
	return nil
}

// Addr returns the host:port address the status server binds to.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
