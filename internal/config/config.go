// Load envs from .env
// Load YAML config
// Apply env overrides and defaults
// Validate config

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/store"
)

// DefaultPath is where Load looks when no path is given
const DefaultPath = "configs/config.yaml"

const (
	MinPort = 1
	MaxPort = 65535
)

// Config is the process configuration. What the user edits at runtime
// (search URL, webhooks, schedule) lives in the stored settings instead.
type Config struct {
	Logging  logger.Config  `yaml:"logging"`
	Browser  browser.Config `yaml:"browser"`
	Store    store.Config   `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelegramConfig enables telegram notifications when Token is set
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Enabled reports whether a bot token is configured
func (t TelegramConfig) Enabled() bool { return t.Token != "" }

// WebhookConfig tunes outbound delivery
type WebhookConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

// ScrapeConfig tunes page stability and debugging output
type ScrapeConfig struct {
	SettleWindow     time.Duration `yaml:"settle_window"`
	StabilityCeiling time.Duration `yaml:"stability_ceiling"`
	ScreenshotDir    string        `yaml:"screenshot_dir"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Logging: logger.Config{Level: "info", Format: "console", Output: "stdout"},
		Browser: browser.Config{Headless: true, Locale: "en-US", CookiesPath: ".cookies/upwork.json"},
		Store:   store.Config{Backend: "file", Path: ".cache/store.json", RedisPrefix: "upwork:"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    10 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Webhook: WebhookConfig{Timeout: 30 * time.Second, Attempts: 3, BaseDelay: time.Second},
		Scrape: ScrapeConfig{
			SettleWindow:     browser.DefaultStability.Settle,
			StabilityCeiling: browser.DefaultStability.Ceiling,
			ScreenshotDir:    "logs/screenshots",
		},
	}
}

// Load reads .env, then the YAML file at path over the defaults, then the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}

	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Store.RedisURL = url
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Store.DatabaseURL = url
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
		c.Server.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if headless := os.Getenv("HEADLESS"); headless != "" {
		h, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS: %w", err)
		}
		c.Browser.Headless = h
	}
	if path := os.Getenv("COOKIES_PATH"); path != "" {
		c.Browser.CookiesPath = path
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	switch c.Store.Backend {
	case "", "file", "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store backend redis requires redis_url (or REDIS_URL)")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store backend postgres requires database_url (or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when a bot token is set")
	}

	if c.Webhook.Attempts < 1 {
		return fmt.Errorf("webhook attempts must be at least 1")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}

	if c.Scrape.SettleWindow <= 0 || c.Scrape.StabilityCeiling <= c.Scrape.SettleWindow {
		return fmt.Errorf("stability ceiling (%s) must exceed the settle window (%s)", c.Scrape.StabilityCeiling, c.Scrape.SettleWindow)
	}

	return nil
}

// Stability is the page stability config; the anti-bot window comes from settings
func (c *Config) Stability() browser.StabilityConfig {
	return browser.StabilityConfig{
		Settle:  c.Scrape.SettleWindow,
		AntiBot: browser.DefaultStability.AntiBot,
		Ceiling: c.Scrape.StabilityCeiling,
	}
}

// Addr is the listen address of the control API
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
