package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TwoDSentinel/internal/recorder"
)

// Source kinds.
const (
	SourceSET    = "set"
	SourceYahoo  = "yahoo"
	SourceStatic = "static"
)

// Config holds all application configuration.
type Config struct {
	Timezone string `yaml:"timezone"`
	Server   struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Source struct {
		Kind           string  `yaml:"kind"`
		URL            string  `yaml:"url"`
		Symbol         string  `yaml:"symbol"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		// Static source values, for local runs.
		StaticSet   string `yaml:"static_set"`
		StaticValue string `yaml:"static_value"`
	} `yaml:"source"`
	Schedule struct {
		Tick string `yaml:"tick"`
	} `yaml:"schedule"`
	History struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
		JSONPath   string `yaml:"json_path"`
	} `yaml:"history"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env (if present) and the YAML file, then applies environment variable overrides.
// A missing YAML file is not an error: defaults and env cover a full configuration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("TIMEZONE", &c.Timezone)
	setString("HTTP_HOST", &c.Server.Host)
	setString("SOURCE_KIND", &c.Source.Kind)
	setString("SOURCE_URL", &c.Source.URL)
	setString("TICK_SPEC", &c.Schedule.Tick)
	setString("HISTORY_BACKEND", &c.History.Backend)
	setString("SQLITE_PATH", &c.History.SQLitePath)
	setString("HISTORY_JSON_PATH", &c.History.JSONPath)
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	setString("HTTPS_PROXY", &c.Proxy)

	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HTTP_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Yangon"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceSET
	}
	if c.Source.Symbol == "" {
		c.Source.Symbol = "SET"
	}
	if c.Source.TimeoutSeconds == 0 {
		c.Source.TimeoutSeconds = 8
	}
	if c.Source.RatePerSecond == 0 {
		c.Source.RatePerSecond = 1
	}
	if c.Schedule.Tick == "" {
		c.Schedule.Tick = "@every 1s"
	}
	if c.History.Backend == "" {
		c.History.Backend = recorder.BackendSQLite
	}
	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "data/twod.db"
	}
	if c.History.JSONPath == "" {
		c.History.JSONPath = "data/ResultsHistory.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Source.Kind {
	case SourceSET, SourceYahoo:
	case SourceStatic:
		if c.Source.StaticSet == "" {
			return fmt.Errorf("source.static_set is required for the static source")
		}
	default:
		return fmt.Errorf("source.kind %q must be one of set, yahoo, static", c.Source.Kind)
	}
	if c.Source.TimeoutSeconds < 0 {
		return fmt.Errorf("source.timeout_seconds must not be negative")
	}
	switch strings.ToLower(c.History.Backend) {
	case recorder.BackendSQLite, recorder.BackendJSON, recorder.BackendMemory:
	default:
		return fmt.Errorf("history.backend %q must be one of sqlite, json, memory", c.History.Backend)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Location loads the business time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Addr renders the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// FetchTimeout is the per-fetch bound for the quote source.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// HistoryPath returns the storage path for the selected backend.
func (c *Config) HistoryPath() string {
	if strings.EqualFold(c.History.Backend, recorder.BackendJSON) {
		return c.History.JSONPath
	}
	return c.History.SQLitePath
}

// TelegramEnabled reports whether result notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
