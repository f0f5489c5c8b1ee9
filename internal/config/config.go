// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token      string  `yaml:"token"`
	Mode       string  `yaml:"mode"` // polling | webhook
	WebhookURL string  `yaml:"webhook_url"`
	QueueDepth int     `yaml:"queue_depth"` // pending updates per operator
	AdminIDs   []int64 `yaml:"admin_ids"`
	Language   string  `yaml:"language"`   // locale of operator-facing texts
	RateLimit  int     `yaml:"rate_limit"` // events per operator per minute, negative disables
}

type ChannelConfig struct {
	// ID is either a numeric chat id or an @username.
	ID        string `yaml:"id"`
	Signature string `yaml:"signature"`
	ParseMode string `yaml:"parse_mode"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL        string        `yaml:"url"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai | gemini | noop
	OpenAIKey       string        `yaml:"openai_key"`
	BaseURL         string        `yaml:"base_url"` // OpenAI-compatible gateway
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	Model           string        `yaml:"model"`
	StylePrompt     string        `yaml:"style_prompt"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxInputTokens  int           `yaml:"max_input_tokens"`
}

type SchedulerConfig struct {
	Tick     time.Duration `yaml:"tick"`
	Workers  int           `yaml:"workers"`
	Timezone string        `yaml:"timezone"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Channel   ChannelConfig   `yaml:"channel"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

const defaultStylePrompt = "Write like a seasoned entrepreneur. Short, confident, concrete. " +
	"No filler, no emoji. Maximum value. The post is a digest of insights for the channel's subscribers."

// LoadConfig reads the YAML file at path (optional when every required value
// comes from the environment), loads .env files, and applies env overrides.
func LoadConfig(path string, dev bool) (*Config, error) {
	loadDotEnv()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// Values already present in the process environment win.
		_ = godotenv.Load(file)
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Bot.Token, "BOT_TOKEN")
	setString(&cfg.Bot.Mode, "BOT_MODE")
	setString(&cfg.Bot.WebhookURL, "WEBHOOK_URL")
	setString(&cfg.Channel.ID, "CHANNEL_ID")
	setString(&cfg.Channel.Signature, "CHANNEL_SIGNATURE")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.AI.Provider, "AI_PROVIDER")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Bot.Language, "BOT_LANGUAGE")

	if v := os.Getenv("ADMINS"); v != "" {
		if ids, err := parseIDs(v); err == nil {
			cfg.Bot.AdminIDs = ids
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// parseIDs parses a comma separated list of numeric ids.
func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("admin id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.QueueDepth <= 0 {
		cfg.Bot.QueueDepth = 16
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Bot.RateLimit == 0 {
		cfg.Bot.RateLimit = 30
	}
	if cfg.Channel.ParseMode == "" {
		cfg.Channel.ParseMode = "Markdown"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.SessionTTL = normalizeTTL(cfg.Redis.SessionTTL, 24*time.Hour)
	cfg.Redis.LockTTL = normalizeTTL(cfg.Redis.LockTTL, 2*time.Minute)

	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		default:
			cfg.AI.Provider = "noop"
		}
	}
	if cfg.AI.Model == "" {
		if strings.ToLower(cfg.AI.Provider) == "gemini" {
			cfg.AI.Model = "gemini-2.0-flash"
		} else {
			cfg.AI.Model = "gpt-4o"
		}
	}
	if cfg.AI.StylePrompt == "" {
		cfg.AI.StylePrompt = defaultStylePrompt
	}
	cfg.AI.Timeout = normalizeTTL(cfg.AI.Timeout, 60*time.Second)
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.MaxInputTokens <= 0 {
		cfg.AI.MaxInputTokens = 4000
	}

	cfg.Scheduler.Tick = normalizeTTL(cfg.Scheduler.Tick, time.Second)
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 2
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Local"
	}
}

// Validate performs the minimal checks needed to boot.
func (c *Config) Validate() error {
	if c.Bot.Token == "" && !c.Runtime.Dev {
		return errors.New("bot.token is required")
	}
	if c.Channel.ID == "" {
		return errors.New("channel.id is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	switch strings.ToLower(c.Bot.Mode) {
	case "polling":
	case "webhook":
		if c.Bot.WebhookURL == "" {
			return errors.New("bot.webhook_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("bot.mode %q is not supported", c.Bot.Mode)
	}
	if len(c.Bot.AdminIDs) == 0 {
		return errors.New("bot.admin_ids must list at least one operator")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}

// Location resolves scheduler.timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scheduler.Timezone)
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
