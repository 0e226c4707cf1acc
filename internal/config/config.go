// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
	// FallbackUserID is used outside production when the host delivers no identity.
	FallbackUserID int64 `yaml:"fallback_user_id"`
}

type BackendConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`         // default request timeout
	UploadTimeout  time.Duration `yaml:"upload_timeout"`  // create-generation (multipart)
	PaymentTimeout time.Duration `yaml:"payment_timeout"` // create-payment
	RPS            float64       `yaml:"rps"`             // outbound throttle
	Burst          int           `yaml:"burst"`
	JWTSecret      string        `yaml:"jwt_secret"` // optional service token signing key
}

type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"`       // after a successful tick
	ErrorInterval time.Duration `yaml:"error_interval"` // after a transport error
	MaxAttempts   int           `yaml:"max_attempts"`
	ClickInterval time.Duration `yaml:"click_interval"` // click "awaiting payment" re-poll
}

type HTTPConfig struct {
	Port             int           `yaml:"port"`
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	EventsPerMinute  int           `yaml:"events_per_minute"`
	UploadsPerMinute int           `yaml:"uploads_per_minute"`
	MaxUploadMB      int           `yaml:"max_upload_mb"`
	InitDataMaxAge   time.Duration `yaml:"init_data_max_age"` // 0 keeps the default; negative disables
}

type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Workers       int           `yaml:"workers"` // background pool for chat delivery and snapshots
	CatalogTTL    time.Duration `yaml:"catalog_ttl"`
}

type BotConfig struct {
	Token    string `yaml:"token"` // validates init data; enables result DMs
	Username string `yaml:"username"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type I18nConfig struct {
	Lang string `yaml:"lang"`
}

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Poller  PollerConfig  `yaml:"poller"`
	HTTP    HTTPConfig    `yaml:"http"`
	Session SessionConfig `yaml:"session"`
	Bot     BotConfig     `yaml:"bot"`
	Log     LogConfig     `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	I18n    I18nConfig    `yaml:"i18n"`

	Runtime RuntimeConfig `yaml:"runtime"`
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML, applies defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}
	if cfg.HTTP.JWTSecret == "" && !dev {
		return nil, errors.New("http.jwt_secret is required outside dev mode")
	}
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required outside dev mode (init data is signed with it)")
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Backend.UploadTimeout <= 0 {
		cfg.Backend.UploadTimeout = 60 * time.Second
	}
	if cfg.Backend.PaymentTimeout <= 0 {
		cfg.Backend.PaymentTimeout = 60 * time.Second
	}
	if cfg.Backend.RPS <= 0 {
		cfg.Backend.RPS = 20
	}
	if cfg.Backend.Burst <= 0 {
		cfg.Backend.Burst = 40
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 2 * time.Second
	}
	if cfg.Poller.ErrorInterval <= 0 {
		cfg.Poller.ErrorInterval = 3 * time.Second
	}
	if cfg.Poller.MaxAttempts <= 0 {
		cfg.Poller.MaxAttempts = 60
	}
	if cfg.Poller.ClickInterval <= 0 {
		cfg.Poller.ClickInterval = 3 * time.Second
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.TokenTTL <= 0 {
		cfg.HTTP.TokenTTL = 24 * time.Hour
	}
	if cfg.HTTP.EventsPerMinute <= 0 {
		cfg.HTTP.EventsPerMinute = 60
	}
	if cfg.HTTP.UploadsPerMinute <= 0 {
		cfg.HTTP.UploadsPerMinute = 20
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 10
	}
	if cfg.HTTP.InitDataMaxAge == 0 {
		cfg.HTTP.InitDataMaxAge = 24 * time.Hour
	}
	if cfg.Session.IdleTTL <= 0 {
		cfg.Session.IdleTTL = 30 * time.Minute
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}
	if cfg.Session.Workers <= 0 {
		cfg.Session.Workers = 4
	}
	if cfg.Session.CatalogTTL <= 0 {
		cfg.Session.CatalogTTL = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.I18n.Lang == "" {
		cfg.I18n.Lang = "uz"
	}
	if cfg.Runtime.FallbackUserID == 0 {
		cfg.Runtime.FallbackUserID = 1046805799
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
