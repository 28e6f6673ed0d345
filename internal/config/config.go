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
}

type PayOSConfig struct {
	ClientID    string `yaml:"client_id"`
	APIKey      string `yaml:"api_key"`
	ChecksumKey string `yaml:"checksum_key"`
	PartnerCode string `yaml:"partner_code"`
	BaseURL     string `yaml:"base_url"` // override for testing; empty means production
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ListenerConfig struct {
	Port        int    `yaml:"port"`
	WebhookPath string `yaml:"webhook_path"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // replay marker lifetime
}

// UnmarshalYAML accepts ttl in time.ParseDuration form ("15m", "24h").
func (r *RedisConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		URL      string `yaml:"url"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	r.URL, r.Password, r.DB = raw.URL, raw.Password, raw.DB
	if raw.TTL != "" {
		d, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("redis.ttl: %w", err)
		}
		r.TTL = d
	}
	return nil
}

type DemoConfig struct {
	ReturnURL string `yaml:"return_url"`
	CancelURL string `yaml:"cancel_url"`
}

type Config struct {
	PayOS    PayOSConfig    `yaml:"payos"`
	Log      LogConfig      `yaml:"log"`
	Listener ListenerConfig `yaml:"listener"`
	Redis    RedisConfig    `yaml:"redis"`
	Demo     DemoConfig     `yaml:"demo"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Listener.Port <= 0 {
		cfg.Listener.Port = 8080
	}
	if cfg.Listener.WebhookPath == "" {
		cfg.Listener.WebhookPath = "/webhook/payos"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.Runtime.Dev = dev

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PayOS.ClientID == "" || c.PayOS.APIKey == "" || c.PayOS.ChecksumKey == "" {
		return errors.New("payos.client_id, payos.api_key and payos.checksum_key are required")
	}
	return nil
}

// normalizeTTL keeps the replay window sane: the gateway re-delivers
// webhooks for minutes, never for days.
func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	if ttl > 7*24*time.Hour {
		return 7 * 24 * time.Hour
	}
	return ttl
}
