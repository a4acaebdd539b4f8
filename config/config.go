package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	// Addr enables the Redis-backed challenge store and event stream.
	// Empty means in-process alternatives.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	// SigningSecret signs session tokens. There is no default; startup
	// fails when it is unset.
	SigningSecret string        `yaml:"signing_secret"`
	TTL           time.Duration `yaml:"ttl"`
}

type ChallengeConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type EventsConfig struct {
	Enable bool `yaml:"enable"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Database: DatabaseConfig{
			DSN: "gateway.db",
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Challenge: ChallengeConfig{
			TTL:           5 * time.Minute,
			SweepInterval: time.Minute,
		},
		Events: EventsConfig{
			Enable: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load reads config from file with env var overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if addr := os.Getenv("GATEWAY_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if dsn := os.Getenv("GATEWAY_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("GATEWAY_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if secret := os.Getenv("GATEWAY_SESSION_SECRET"); secret != "" {
		cfg.Session.SigningSecret = secret
	}
	if level := os.Getenv("GATEWAY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Session.SigningSecret == "" {
		return ErrMissingSessionSecret
	}
	if c.Server.ListenAddr == "" {
		return ErrMissingListenAddr
	}
	if c.Database.DSN == "" {
		return ErrMissingDatabaseDSN
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 7 * 24 * time.Hour
	}
	if c.Challenge.TTL <= 0 {
		c.Challenge.TTL = 5 * time.Minute
	}
	if c.Challenge.SweepInterval <= 0 {
		c.Challenge.SweepInterval = time.Minute
	}
	return nil
}

var (
	ErrMissingSessionSecret = &Error{"session signing secret is required (GATEWAY_SESSION_SECRET)"}
	ErrMissingListenAddr    = &Error{"server listen address is required"}
	ErrMissingDatabaseDSN   = &Error{"database DSN is required"}
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
