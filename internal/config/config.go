package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends selectable with store.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"log"`
	Session struct {
		Duration int    `yaml:"duration" env:"SESSION_DURATION"`
		Tick     string `yaml:"tick" env:"SESSION_TICK"`
	} `yaml:"session"`
	Store struct {
		Backend string `yaml:"backend" env:"STORE_BACKEND"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Bolt struct {
		Path string `yaml:"path" env:"BOLT_PATH"`
	} `yaml:"bolt"`
	SQLite struct {
		Path string `yaml:"path" env:"SQLITE_PATH"`
	} `yaml:"sqlite"`
	AMQP struct {
		URL      string `yaml:"url" env:"AMQP_URL"`
		Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE"`
	} `yaml:"amqp"`
	Leaderboard struct {
		CacheTTL string `yaml:"cache_ttl" env:"LEADERBOARD_CACHE_TTL"`
		Top      int    `yaml:"top" env:"LEADERBOARD_TOP"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path, then lets the environment override it. A .env file in
// the working directory is loaded first if present. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Session.Duration <= 0 {
		c.Session.Duration = 120
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Bolt.Path == "" {
		c.Bolt.Path = "mathsprint.db"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "mathsprint.sqlite"
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "mathsprint.events"
	}
	if c.Leaderboard.Top <= 0 {
		c.Leaderboard.Top = 5
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
