// Package config loads CLI and server settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/inquiry/internal/adapters/sqlite"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	Fallback         string `mapstructure:"fallback"`
	MaxRevisions     int    `mapstructure:"max_revisions"`
	MaxSteps         int    `mapstructure:"max_steps"`
}

type CompressionConfig struct {
	Threshold int `mapstructure:"threshold"`
	KeepHead  int `mapstructure:"keep_head"`
	KeepTail  int `mapstructure:"keep_tail"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StoreConfig struct {
	Backend       string        `mapstructure:"backend"`
	Dir           string        `mapstructure:"dir"`
	Redis         RedisConfig   `mapstructure:"redis"`
	SQLite        sqlite.Config `mapstructure:"sqlite"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	MaskPatterns  []string      `mapstructure:"mask_patterns"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics string `mapstructure:"metrics"`
}

// ExecutorsConfig selects where step executors come from. With neither set, every step
// echoes its instruction.
type ExecutorsConfig struct {
	Script  string `mapstructure:"script"`
	Process string `mapstructure:"process"`
}

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Compression CompressionConfig `mapstructure:"compression"`
	Store       StoreConfig       `mapstructure:"store"`
	Server      ServerConfig      `mapstructure:"server"`
	Executors   ExecutorsConfig   `mapstructure:"executors"`
}

// Load reads cfgFile, or inquiry.yaml from the working directory or $HOME/.inquiry when
// cfgFile is empty. INQUIRY_* environment variables override the file; a missing file is
// not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.inquiry")
		v.SetConfigName("inquiry")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("INQUIRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every key gets a default.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot start with.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case string(logging.FormatText), string(logging.FormatJSON):
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Engine.Fallback != "" {
		id, ok := domain.ParseStepID(c.Engine.Fallback)
		if !ok || !id.IsWorker() {
			return fmt.Errorf("engine.fallback must be a worker step, got %q", c.Engine.Fallback)
		}
	}
	if c.Engine.FailureThreshold < 0 || c.Engine.MaxRevisions < 0 || c.Engine.MaxSteps < 0 {
		return errors.New("engine limits must not be negative")
	}
	if c.Compression.Threshold < 0 || c.Compression.KeepHead < 0 || c.Compression.KeepTail < 0 {
		return errors.New("compression settings must not be negative")
	}

	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (expected memory, file, redis or sqlite)", c.Store.Backend)
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			return fmt.Errorf("store.encryption_key: %w", err)
		}
	}
	for _, p := range c.Store.MaskPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("store.mask_patterns: %q: %w", p, err)
		}
	}

	if c.Executors.Script != "" && c.Executors.Process != "" {
		return errors.New("executors.script and executors.process are mutually exclusive")
	}
	return nil
}

// Fallback returns the configured emergency worker, or "" for the default.
func (c *Config) Fallback() domain.StepID {
	id, _ := domain.ParseStepID(c.Engine.Fallback)
	return id
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logging.FormatText))

	v.SetDefault("engine.failure_threshold", 3)
	v.SetDefault("engine.fallback", string(domain.StepCoder))
	v.SetDefault("engine.max_revisions", 0)
	v.SetDefault("engine.max_steps", 3000)

	v.SetDefault("compression.threshold", 6)
	v.SetDefault("compression.keep_head", 2)
	v.SetDefault("compression.keep_tail", 2)

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", ".inquiry/sessions")
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "inquiry:")
	v.SetDefault("store.redis.ttl", 24*time.Hour)
	v.SetDefault("store.sqlite.path", ".inquiry/inquiry.db")
	v.SetDefault("store.sqlite.in_memory", false)
	v.SetDefault("store.sqlite.enable_wal", true)
	v.SetDefault("store.sqlite.busy_timeout", 5*time.Second)
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.mask_patterns", []string{})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics", "")

	v.SetDefault("executors.script", "")
	v.SetDefault("executors.process", "")
}
