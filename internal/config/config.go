// Package config loads the parlance settings from a config file, the
// environment (PARLANCE_*) and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/flows"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PARLANCE_SERVER_ADDR.
const EnvPrefix = "PARLANCE"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Flow       FlowConfig       `mapstructure:"flow"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`
}

// FlowConfig selects the dialogue. File, when set, wins over Name.
type FlowConfig struct {
	Name string  `mapstructure:"name"`
	File string  `mapstructure:"file"`
	Seed *uint64 `mapstructure:"seed"`
}

type SpeechConfig struct {
	Locale         string        `mapstructure:"locale"`
	Voice          string        `mapstructure:"voice"`
	NLU            bool          `mapstructure:"nlu"`
	NoInputTimeout time.Duration `mapstructure:"noinput_timeout"`
}

// RedisConfig enables distributed session ownership and the Redis transcript
// when URL is set.
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type TranscriptConfig struct {
	SQLitePath string        `mapstructure:"sqlite_path"`
	RedisTTL   time.Duration `mapstructure:"redis_ttl"`
}

// New returns a viper instance with defaults and environment binding.
// Callers may bind command line flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("flow.name", "appointment")
	v.SetDefault("flow.file", "")
	v.SetDefault("speech.locale", "en-US")
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.nlu", false)
	v.SetDefault("speech.noinput_timeout", 10*time.Second)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "parlance:")
	v.SetDefault("transcript.sqlite_path", "")
	v.SetDefault("transcript.redis_ttl", 24*time.Hour)

	// No default: an unset seed means a random conversation.
	_ = v.BindEnv("flow.seed")
	return v
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error; variables already set are kept.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("No .env file loaded", "err", err)
	}
}

// Load reads the optional config file into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	if _, err := logging.ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("server.log_level: %w", err))
	}
	if c.Flow.File == "" {
		if c.Flow.Name == "" {
			errs = append(errs, errors.New("flow.name or flow.file must be set"))
		} else if !isBuiltin(c.Flow.Name) {
			errs = append(errs, fmt.Errorf("flow.name: unknown flow %q (available: %s)",
				c.Flow.Name, strings.Join(flows.Names(), ", ")))
		}
	}
	if c.Speech.NoInputTimeout < 0 {
		errs = append(errs, errors.New("speech.noinput_timeout must not be negative"))
	}
	if c.Redis.URL != "" {
		u, err := url.Parse(c.Redis.URL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, fmt.Errorf("redis.url: %q is not a redis:// URL", c.Redis.URL))
		}
	}
	if c.Transcript.RedisTTL < 0 {
		errs = append(errs, errors.New("transcript.redis_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level; Validate has already rejected bad values.
func (c *Config) Level() slog.Level {
	lvl, _ := logging.ParseLevel(c.Server.LogLevel)
	return lvl
}

func isBuiltin(name string) bool {
	for _, n := range flows.Names() {
		if n == name {
			return true
		}
	}
	return false
}
