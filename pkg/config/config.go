// Package config loads service settings from .env files, the environment and
// command-line flags.
package config

import (
	"os"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roverlens/marsphotos/pkg/origin"
)

// Config holds every tunable of the server.
type Config struct {
	Port                 int           `mapstructure:"port"`
	DatabaseURL          string        `mapstructure:"database_url"`
	NASAAPIKey           string        `mapstructure:"nasa_api_key"`
	NASABaseURL          string        `mapstructure:"nasa_base_url"`
	OriginTimeout        time.Duration `mapstructure:"origin_timeout"`
	DegradeOnOriginError bool          `mapstructure:"degrade_on_origin_error"`
	FrontendURL          string        `mapstructure:"frontend_url"`
	SentryDSN            string        `mapstructure:"sentry_dsn"`
	Environment          string        `mapstructure:"environment"`
	LogLevel             string        `mapstructure:"log_level"`
	LogJSON              bool          `mapstructure:"log_json"`
	PubSubProjectID      string        `mapstructure:"pubsub_project_id"`
	DeadLetterTopic      string        `mapstructure:"dead_letter_topic"`
}

// envBindings maps config keys to environment variables. When a key lists
// several variables the first one set wins.
var envBindings = map[string][]string{
	"port":                    {"PORT"},
	"database_url":            {"MONGO_URI", "DATABASE_URL"},
	"nasa_api_key":            {"NASA_API_KEY"},
	"nasa_base_url":           {"NASA_BASE_URL"},
	"origin_timeout":          {"ORIGIN_TIMEOUT"},
	"degrade_on_origin_error": {"DEGRADE_ON_ORIGIN_ERROR"},
	"frontend_url":            {"FRONTEND_URL"},
	"sentry_dsn":              {"SENTRY_DSN"},
	"environment":             {"APP_ENV"},
	"log_level":               {"LOG_LEVEL"},
	"log_json":                {"LOG_JSON"},
	"pubsub_project_id":       {"PUBSUB_PROJECT_ID"},
	"dead_letter_topic":       {"PUBSUB_DLQ_TOPIC"},
}

// flagBindings maps config keys to the command-line flags that override them.
var flagBindings = map[string]string{
	"port":                    "port",
	"database_url":            "database-url",
	"degrade_on_origin_error": "degrade-on-origin-error",
	"log_level":               "log-level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "sqlite://marsphotos.db")
	v.SetDefault("nasa_api_key", origin.DefaultAPIKey)
	v.SetDefault("nasa_base_url", origin.DefaultBaseURL)
	v.SetDefault("origin_timeout", origin.DefaultTimeout)
	v.SetDefault("degrade_on_origin_error", false)
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("pubsub_project_id", "")
	v.SetDefault("dead_letter_topic", "")
}

// Load reads envFiles (".env" when none are given) into the process
// environment without overriding variables already set, then resolves every
// key from flags, environment and defaults in that order. Missing env files
// are ignored. flags may be nil.
func Load(flags *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidConfig, "failed to read env file"), "file", f)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "failed to bind %s", key)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "failed to bind flag --%s", name)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.WithContext(errors.New(errors.CodeInvalidConfig, "port must be between 1 and 65535"), "port", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New(errors.CodeInvalidConfig, "database url is required")
	}
	if c.OriginTimeout <= 0 {
		return errors.WithContext(errors.New(errors.CodeInvalidConfig, "origin timeout must be positive"),
			"origin_timeout", c.OriginTimeout.String())
	}
	return nil
}

// OriginConfig returns the settings for the NASA client.
func (c *Config) OriginConfig() origin.Config {
	return origin.Config{
		APIKey:  c.NASAAPIKey,
		BaseURL: c.NASABaseURL,
		Timeout: c.OriginTimeout,
	}
}

// DeadLetterEnabled reports whether malformed origin items go to Pub/Sub.
func (c *Config) DeadLetterEnabled() bool {
	return c.PubSubProjectID != "" && c.DeadLetterTopic != ""
}
