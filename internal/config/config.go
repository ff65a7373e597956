// Package config loads runtime settings from a .env file, ALLOWANCE_*
// environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dukerupert/allowance/internal/logging"
)

const EnvPrefix = "ALLOWANCE"

// MinSecretLength is the shortest accepted HS256 signing secret.
const MinSecretLength = 32

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string

	JWTSecret string
	TokenTTL  time.Duration

	// AllowedOrigins are host patterns accepted on websocket upgrades.
	AllowedOrigins []string

	// AMQP publishing is disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string

	AllowanceInterval time.Duration
	CacheMaxCost      int64
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "allowance.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "allowance.events")
	v.SetDefault("allowance_interval", time.Hour)
	v.SetDefault("cache_max_cost", 1000)
}

// Load reads .env (if present) into the process environment, then
// resolves every key from v. The config file is read only when the caller
// named one with v.SetConfigFile.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("port"),
		DBPath:            v.GetString("db_path"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		JWTSecret:         v.GetString("jwt_secret"),
		TokenTTL:          v.GetDuration("token_ttl"),
		AllowedOrigins:    splitList(v.GetStringSlice("allowed_origins")),
		AMQPURL:           v.GetString("amqp_url"),
		AMQPExchange:      v.GetString("amqp_exchange"),
		AllowanceInterval: v.GetDuration("allowance_interval"),
		CacheMaxCost:      v.GetInt64("cache_max_cost"),
	}
	return cfg, nil
}

// splitList accepts both a real list and a single comma separated value,
// which is how a list arrives from an environment variable.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "db_path cannot be empty")
	}

	if len(c.JWTSecret) < MinSecretLength {
		problems = append(problems, fmt.Sprintf("jwt_secret must be at least %d characters", MinSecretLength))
	}
	if c.TokenTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid token_ttl %v: must be at least 1 minute", c.TokenTTL))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log_format %q: must be text or json", c.LogFormat))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid amqp_url: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid amqp_url scheme %q: must be amqp or amqps", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "amqp_exchange cannot be empty when amqp_url is set")
		}
	}

	if c.AllowanceInterval < time.Minute || c.AllowanceInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid allowance_interval %v: must be between 1 minute and 24 hours", c.AllowanceInterval))
	}
	if c.CacheMaxCost < 1 {
		problems = append(problems, fmt.Sprintf("invalid cache_max_cost %d: must be at least 1", c.CacheMaxCost))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
