// Package config loads relay and executor settings from environment
// variables and an optional config.yaml, with sensible defaults for local
// development.
package config

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Transport selections.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Config holds all configuration for both binaries.
type Config struct {
	Transport string `mapstructure:"TRANSPORT"`
	Host      string `mapstructure:"HOST"`
	Port      int    `mapstructure:"PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	// RequestTimeout bounds a bridged request's wait for its reply.
	RequestTimeout time.Duration

	// Executor-side settings.
	BridgeURL            string `mapstructure:"BRIDGE_URL"`
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int `mapstructure:"MAX_RECONNECT_ATTEMPTS"`
}

// Load reads configuration from config.yaml (if present) and the
// environment.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("TRANSPORT", TransportStdio)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 3100)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("BRIDGE_URL", "ws://127.0.0.1:3100/ws")
	v.SetDefault("RECONNECT_BASE_DELAY_MS", 2000)
	v.SetDefault("MAX_RECONNECT_ATTEMPTS", 10)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, path := range configPaths {
		if path != "" {
			v.AddConfigPath(path)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug("No config file found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Infof("Using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Viper unmarshals these as plain numbers; convert to durations here.
	cfg.RequestTimeout = time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second
	cfg.ReconnectBaseDelay = time.Duration(v.GetInt("RECONNECT_BASE_DELAY_MS")) * time.Millisecond

	cfg.Transport = strings.ToLower(cfg.Transport)
	switch cfg.Transport {
	case TransportStdio, TransportHTTP, TransportSSE:
	default:
		return nil, fmt.Errorf("invalid TRANSPORT %q (want stdio, http or sse)", cfg.Transport)
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.Warnf("Invalid LOG_LEVEL %q, defaulting to info", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

// Addr returns the host:port the HTTP binding listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
