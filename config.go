package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type config struct {
	Addr          string        `env:"ADDR" default:"127.0.0.1:3000"`
	Origin        string        `env:"ORIGIN"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"`
	SecureCookies bool          `env:"SECURE_COOKIES" default:"false"`
	LogLevel      string        `env:"LOG_LEVEL" default:"info"`
	LogFormat     string        `env:"LOG_FORMAT" default:"text"`

	// A client with no request for this long is dropped.
	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT" default:"10m"`
	ReapInterval  time.Duration `env:"REAP_INTERVAL" default:"1h"`
	// Held long-poll requests are answered with an error after this long.
	HoldTimeout time.Duration `env:"HOLD_TIMEOUT" default:"30s"`
	StopTimeout time.Duration `env:"STOP_TIMEOUT" default:"10s"`
	MetricsTick time.Duration `env:"METRICS_TICK" default:"60s"`

	// Per channel mailbox bound, 0 means unbounded.
	MaxQueue int `env:"MAX_QUEUE" default:"0"`
	// Requests per second per client, 0 disables the limit.
	RateLimit float64 `env:"RATE_LIMIT" default:"0"`
	RateBurst int     `env:"RATE_BURST" default:"20"`
}

// loadConfig reads the environment (and .env if present), then lets
// command line flags override it.
func loadConfig(args []string) (*config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	fs := flag.NewFlagSet("pollhub", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http service address")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "websocket server checks Origin headers against this scheme://host[:port]")
	fs.StringVar(&cfg.SessionSecret, "session-secret", cfg.SessionSecret, "secret used to sign session cookies")
	fs.DurationVar(&cfg.SessionMaxAge, "session-max-age", cfg.SessionMaxAge, "session cookie lifetime")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "only send session cookies over https")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.DurationVar(&cfg.ClientTimeout, "client-timeout", cfg.ClientTimeout, "drop clients idle for this long")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "duration between idle client sweeps")
	fs.DurationVar(&cfg.HoldTimeout, "hold-timeout", cfg.HoldTimeout, "answer held long-poll requests after this long")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "stop timeout")
	fs.DurationVar(&cfg.MetricsTick, "metrics.tick", cfg.MetricsTick, "metrics: duration between reports")
	fs.IntVar(&cfg.MaxQueue, "max-queue", cfg.MaxQueue, "messages kept per client channel, 0 for unbounded")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "requests per second per client, 0 disables")
	fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "request burst per client")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *config) validate() error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	if cfg.ClientTimeout <= 0 || cfg.ReapInterval <= 0 {
		return errors.New("CLIENT_TIMEOUT and REAP_INTERVAL must be positive")
	}
	if cfg.HoldTimeout <= 0 {
		return errors.New("HOLD_TIMEOUT must be positive")
	}
	if cfg.MaxQueue < 0 {
		return fmt.Errorf("MAX_QUEUE must not be negative, got %d", cfg.MaxQueue)
	}
	if cfg.RateLimit < 0 || (cfg.RateLimit > 0 && cfg.RateBurst < 1) {
		return errors.New("RATE_LIMIT must not be negative and RATE_BURST must be at least 1")
	}
	return nil
}
