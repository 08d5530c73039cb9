package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hperssn/coindoro/internal/domain"
)

const (
	MinSessionLengthMinutes = 5
	MaxSessionLengthMinutes = 180
	MaxMinutesPerRewardUnit = 60
)

type Config struct {
	Addr        string
	MetricsAddr string
	Env         string
	LogLevel    string

	SessionLengthMinutes int
	MinutesPerRewardUnit int
	SampleInterval       time.Duration
	SmoothInterval       time.Duration
	SessionTTL           time.Duration

	DBDriver string
	DBDSN    string

	// RateLimit is the sustained number of mutating requests per second a
	// single client may issue. Zero disables limiting.
	RateLimit float64
}

func Default() *Config {
	return &Config{
		Addr:                 ":8080",
		MetricsAddr:          ":9090",
		Env:                  "development",
		LogLevel:             "info",
		SessionLengthMinutes: 25,
		MinutesPerRewardUnit: 1,
		SampleInterval:       time.Second,
		SmoothInterval:       100 * time.Millisecond,
		SessionTTL:           12 * time.Hour,
		DBDriver:             "sqlite",
		DBDSN:                "coindoro.db",
		RateLimit:            10,
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("env must be one of: development, staging, production")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	if c.SessionLengthMinutes < MinSessionLengthMinutes || c.SessionLengthMinutes > MaxSessionLengthMinutes {
		return fmt.Errorf("session-length-minutes must be between %d and %d", MinSessionLengthMinutes, MaxSessionLengthMinutes)
	}
	if c.MinutesPerRewardUnit < 0 || c.MinutesPerRewardUnit > MaxMinutesPerRewardUnit {
		return fmt.Errorf("minutes-per-reward-unit must be 0 (disabled) or between 1 and %d", MaxMinutesPerRewardUnit)
	}
	if c.SampleInterval <= 0 || c.SmoothInterval <= 0 {
		return errors.New("sample and smooth intervals must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session-ttl must be positive")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("db-dsn is required when db-driver=%s", c.DBDriver)
		}
	case "none":
	default:
		return errors.New("db-driver must be one of: sqlite, postgres, none")
	}
	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}
	return nil
}

// Settings returns the session settings new sessions start with.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		SessionLength:  time.Duration(c.SessionLengthMinutes) * time.Minute,
		MinutesPerUnit: c.MinutesPerRewardUnit,
	}
}

// NewLogger builds the process logger. Development uses the console encoder.
func (c *Config) NewLogger() (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}
