// Package config provides application configuration loaded from environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBase  = "http://127.0.0.1:8250"
	defaultStubAddr = "127.0.0.1:8250"
)

// Config holds all application configuration.
type Config struct {
	APIBase     string
	CatalogPath string

	// Credentials used instead of prompting, when both are set.
	Username string
	Password string

	// RequestTimeout bounds non-streaming requests. Zero means no timeout.
	RequestTimeout time.Duration
	APIRate        float64
	AuthRate       float64

	// Stub backend settings.
	StubAddr   string
	StubUsers  string
	StubBudget int

	OTelEnabled bool

	// TraceEndpoint is the full OTLP/HTTP traces URL; empty defers to the
	// exporter's OTEL_EXPORTER_OTLP_* variables.
	TraceEndpoint    string
	TraceSampleRatio float64

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadFromEnv reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is loaded first; a missing
// file is not an error.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("config: load .env: %w", err)
		}
	}

	cfg := Config{
		APIBase:     strings.TrimRight(envOr("EDGEADMIN_API_BASE", defaultAPIBase), "/"),
		CatalogPath: os.Getenv("EDGEADMIN_CATALOG"),
		Username:    os.Getenv("EDGEADMIN_USERNAME"),
		Password:    os.Getenv("EDGEADMIN_PASSWORD"),
		StubAddr:    envOr("EDGEADMIN_STUB_ADDR", defaultStubAddr),
		StubUsers:   envOr("EDGEADMIN_STUB_USERS", "admin:admin"),
		OTelEnabled: os.Getenv("OTEL_ENABLED") == "true",

		TraceEndpoint: os.Getenv("EDGEADMIN_TRACE_ENDPOINT"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "text"),
		LogFile:       os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.RequestTimeout, err = envDuration("EDGEADMIN_REQUEST_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.APIRate, err = envFloat("EDGEADMIN_API_RATE", 10); err != nil {
		return Config{}, err
	}
	if cfg.AuthRate, err = envFloat("EDGEADMIN_AUTH_RATE", 2); err != nil {
		return Config{}, err
	}
	if cfg.TraceSampleRatio, err = envFloat("EDGEADMIN_TRACE_SAMPLE_RATIO", 1); err != nil {
		return Config{}, err
	}
	if cfg.StubBudget, err = envInt("EDGEADMIN_STUB_BUDGET", 0); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that flags may also have set.
func (c Config) Validate() error {
	if err := validateBase(c.APIBase); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: EDGEADMIN_REQUEST_TIMEOUT must not be negative")
	}
	if c.APIRate < 0 || c.AuthRate < 0 {
		return fmt.Errorf("config: request rates must not be negative")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("config: EDGEADMIN_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.TraceEndpoint != "" {
		if u, err := url.Parse(c.TraceEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: invalid EDGEADMIN_TRACE_ENDPOINT %q", c.TraceEndpoint)
		}
	}
	if c.StubBudget < 0 {
		return fmt.Errorf("config: EDGEADMIN_STUB_BUDGET must not be negative")
	}
	return nil
}

func validateBase(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: invalid EDGEADMIN_API_BASE %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: invalid EDGEADMIN_API_BASE %q (must be an absolute http or https URL)", raw)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}
