package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8250", cfg.APIBase)
	assert.Equal(t, "127.0.0.1:8250", cfg.StubAddr)
	assert.Zero(t, cfg.RequestTimeout)
	assert.InDelta(t, 10, cfg.APIRate, 0.001)
	assert.InDelta(t, 2, cfg.AuthRate, 0.001)
	assert.False(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.TraceEndpoint)
	assert.InDelta(t, 1, cfg.TraceSampleRatio, 0.001)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EDGEADMIN_API_BASE", "https://edge.example.com/")
	t.Setenv("EDGEADMIN_REQUEST_TIMEOUT", "45s")
	t.Setenv("EDGEADMIN_API_RATE", "0.5")
	t.Setenv("EDGEADMIN_STUB_BUDGET", "20")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("EDGEADMIN_TRACE_ENDPOINT", "http://collector:4318/v1/traces")
	t.Setenv("EDGEADMIN_TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://edge.example.com", cfg.APIBase)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 0.5, cfg.APIRate, 0.001)
	assert.Equal(t, 20, cfg.StubBudget)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "http://collector:4318/v1/traces", cfg.TraceEndpoint)
	assert.InDelta(t, 0.25, cfg.TraceSampleRatio, 0.001)
}

func TestLoadFromEnv_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/.env", []byte("EDGEADMIN_USERNAME=ops\n"), 0o600))
	t.Chdir(dir)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.Username)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"EDGEADMIN_API_BASE", "edge.example.com", "invalid EDGEADMIN_API_BASE"},
		{"EDGEADMIN_API_BASE", "ftp://edge.example.com", "absolute http or https URL"},
		{"EDGEADMIN_REQUEST_TIMEOUT", "soon", "invalid EDGEADMIN_REQUEST_TIMEOUT"},
		{"EDGEADMIN_REQUEST_TIMEOUT", "-1s", "must not be negative"},
		{"EDGEADMIN_AUTH_RATE", "fast", "invalid EDGEADMIN_AUTH_RATE"},
		{"EDGEADMIN_STUB_BUDGET", "-3", "must not be negative"},
		{"EDGEADMIN_TRACE_SAMPLE_RATIO", "x", "invalid EDGEADMIN_TRACE_SAMPLE_RATIO"},
		{"EDGEADMIN_TRACE_SAMPLE_RATIO", "1.5", "between 0 and 1"},
		{"EDGEADMIN_TRACE_ENDPOINT", "collector", "invalid EDGEADMIN_TRACE_ENDPOINT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EDGEADMIN_API_BASE", "EDGEADMIN_CATALOG", "EDGEADMIN_USERNAME", "EDGEADMIN_PASSWORD",
		"EDGEADMIN_REQUEST_TIMEOUT", "EDGEADMIN_API_RATE", "EDGEADMIN_AUTH_RATE",
		"EDGEADMIN_STUB_ADDR", "EDGEADMIN_STUB_USERS", "EDGEADMIN_STUB_BUDGET",
		"OTEL_ENABLED", "EDGEADMIN_TRACE_ENDPOINT", "EDGEADMIN_TRACE_SAMPLE_RATIO",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	} {
		// t.Setenv saves the current value and restores it on cleanup.
		// Setting to "" then unsetting ensures the key is absent during the test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
