package observability

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "root:TraceIDRatioBased{0.25}")
	assert.Contains(t, sampler(0).Description(), "root:TraceIDRatioBased{0}")
}

func TestServiceVersion(t *testing.T) {
	assert.NotEmpty(t, ServiceVersion())
}

func TestInitTracer(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	shutdown, err := InitTracer(context.Background(), TracerConfig{
		ServiceName: "edgeadmin",
		Version:     "v1.2.3",
		Endpoint:    collector.URL + "/v1/traces",
		SampleRatio: 0.5,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.NotSame(t, prev, otel.GetTracerProvider())
	assert.Contains(t, buf.String(), "tracing enabled")
	assert.Contains(t, buf.String(), "version=v1.2.3")
	assert.Contains(t, buf.String(), "sample_ratio=0.5")
}
