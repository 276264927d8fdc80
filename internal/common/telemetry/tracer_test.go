package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The enabled constructors install a process-global provider, so they stay
// sequential; no spans are recorded, which keeps Shutdown offline-safe.

func TestNewTracerGRPC(t *testing.T) {
	tr, err := NewTracer(context.Background(), TracerConfig{
		Enabled:  true,
		Endpoint: "localhost:4317",
		Insecure: true,
		Headers:  map[string]string{"x-api-key": "secret"},
	})
	require.NoError(t, err)
	assert.True(t, tr.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))
}

func TestNewTracerHTTP(t *testing.T) {
	tr, err := NewTracer(context.Background(), TracerConfig{
		Enabled:  true,
		Endpoint: "http://localhost:4318/v1/traces",
	})
	require.NoError(t, err)
	assert.True(t, tr.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))
}

func TestNewTracerMissingEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewTracer(context.Background(), TracerConfig{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestNewTracerDisabled(t *testing.T) {
	t.Parallel()

	tr, err := NewTracer(context.Background(), TracerConfig{})
	require.NoError(t, err)
	assert.False(t, tr.IsEnabled())

	_, span := tr.Start(context.Background(), "noop")
	require.NotNil(t, span)
	span.End()

	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestIsHTTPEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", false},
		{"otel-collector.internal:4317", false},
		{"http://localhost:4318/v1/traces", true},
		{"https://collector.example.com/v1/traces", true},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isHTTPEndpoint(tc.endpoint), tc.endpoint)
	}
}
