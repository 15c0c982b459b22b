package tracing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	shutdown, err := Init(context.Background(), "gym-reminder", "test", "", logrus.NewEntry(l))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_AcceptsCollectorURL(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	l := logrus.New()
	l.SetOutput(io.Discard)

	shutdown, err := Init(context.Background(), "gym-reminder", "test", "http://localhost:4317", logrus.NewEntry(l))
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  string
	}{
		{"plain url", "http://otel-collector:4317", ""},
		{"tls url", "https://otel.example.com", ""},
		{"host and port", "otel-collector:4317", ""},
		{"unsupported scheme", "grpc://otel-collector:4317", "scheme"},
		{"url without host", "http://", "missing host"},
		{"unparsable url", "http://otel collector:4317", "invalid OTLP endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := exporterOptions(tt.endpoint)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, opts)
		})
	}
}
