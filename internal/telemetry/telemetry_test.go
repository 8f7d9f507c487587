package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), "notifyd", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), "", "localhost:4318")
	assert.Error(t, err)
}

func TestInitInstallsProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Init(context.Background(), "notifyd", "http://localhost:4318/v1/traces")
	require.NoError(t, err)
	assert.NotEqual(t, before, otel.GetTracerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		endpoint string
		wantOpts int
		wantErr  bool
	}{
		{"localhost:4318", 2, false},
		{"collector", 2, false},
		{"http://collector:4318", 2, false},
		{"http://collector:4318/custom/traces", 3, false},
		{"https://collector.example.com", 1, false},
		{"http:///v1/traces", 0, true},
	}
	for _, tt := range tests {
		opts, err := exporterOptions(tt.endpoint)
		if tt.wantErr {
			assert.Error(t, err, tt.endpoint)
			continue
		}
		require.NoError(t, err, tt.endpoint)
		assert.Len(t, opts, tt.wantOpts, tt.endpoint)
	}
}
