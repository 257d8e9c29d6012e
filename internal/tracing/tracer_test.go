package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{Enabled: false})
	require.NoError(t, err, "should not error when disabled")
	require.False(t, provider.Enabled())

	ctx, span := provider.Tracer().Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no ids")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	provider, err := NewProvider(config.TracingConfig{
		Enabled:    true,
		Exporter:   "file",
		FilePath:   tracePath,
		SampleRate: 1.0,
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), SpanIndex)
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "one span line expected")
	var rec SpanRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	require.Equal(t, SpanIndex, rec.Name)
}

func TestNewProvider_NoneExporter(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "x")
	require.True(t, span.SpanContext().IsValid(), "spans are recorded for correlation")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported exporter")
}
