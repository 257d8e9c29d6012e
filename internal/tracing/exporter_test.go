package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestNewFileExporter_CreatesParentDirectories(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "nested", "dir", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	_, err = os.Stat(tracePath)
	require.NoError(t, err, "trace file should be created with parent dirs")
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_ExportSpans(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := tracetest.SpanStub{
		Name:       SpanIndex,
		StartTime:  start,
		EndTime:    start.Add(250 * time.Millisecond),
		Attributes: []attribute.KeyValue{attribute.Int(AttrFileCount, 12)},
		Status:     sdktrace.Status{Code: codes.Error, Description: "boom"},
		Events: []sdktrace.Event{{
			Name:       EventUnmatchedFile,
			Time:       start,
			Attributes: []attribute.KeyValue{attribute.String("path", "README")},
		}},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, SpanIndex, rec.Name)
	require.Equal(t, 250.0, rec.DurationMs)
	require.Equal(t, "ERROR", rec.Status)
	require.Equal(t, "boom", rec.StatusMsg)
	require.Equal(t, float64(12), rec.Attributes[AttrFileCount], "JSON numbers decode as float64")
	require.Len(t, rec.Events, 1)
	require.Equal(t, "README", rec.Events[0].Attributes["path"])
	require.Empty(t, rec.ParentID)
}

func TestFileExporter_Appends(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	stub := tracetest.SpanStub{Name: "a", StartTime: time.Now(), EndTime: time.Now()}

	for i := 0; i < 2; i++ {
		exporter, err := NewFileExporter(tracePath)
		require.NoError(t, err)
		require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
		require.NoError(t, exporter.Shutdown(context.Background()))
	}

	require.Len(t, readRecords(t, tracePath), 2)
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()), "second shutdown is a no-op")

	stub := tracetest.SpanStub{Name: "late"}
	err = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.Error(t, err)
}
