package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() { defaultLogger = nil })
	return &buf
}

func TestLog_Format(t *testing.T) {
	buf := capture(t)

	Info(CatIndex, "Indexed dataset", "root", "/data/deriv", "files", 14)
	ErrorErr(CatCollect, "Query failed", errors.New("boom"), "query", "t1w_preproc")
	Warn(CatAtlas, "Odd fields", "orphan")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "[INFO] [index] Indexed dataset root=/data/deriv files=14")
	require.Contains(t, lines[1], "[ERROR] [collect] Query failed query=t1w_preproc error=boom")
	require.Contains(t, lines[2], "[WARN] [atlas] Odd fields orphan=<missing>")
}

func TestLog_MinLevelAndEnabled(t *testing.T) {
	buf := capture(t)

	SetMinLevel(LevelWarn)
	Debug(CatDB, "hidden")
	Info(CatDB, "hidden")
	Warn(CatDB, "shown")
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))

	SetEnabled(false)
	Error(CatDB, "hidden")
	require.NotContains(t, buf.String(), "[ERROR]")
}

func TestLog_NoLoggerIsSilent(t *testing.T) {
	defaultLogger = nil
	require.NotPanics(t, func() { Info(CatSpec, "nobody listens") })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"Error":   LevelError,
		"verbose": LevelDebug,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
		require.NotEqual(t, "UNKNOWN", ParseLevel(in).String())
	}
}
