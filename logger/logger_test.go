package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		out = append(out, rec)
	}

	return out
}

//nolint:paralleltest // Test modifies the process-wide slog default
func TestGet_SubsystemAndValues(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "hfsm",
		JSON:      true,
		MinLevel:  slog.LevelDebug,
		Output:    &buf,
	})

	Get().Info("default subsystem")

	ctx := With(WithSubsystem(t.Context(), "driver"), "machine", "device")
	Get(ctx).Info("overridden")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)

	assert.Equal(t, "hfsm", recs[0]["subsystem"])
	assert.Equal(t, "driver", recs[1]["subsystem"])
	assert.Equal(t, "device", recs[1]["machine"])
}

//nolint:paralleltest // Test modifies the process-wide slog default
func TestGet_Muted(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "hfsm", JSON: true, Output: &buf})

	Get(WithMuted(t.Context(), true)).Error("should not appear")

	assert.Empty(t, buf.String())
}

//nolint:paralleltest // Test modifies the process-wide slog default
func TestAnnotatedErrorIsExpanded(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Subsystem: "hfsm", JSON: true, Output: &buf})

	err := AnnotateError(errTest, "state", "Menu", "machine", "ui")
	Get().Error("dispatch failed", "error", err)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)

	assert.Equal(t, "test failure", recs[0]["error"])
	assert.Equal(t, "Menu", recs[0]["state"])
	assert.Equal(t, "ui", recs[0]["machine"])
}

func TestWith_NoValuesReturnsSameContext(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	assert.Equal(t, ctx, With(ctx))
}
