package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msgs []string
	args [][]any
}

func (r *recordingLogger) record(msg string, args []any) {
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.record(msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.record(msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.record(msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.record(msg, args) }

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo,
		"warning": LogLevelWarn, "Error": LogLevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelInfo, Format: FormatJSON, Output: &buf, Component: "runner"})
	l.Debug("hidden")
	l.Info("turn recorded", "speaker", "alice")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "turn recorded", rec["msg"])
	assert.Equal(t, "alice", rec["speaker"])
	assert.Equal(t, "runner", rec["component"])
}

func TestNew_TintAndText(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Level: LogLevelDebug, Format: FormatTint, Output: &buf, NoColor: true}).Warn("careful", "k", 1)
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "k=1")

	buf.Reset()
	New(&Config{Format: FormatText, Output: &buf}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestWith(t *testing.T) {
	rec := &recordingLogger{}
	l := With(rec, "meeting_id", "m1")
	l.Info("hello", "round", 2)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, []any{"meeting_id", "m1", "round", 2}, rec.args[0])

	assert.Equal(t, NoOpLogger{}, With(nil))

	var buf bytes.Buffer
	sl := With(New(&Config{Format: FormatJSON, Output: &buf}), "component", "engine")
	sl.Info("x")
	assert.Contains(t, buf.String(), `"component":"engine"`)
}

func TestLogModelCall(t *testing.T) {
	rec := &recordingLogger{}
	LogModelCall(rec, "gpt", time.Second, nil)
	LogModelCall(rec, "gpt", time.Second, errors.New("boom"))
	assert.Equal(t, []string{"Model call completed", "Model call failed"}, rec.msgs)

	StartTimer(rec, "op")()
	assert.Equal(t, "Operation completed", rec.msgs[2])
}
