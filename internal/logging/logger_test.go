package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", map[string]interface{}{"k": 1})
	logger.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.EqualValues(t, 1, entries[0]["k"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLoggerFieldsAreCopied(t *testing.T) {
	var buf bytes.Buffer
	base := New(DebugLevel, &buf)
	child := base.WithField("problem_id", "sphere_d02")
	child.WithError(assert.AnError).Info("child")
	base.Info("base")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "sphere_d02", entries[0]["problem_id"])
	assert.Equal(t, assert.AnError.Error(), entries[0]["error"])
	_, ok := entries[1]["problem_id"]
	assert.False(t, ok)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithFormat(TextFormat)
	logger.Info("observer created", map[string]interface{}{"result_folder": "exdata/RS"})

	line := buf.String()
	assert.Contains(t, line, " INFO observer created")
	assert.Contains(t, line, "result_folder=exdata/RS")
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	code := -1
	logger.exit = func(c int) { code = c }
	logger.Fatal("bye")
	assert.Equal(t, 1, code)
}

func TestParseConfig(t *testing.T) {
	assert.Equal(t, DebugLevel, parseLevel("debug"))
	assert.Equal(t, WarnLevel, parseLevel("warning"))
	assert.Equal(t, InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, TextFormat, parseFormat("console"))
	assert.Equal(t, JSONFormat, parseFormat(""))

	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestZapLoggerForwards(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).With(zap.String("observer", "bbob"))
	zl.Debug("target reached", zap.Int64("evaluations", 42), zap.Float64("gap", 1e-9), zap.Bool("final", true))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "target reached", entries[0]["message"])
	assert.Equal(t, "bbob", entries[0]["observer"])
	assert.EqualValues(t, 42, entries[0]["evaluations"])
	assert.InDelta(t, 1e-9, entries[0]["gap"], 1e-15)
	assert.Equal(t, true, entries[0]["final"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := (&CtxLogger{New(InfoLevel, &buf)}).WithContext(context.Background())
	FromContext(ctx).Info("from ctx")
	assert.Len(t, decodeLines(t, &buf), 1)

	assert.NotNil(t, FromContext(context.Background()))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(New(DebugLevel, &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "/healthz", entries[0]["path"])
	assert.EqualValues(t, http.StatusTeapot, entries[1]["status"])
}
