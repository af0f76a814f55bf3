package academia

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(format string, args ...any) { c.lines = append(c.lines, format) }
func (c *captureLogger) Info(format string, args ...any)  { c.lines = append(c.lines, format) }
func (c *captureLogger) Warn(format string, args ...any)  { c.lines = append(c.lines, format) }
func (c *captureLogger) Error(format string, args ...any) { c.lines = append(c.lines, format) }

func TestSlogLoggerKeepsPairsAsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, slog.LevelDebug).GetLogger("academia.test")

	decode := func() map[string]any {
		t.Helper()
		record := map[string]any{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		buf.Reset()
		return record
	}

	logger.Info("role lookup failed", "uid", "u1", "error", "boom")
	record := decode()
	assert.Equal(t, "role lookup failed", record["msg"])
	assert.Equal(t, "u1", record["uid"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "academia.test", record["logger"])

	logger.Info("upload 100% done", "path", "/a")
	record = decode()
	assert.Equal(t, "upload 100% done", record["msg"])
	assert.Equal(t, "/a", record["path"])

	logger.Warn("route conflict skipped: %v", errors.New("dup"))
	record = decode()
	assert.Equal(t, "route conflict skipped: dup", record["msg"])

	logger.Warn("static root %q for prefix %q is missing: %v", "/srv", "/static", "enoent")
	record = decode()
	assert.Equal(t, `static root "/srv" for prefix "/static" is missing: enoent`, record["msg"])
}

func TestResolveLoggerPrecedence(t *testing.T) {
	explicit := &captureLogger{}
	provider, logger := ResolveLogger("academia.test", nil, explicit)
	require.Same(t, explicit, logger)
	require.Same(t, explicit, provider.GetLogger("anything"))

	_, logger = ResolveLogger("academia.test", nil, nil)
	require.NotNil(t, logger)
}

func TestSlogProviderWritesNamedRecords(t *testing.T) {
	var buf bytes.Buffer
	provider := NewTextLogger(&buf, slog.LevelInfo)
	logger := provider.GetLogger("academia.session_store")

	logger.Debug("hidden")
	logger.Info("role lookup failed", "uid", "u1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "logger=academia.session_store")
	assert.Contains(t, out, `msg="role lookup failed" uid=u1`)
}
