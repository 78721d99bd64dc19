package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, INFO)

	l.Debug("hidden", nil)
	l.Info("session created", map[string]interface{}{"scenes": 4, "id": "abc"})
	l.Warnf("slow %s", "client")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "session created | id=abc scenes=4", "fields are sorted by key")
	assert.Contains(t, out, "[WARNING]")
	assert.Contains(t, out, "slow client")
	assert.Contains(t, out, "logger_test.go:", "caller is the test, not the logger")

	buf.Reset()
	l.SetLogLevel(ERROR)
	l.Info("quiet", nil)
	l.Errorf("boom %d", 7)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "boom 7")

	buf.Reset()
	l.Enable(false)
	l.Error("muted", nil)
	assert.Empty(t, buf.String())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"warn":    WARNING,
		"warning": WARNING,
		"error":   ERROR,
		"":        INFO,
		"chatty":  INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, InitLogger(path))
	defer GetLogger().Close()

	GetLogger().Error("written to file", nil)
	require.NoError(t, GetLogger().Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.NoError(t, GetLogger().Close(), "closing twice is fine")
}
