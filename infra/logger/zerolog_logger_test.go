package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetOutput(nil)
		zerolog.SetGlobalLevel(prev)
	})
	return &buf
}

func TestZerologLoggerJSON(t *testing.T) {
	buf := capture(t)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	l := NewZerologLogger("city")
	l.Infof("vehicle %s charging", "V_1")
	l.Debugw("route", map[string]any{"vehicle": "V_2", "nodes": 4})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "city", first["component"])
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "vehicle V_1 charging", first["message"])
	assert.Equal(t, "V_2", second["vehicle"])
	assert.EqualValues(t, 4, second["nodes"])
}

func TestZerologLoggerConsole(t *testing.T) {
	buf := capture(t)
	t.Setenv("APP_ENV", "dev")
	NewZerologLogger("gridedge").Warnf("overloaded")
	assert.Contains(t, buf.String(), "overloaded")
	assert.Contains(t, buf.String(), "WRN")
}

func TestSetLevel(t *testing.T) {
	buf := capture(t)

	assert.NoError(t, SetLevel("WARN"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))

	NewZerologLogger("x").Infof("hidden")
	assert.Empty(t, buf.String())
}
