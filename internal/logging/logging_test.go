package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "shown", rec["message"])
	assert.Equal(t, "v", rec["k"])
	assert.Contains(t, rec, "time")
}

func TestNew_ConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", "", &buf)
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "hidden")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNew_Errors(t *testing.T) {
	_, err := New("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
