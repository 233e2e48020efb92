package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/cacheproxy/pkg/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogCfg{Level: "DEBUG"}, &buf)
	require.NoError(t, err)

	proxyLog := Component(log, "proxy")
	proxyLog.Debug().Str("path", "/a").Msg("Cache hit")
	log.Trace().Msg("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "proxy", entry["component"])
	assert.Equal(t, "/a", entry["path"])
	assert.Equal(t, "Cache hit", entry["message"])
}

func TestNew_DefaultLevel(t *testing.T) {
	log, err := New(config.LogCfg{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, defaultLevel, log.GetLevel())
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogCfg{Level: "loud"}, nil)
	assert.Error(t, err)
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogCfg{Level: "info", Console: true}, &buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Info().Msg("listening")
	assert.Contains(t, buf.String(), "listening")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "world", Preview([]byte("world"), 256))
	assert.Equal(t, "", Preview(nil, 256))
	assert.Equal(t, "hel...", Preview([]byte("hello"), 3))
	// "é" is two bytes; the cut must not leave half of it
	assert.Equal(t, "a...", Preview([]byte("aé"), 2))

	binary := []byte{0xff, 0xfe, 0x00, 0x01}
	assert.Equal(t, "non-UTF-8 body (4 bytes): fffe0001", Preview(binary, 256))
	assert.Equal(t, "non-UTF-8 body (4 bytes): fffe...", Preview(binary, 2))
}
