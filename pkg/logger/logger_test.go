package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(Config{Level: "debug", Format: "json", Output: &buf})

	l.Debug().Str("component", "test").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "debug", entry["level"])
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(Config{Level: "loud", Output: &buf})

	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
	l.Debug().Msg("dropped")
	assert.Empty(t, buf.String())
}
