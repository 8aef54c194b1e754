package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupReleaseWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("release", &buf)
	t.Cleanup(func() { Setup("debug", nil) })

	log.Debug().Msg("hidden")
	log.Info().Str("item_id", "sku-1").Msg("forecast ready")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "sku-1", entry["item_id"])
	assert.Equal(t, "forecast ready", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
