package logger

import (
	"os"
	"path/filepath"
	"testing"

	"travel_agent/src/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesJSONFile(t *testing.T) {
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	path := filepath.Join(t.TempDir(), "nested", "agent.log")
	closer, err := InitLogger(model.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	require.NotNil(t, closer)

	Info().Str("user_id", "123").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":"123"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := InitLogger(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
