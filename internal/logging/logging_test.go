package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, Options{Level: "debug"})
	require.NoError(t, err)

	log.Debug().Str("owner", "u1").Msg("hello")
	assert.Contains(t, buf.String(), `"owner":"u1"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, Options{Level: "WARN", Format: "text"})
	require.NoError(t, err)

	log.Info().Msg("dropped")
	assert.Empty(t, buf.String())
	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewWithWriter_Errors(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, Options{Level: "loud"})
	assert.Error(t, err)

	_, err = NewWithWriter(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())

	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, Options{})
	require.NoError(t, err)

	fromCtx := FromContext(WithContext(context.Background(), log))
	fromCtx.Info().Msg("via context")
	assert.Contains(t, buf.String(), "via context")
}
