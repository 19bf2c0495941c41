package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelParsing(t *testing.T) {
	log := New("neurodash-test", Options{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log = New("neurodash-test", Options{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neurodash.log")
	log := New("neurodash-test", Options{Level: "debug", File: path})

	log.Error().Stack().Err(errors.New("boom")).Msg("store write failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "store write failed")
	assert.Contains(t, string(data), `"service":"neurodash-test"`)
}
