package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDirDoesNotTouchDisk(t *testing.T) {
	logger, err := New(Options{Level: "debug", Format: FormatText})
	require.NoError(t, err)
	logger.Info().Msg("hello")
}

func TestNewWritesRollingFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{Level: "info", Format: FormatJSON, Roll: RollDaily, Dir: dir})
	require.NoError(t, err)

	logger.Info().Str("k", "v").Msg("written to file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewRejectsInvalidLevelByFallingBackToInfo(t *testing.T) {
	logger, err := New(Options{Level: "not-a-level"})
	require.NoError(t, err)
	assert.Equal(t, "info", logger.GetLevel().String())
}

func TestRollingWriterCreatesCurrentPeriodFile(t *testing.T) {
	dir := t.TempDir()
	w, err := newRollingWriter(dir, RollDaily)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("line one\n"))
	require.NoError(t, err)

	_, err = os.Stat(w.current.Name())
	require.NoError(t, err)
}
