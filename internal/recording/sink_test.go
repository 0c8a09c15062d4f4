package recording

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_AppendPreservesOrder(t *testing.T) {
	dir := t.TempDir()

	sink, err := Open(dir, "siaran_20240101_080000.webm")
	require.NoError(t, err)

	require.NoError(t, sink.Append([]byte("fragment-1")))
	require.NoError(t, sink.Append([]byte("fragment-2")))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, "siaran_20240101_080000.webm"))
	require.NoError(t, err)
	assert.Equal(t, "fragment-1fragment-2", string(data))
}

func TestSink_OpenFailsOnMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"), "siaran.webm")
	require.Error(t, err)
}

func TestSink_CloseIsIdempotent(t *testing.T) {
	sink, err := Open(t.TempDir(), "siaran.webm")
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestSink_AppendAfterCloseReturnsErrClosed(t *testing.T) {
	sink, err := Open(t.TempDir(), "siaran.webm")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	err = sink.Append([]byte("late fragment"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSink_Path(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, "siaran.webm")
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, filepath.Join(dir, "siaran.webm"), sink.Path())
}
