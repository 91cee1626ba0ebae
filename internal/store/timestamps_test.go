package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	currentName = "timestamps.npy"
	archiveName = "original_timestamps.npy"
)

func writeArray(t *testing.T, path string, ts []float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, ts))
	require.NoError(t, f.Close())
}

func readArray(t *testing.T, path string) []float64 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []float64
	require.NoError(t, npyio.Read(f, &out))
	return out
}

func TestWriteAligned_FirstArchivalWins(t *testing.T) {
	dir := t.TempDir()
	original := []float64{0.0, 0.1, 0.2}
	writeArray(t, filepath.Join(dir, currentName), original)

	var s Timestamps
	require.NoError(t, s.WriteAligned(dir, []float64{10.0, 10.1, 10.2}, currentName, archiveName))

	assert.Equal(t, original, readArray(t, filepath.Join(dir, archiveName)),
		"the first write must move the raw values into the archive")
	assert.Equal(t, []float64{10.0, 10.1, 10.2}, readArray(t, filepath.Join(dir, currentName)))

	// A second run overwrites only the derived current file.
	require.NoError(t, s.WriteAligned(dir, []float64{20.0, 20.1, 20.2}, currentName, archiveName))
	assert.Equal(t, original, readArray(t, filepath.Join(dir, archiveName)),
		"a later write must never replace the archive")
	assert.Equal(t, []float64{20.0, 20.1, 20.2}, readArray(t, filepath.Join(dir, currentName)))
}

func TestWriteAligned_NoCurrentFile(t *testing.T) {
	dir := t.TempDir()

	var s Timestamps
	require.NoError(t, s.WriteAligned(dir, []float64{1.0}, currentName, archiveName))

	assert.Equal(t, []float64{1.0}, readArray(t, filepath.Join(dir, currentName)))
	_, err := os.Stat(filepath.Join(dir, archiveName))
	assert.True(t, os.IsNotExist(err), "nothing to archive when no current file existed")
}

func TestArchived(t *testing.T) {
	dir := t.TempDir()

	var s Timestamps
	archived, err := s.Archived(dir, archiveName)
	require.NoError(t, err)
	assert.False(t, archived)

	writeArray(t, filepath.Join(dir, archiveName), []float64{1})
	archived, err = s.Archived(dir, archiveName)
	require.NoError(t, err)
	assert.True(t, archived)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	original := []float64{0.0, 0.1, 0.2}
	writeArray(t, filepath.Join(dir, currentName), original)

	var s Timestamps
	require.NoError(t, s.WriteAligned(dir, []float64{5, 6, 7}, currentName, archiveName))
	require.NoError(t, s.Restore(dir, currentName, archiveName))

	assert.Equal(t, original, readArray(t, filepath.Join(dir, currentName)))
	assert.Equal(t, original, readArray(t, filepath.Join(dir, archiveName)),
		"the archive survives a restore, keeping later cycles lossless")

	// Restore, realign, restore again: still the raw values.
	require.NoError(t, s.WriteAligned(dir, []float64{8, 9, 10}, currentName, archiveName))
	require.NoError(t, s.Restore(dir, currentName, archiveName))
	assert.Equal(t, original, readArray(t, filepath.Join(dir, currentName)))
}

func TestRestore_NoArchive(t *testing.T) {
	var s Timestamps
	err := s.Restore(t.TempDir(), currentName, archiveName)
	require.Error(t, err)
}
