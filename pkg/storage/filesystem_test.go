package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := s.Save("constancias/c.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "constancias/c.pdf", name)

	f, err := s.Open(name)
	require.NoError(t, err)
	_ = f.Close()

	require.NoError(t, s.Delete(name))
	require.NoError(t, s.Delete(name))
	_, err = os.Stat(s.Path(name))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("../outside.pdf", []byte("x"))
	require.Error(t, err)
	_, err = s.Open("/etc/passwd")
	require.Error(t, err)
}

func TestCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("old.pdf", []byte("old"))
	require.NoError(t, err)
	_, err = s.Save("new.pdf", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.pdf"), past, past))

	deleted, err := s.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.pdf"}, deleted)
	assert.FileExists(t, filepath.Join(dir, "new.pdf"))
}

func TestWriteFileAtomicReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_fechas.csv")
	require.NoError(t, WriteFileAtomic(path, []byte("v1"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("v2"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScratchRelease(t *testing.T) {
	dir := t.TempDir()
	scratch, err := NewScratch(dir, "upload-*", []byte("payload"))
	require.NoError(t, err)
	assert.FileExists(t, scratch.Path)

	require.NoError(t, scratch.Release())
	require.NoError(t, scratch.Release())
	assert.NoFileExists(t, scratch.Path)
}
