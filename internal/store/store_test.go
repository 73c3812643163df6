package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TypeTerrors/rsum/internal/blocks"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleHashes(path string) FileHashes {
	data := []byte("block data")
	return FileHashes{
		Path:      path,
		Size:      int64(len(data)),
		ModTime:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		BlockSize: 16,
		Rsum:      rsum.Checksum(data),
		Blocks:    []blocks.Block{blocks.Hasher{BlockSize: 16}.HashBlock(0, 0, data)},
		Chunks:    []string{blocks.StrongHash(data)},
	}
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	want := sampleHashes("a/file.iso")

	require.NoError(t, s.Put(want))

	got, err := s.Get("a/file.iso")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRestoresFromDB(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(sampleHashes("b")))
	require.NoError(t, s.Put(sampleHashes("a")))

	s.files = make(map[string]FileHashes)
	assert.Empty(t, s.List())

	got, err := s.Get("a")
	require.NoError(t, err, "database fallback")
	assert.True(t, got.ModTime.Equal(sampleHashes("a").ModTime))

	require.NoError(t, s.Load())
	assert.Equal(t, []string{"a", "b"}, s.List())
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(sampleHashes("gone")))

	require.NoError(t, s.Delete("gone"))

	_, err := s.Get("gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.List())
}

func TestDeleteTree(t *testing.T) {
	s := newTestStore(t)
	for _, path := range []string{"sub", "sub/a", "sub/deeper/b", "subway", "other/sub/c"} {
		require.NoError(t, s.Put(sampleHashes(path)))
	}

	removed, err := s.DeleteTree("sub")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{"other/sub/c", "subway"}, s.List())

	for _, path := range []string{"sub", "sub/a", "sub/deeper/b"} {
		_, err := s.Get(path)
		assert.ErrorIs(t, err, ErrNotFound, path)
	}

	// The database agrees with memory after a reload.
	require.NoError(t, s.Load())
	assert.Equal(t, []string{"other/sub/c", "subway"}, s.List())
}

func TestStale(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("block data"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	assert.True(t, s.Stale(path, info))

	fh := sampleHashes(path)
	fh.ModTime = info.ModTime()
	require.NoError(t, s.Put(fh))
	assert.False(t, s.Stale(path, info))

	later := info.ModTime().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.True(t, s.Stale(path, info))
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(sampleHashes("persisted")))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Load())
	assert.Equal(t, []string{"persisted"}, s.List())
}
