package blocks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrongHashFormat(t *testing.T) {
	h := StrongHash([]byte("block"))
	assert.Len(t, h, 32)
	assert.Equal(t, h, StrongHash([]byte("block")))
	assert.NotEqual(t, h, StrongHash([]byte("Block")))
}

func TestHashReaderSplitsIntoBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10) // 100 bytes
	h := Hasher{BlockSize: 32}

	got, err := h.HashReader(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i, b := range got {
		start := i * 32
		end := min(start+32, len(data))
		assert.Equal(t, int64(i), b.Index)
		assert.Equal(t, int64(start), b.Offset)
		assert.Equal(t, end-start, b.Length)
		assert.Equal(t, rsum.Checksum(data[start:end]), b.Weak)
		assert.Equal(t, StrongHash(data[start:end]), b.Strong)
	}
}

func TestPadLastBlock(t *testing.T) {
	data := []byte("short tail")
	h := Hasher{BlockSize: 16, PadLastBlock: true}

	b := h.HashBlock(3, 48, data)
	padded := append(append([]byte(nil), data...), make([]byte, 6)...)

	assert.Equal(t, len(data), b.Length)
	assert.Equal(t, rsum.Checksum(padded), b.Weak)
	assert.Equal(t, StrongHash(padded), b.Strong)
	// trailing zeros change only the weighted sum
	assert.Equal(t, rsum.Checksum(data).A(), b.Weak.A())
}

func TestHashReaderEmpty(t *testing.T) {
	got, err := Hasher{BlockSize: 16}.HashReader(context.Background(), bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHashReaderRejectsBadBlockSize(t *testing.T) {
	_, err := Hasher{}.HashReader(context.Background(), bytes.NewReader([]byte("x")), 1)
	assert.Error(t, err)
}

func TestHashReaderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Hasher{BlockSize: 4}.HashReader(ctx, bytes.NewReader([]byte("abcdefgh")), 8)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunkHashes(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 25)

	got, err := ChunkHashes(context.Background(), bytes.NewReader(data), int64(len(data)), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, StrongHash(data[:10]), got[0])
	assert.Equal(t, got[0], got[1])
	assert.Equal(t, StrongHash(data[20:]), got[2])
}

func TestChunkReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o644))

	cr, err := NewChunkReader(path)
	require.NoError(t, err)
	defer cr.Close()

	assert.Equal(t, int64(10), cr.Size())
	require.NotNil(t, cr.Info())
	assert.Equal(t, "file.bin", cr.Info().Name())
	assert.Equal(t, cr.Size(), cr.Info().Size())

	chunk, err := cr.ReadChunk(4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("efgh"), chunk)

	tail, err := cr.ReadChunk(8, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("ij"), tail)

	blocks, err := Hasher{BlockSize: 4}.HashReader(context.Background(), cr, cr.Size())
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
}

func TestChunkReaderInfoIsFromOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))
	opened := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(path, opened, opened))

	cr, err := NewChunkReader(path)
	require.NoError(t, err)
	defer cr.Close()

	// Replacing the file afterwards must not change what the reader reports.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, []byte("second version"), 0o644))

	assert.Equal(t, int64(5), cr.Size())
	assert.True(t, opened.Equal(cr.Info().ModTime()))

	data, err := cr.ReadChunk(0, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestNewChunkReaderMissingFile(t *testing.T) {
	_, err := NewChunkReader(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
