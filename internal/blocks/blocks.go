// Package blocks splits files into fixed-size blocks and computes the zsync
// weak checksum and a strong hash for each one.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/zeebo/xxh3"
)

type Block struct {
	Index  int64       `json:"index"`
	Offset int64       `json:"offset"`
	Length int         `json:"length"`
	Weak   rsum.Digest `json:"weak"`
	Strong string      `json:"strong"`
}

// Hasher produces per-block hashes. With PadLastBlock a short final block is
// hashed as if it were zero-filled to BlockSize, which is what zsync does.
type Hasher struct {
	BlockSize    int
	PadLastBlock bool
}

// StrongHash calculates the XXH3 128-bit hash of data as 32 hex characters.
func StrongHash(data []byte) string {
	hash := xxh3.Hash128(data)
	return fmt.Sprintf("%016x%016x", hash.Lo, hash.Hi)
}

// HashBlock hashes one block found at offset.
func (h Hasher) HashBlock(index, offset int64, data []byte) Block {
	hashed := data
	if h.PadLastBlock && len(data) < h.BlockSize {
		hashed = make([]byte, h.BlockSize)
		copy(hashed, data)
	}

	return Block{
		Index:  index,
		Offset: offset,
		Length: len(data),
		Weak:   rsum.Checksum(hashed),
		Strong: StrongHash(hashed),
	}
}

// HashReader hashes size bytes of r block by block.
func (h Hasher) HashReader(ctx context.Context, r io.ReaderAt, size int64) ([]Block, error) {
	if h.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", h.BlockSize)
	}

	count := (size + int64(h.BlockSize) - 1) / int64(h.BlockSize)
	result := make([]Block, 0, count)
	buffer := make([]byte, h.BlockSize)

	var offset int64
	for index := int64(0); offset < size; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		toRead := min(int64(h.BlockSize), size-offset)
		n, err := r.ReadAt(buffer[:toRead], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading block %d at offset %d: %w", index, offset, err)
		}
		if n == 0 {
			break
		}

		result = append(result, h.HashBlock(index, offset, buffer[:n]))
		offset += int64(n)
	}

	return result, nil
}

// ChunkHashes computes a strong hash for every chunkSize piece of r. The last
// piece is hashed as is.
func ChunkHashes(ctx context.Context, r io.ReaderAt, size, chunkSize int64) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	var hashes []string
	buffer := make([]byte, chunkSize)
	for offset := int64(0); offset < size; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.ReadAt(buffer[:min(chunkSize, size-offset)], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading chunk at offset %d: %w", offset, err)
		}
		if n == 0 {
			break
		}

		hashes = append(hashes, StrongHash(buffer[:n]))
		offset += int64(n)
	}

	return hashes, nil
}
