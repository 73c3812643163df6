package blocks

import (
	"errors"
	"fmt"
	"io"
	"os"
)

type ChunkReader struct {
	file *os.File
	info os.FileInfo
}

// NewChunkReader opens a file and initializes a ChunkReader for reading chunks.
func NewChunkReader(filePath string) (*ChunkReader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ChunkReader{
		file: file,
		info: info,
	}, nil
}

// ReadChunk reads up to chunkSize bytes at offset. The returned slice is
// shorter than chunkSize only at the end of the file.
func (cr *ChunkReader) ReadChunk(offset, chunkSize int64) ([]byte, error) {
	buffer := make([]byte, chunkSize)
	n, err := cr.file.ReadAt(buffer, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read chunk at offset %d: %w", offset, err)
	}

	return buffer[:n], nil
}

// ReadAt lets a ChunkReader feed Hasher.HashReader directly.
func (cr *ChunkReader) ReadAt(p []byte, off int64) (int, error) {
	return cr.file.ReadAt(p, off)
}

// Info is the stat of the open file, taken once when the reader was opened.
func (cr *ChunkReader) Info() os.FileInfo {
	return cr.info
}

// Size is the file size observed when the reader was opened.
func (cr *ChunkReader) Size() int64 {
	return cr.info.Size()
}

// Close closes the file when done.
func (cr *ChunkReader) Close() error {
	return cr.file.Close()
}
