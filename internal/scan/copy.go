package scan

import (
	"context"
	"errors"
	"io"
)

const copyBufferSize = 256 * 1024

// copyAt streams size bytes of r into w, checking ctx between reads.
func copyAt(ctx context.Context, w io.Writer, r io.ReaderAt, size int64) (int64, error) {
	buffer := make([]byte, min(size, copyBufferSize))
	var offset int64
	for offset < size {
		if err := ctx.Err(); err != nil {
			return offset, err
		}
		n, err := r.ReadAt(buffer[:min(int64(len(buffer)), size-offset)], offset)
		if n > 0 {
			if _, werr := w.Write(buffer[:n]); werr != nil {
				return offset, werr
			}
			offset += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return offset, err
		}
	}
	return offset, nil
}
