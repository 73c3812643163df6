package servers

import (
	"fmt"
	"time"

	"github.com/TypeTerrors/rsum/internal/blocks"
	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"google.golang.org/protobuf/encoding/protowire"
)

// message is implemented by every request and response of the hash service.
// The encoding is plain protobuf wire format:
//
//	ChecksumRequest  { bytes data = 1; }
//	ChecksumResponse { bytes digest = 1; }
//	FileRequest      { string path = 1; }
//	FileResponse     { FileHashes hashes = 1; }
//	ListRequest      {}
//	ListResponse     { repeated string paths = 1; }
//	FileHashes       { string path = 1; int64 size = 2; int64 mod_time_unix_nano = 3;
//	                   int64 block_size = 4; int64 chunk_size = 5; bytes rsum = 6;
//	                   repeated Block blocks = 7; repeated string chunks = 8; }
//	Block            { int64 index = 1; int64 offset = 2; int64 length = 3;
//	                   bytes weak = 4; string strong = 5; }
type message interface {
	marshal(b []byte) []byte
	unmarshal(b []byte) error
}

type ChecksumRequest struct {
	Data []byte
}

type ChecksumResponse struct {
	Digest rsum.Digest
}

type FileRequest struct {
	Path string
}

type FileResponse struct {
	Hashes store.FileHashes
}

type ListRequest struct{}

type ListResponse struct {
	Paths []string
}

// fieldFunc decodes one field and returns the number of bytes consumed.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

func expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("field %d: wire type %d, want %d", num, got, want)
	}
	return nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if err := expect(num, typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return n, nil
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, error) {
	if err := expect(num, typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n, nil
}

func consumeInt(num protowire.Number, typ protowire.Type, b []byte, dst *int64) (int, error) {
	if err := expect(num, typ, protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n, nil
}

func consumeDigest(num protowire.Number, typ protowire.Type, b []byte, dst *rsum.Digest) (int, error) {
	var raw []byte
	n, err := consumeBytes(num, typ, b, &raw)
	if err != nil || n < 0 {
		return n, err
	}
	if len(raw) != rsum.Size {
		return 0, fmt.Errorf("field %d: digest of %d bytes", num, len(raw))
	}
	copy(dst[:], raw)
	return n, nil
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func (m *ChecksumRequest) marshal(b []byte) []byte {
	return appendBytes(b, 1, m.Data)
}

func (m *ChecksumRequest) unmarshal(b []byte) error {
	*m = ChecksumRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBytes(num, typ, b, &m.Data)
		}
		return skipField(num, typ, b)
	})
}

func (m *ChecksumResponse) marshal(b []byte) []byte {
	return appendBytes(b, 1, m.Digest[:])
}

func (m *ChecksumResponse) unmarshal(b []byte) error {
	*m = ChecksumResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeDigest(num, typ, b, &m.Digest)
		}
		return skipField(num, typ, b)
	})
}

func (m *FileRequest) marshal(b []byte) []byte {
	return appendString(b, 1, m.Path)
}

func (m *FileRequest) unmarshal(b []byte) error {
	*m = FileRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(num, typ, b, &m.Path)
		}
		return skipField(num, typ, b)
	})
}

func (m *FileResponse) marshal(b []byte) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	return protowire.AppendBytes(b, marshalFileHashes(nil, m.Hashes))
}

func (m *FileResponse) unmarshal(b []byte) error {
	*m = FileResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skipField(num, typ, b)
		}
		var raw []byte
		n, err := consumeBytes(num, typ, b, &raw)
		if err != nil || n < 0 {
			return n, err
		}
		return n, unmarshalFileHashes(raw, &m.Hashes)
	})
}

func (m *ListRequest) marshal(b []byte) []byte { return b }

func (m *ListRequest) unmarshal(b []byte) error {
	return consumeFields(b, skipField)
}

func (m *ListResponse) marshal(b []byte) []byte {
	for _, p := range m.Paths {
		b = appendString(b, 1, p)
	}
	return b
}

func (m *ListResponse) unmarshal(b []byte) error {
	*m = ListResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skipField(num, typ, b)
		}
		var p string
		n, err := consumeString(num, typ, b, &p)
		if err == nil && n >= 0 {
			m.Paths = append(m.Paths, p)
		}
		return n, err
	})
}

func marshalFileHashes(b []byte, fh store.FileHashes) []byte {
	b = appendString(b, 1, fh.Path)
	b = appendInt(b, 2, fh.Size)
	if !fh.ModTime.IsZero() {
		b = appendInt(b, 3, fh.ModTime.UnixNano())
	}
	b = appendInt(b, 4, int64(fh.BlockSize))
	b = appendInt(b, 5, fh.ChunkSize)
	b = appendBytes(b, 6, fh.Rsum[:])
	for _, blk := range fh.Blocks {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalBlock(nil, blk))
	}
	for _, c := range fh.Chunks {
		b = appendString(b, 8, c)
	}
	return b
}

func unmarshalFileHashes(b []byte, fh *store.FileHashes) error {
	*fh = store.FileHashes{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, typ, b, &fh.Path)
		case 2:
			return consumeInt(num, typ, b, &fh.Size)
		case 3:
			var nanos int64
			n, err := consumeInt(num, typ, b, &nanos)
			if err == nil && n >= 0 {
				fh.ModTime = time.Unix(0, nanos)
			}
			return n, err
		case 4:
			var size int64
			n, err := consumeInt(num, typ, b, &size)
			fh.BlockSize = int(size)
			return n, err
		case 5:
			return consumeInt(num, typ, b, &fh.ChunkSize)
		case 6:
			return consumeDigest(num, typ, b, &fh.Rsum)
		case 7:
			var raw []byte
			n, err := consumeBytes(num, typ, b, &raw)
			if err != nil || n < 0 {
				return n, err
			}
			var blk blocks.Block
			if err := unmarshalBlock(raw, &blk); err != nil {
				return 0, err
			}
			fh.Blocks = append(fh.Blocks, blk)
			return n, nil
		case 8:
			var c string
			n, err := consumeString(num, typ, b, &c)
			if err == nil && n >= 0 {
				fh.Chunks = append(fh.Chunks, c)
			}
			return n, err
		}
		return skipField(num, typ, b)
	})
}

func marshalBlock(b []byte, blk blocks.Block) []byte {
	b = appendInt(b, 1, blk.Index)
	b = appendInt(b, 2, blk.Offset)
	b = appendInt(b, 3, int64(blk.Length))
	b = appendBytes(b, 4, blk.Weak[:])
	return appendString(b, 5, blk.Strong)
}

func unmarshalBlock(b []byte, blk *blocks.Block) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(num, typ, b, &blk.Index)
		case 2:
			return consumeInt(num, typ, b, &blk.Offset)
		case 3:
			var length int64
			n, err := consumeInt(num, typ, b, &length)
			blk.Length = int(length)
			return n, err
		case 4:
			return consumeDigest(num, typ, b, &blk.Weak)
		case 5:
			return consumeString(num, typ, b, &blk.Strong)
		}
		return skipField(num, typ, b)
	})
}
