package servers

import (
	"bytes"
	"testing"

	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func TestChecksumResponseWireFormat(t *testing.T) {
	resp := &ChecksumResponse{Digest: rsum.Digest{0x00, 0x83, 0x00, 0xc4}}

	raw, err := Codec{}.Marshal(resp)
	require.NoError(t, err)
	// tag 1, length 4, raw digest bytes
	assert.Equal(t, []byte{0x0a, 0x04, 0x00, 0x83, 0x00, 0xc4}, raw)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	var raw []byte
	raw = protowire.AppendTag(raw, 9, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 300)
	raw = appendString(raw, 1, "kept")

	var req FileRequest
	require.NoError(t, Codec{}.Unmarshal(raw, &req))
	assert.Equal(t, "kept", req.Path)
}

func TestMalformedMessages(t *testing.T) {
	var resp ChecksumResponse
	assert.Error(t, Codec{}.Unmarshal([]byte{0x0a, 0x02, 0x00, 0x01}, &resp), "short digest")
	assert.Error(t, Codec{}.Unmarshal([]byte{0x0a, 0x09, 0x00}, &resp), "truncated")
	assert.Error(t, Codec{}.Unmarshal([]byte{0x08, 0x01}, &resp), "wrong wire type")
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, Codec{}.Unmarshal(nil, new(int)))
	assert.Equal(t, CodecName, Codec{}.Name())
}

func TestListResponseKeepsOrder(t *testing.T) {
	in := &ListResponse{Paths: []string{"b", "a", "c"}}
	raw, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	var out ListResponse
	require.NoError(t, Codec{}.Unmarshal(raw, &out))
	assert.Equal(t, in.Paths, out.Paths)
}

func TestTxtRecordsIdentifyService(t *testing.T) {
	assert.Contains(t, TxtRecords(), ServiceID)
}
