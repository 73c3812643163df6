package servers

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the hash service.
const CodecName = "rsumpb"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec encodes the hash service messages in protobuf wire format.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("%s: cannot marshal %T", CodecName, v)
	}
	return m.marshal(nil), nil
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("%s: cannot unmarshal into %T", CodecName, v)
	}
	if err := m.unmarshal(data); err != nil {
		return fmt.Errorf("%s: %w", CodecName, err)
	}
	return nil
}

func (Codec) Name() string { return CodecName }
