// Package codec implements the Triple message framing format: a
// 1-byte compressed flag, a 4-byte big-endian length, and the payload
// (spec §4.1). This is distinct from HTTP/2 framing (package frame) —
// one grpc-framed message can span, or share, several DATA frames.
package codec

import (
	"encoding/binary"

	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/status"
)

// HeaderLen is the size of the grpc message envelope header.
const HeaderLen = 5

// MaxMessageLen is the maximum payload size this engine will encode or
// accept (spec §4.1, "4 MiB").
const MaxMessageLen = 4 * 1024 * 1024

// Encode builds the 5-byte-header-prefixed wire representation of
// payload. If compress is true, comp must be non-nil and is used to
// compress payload before framing. Fails with InvalidArgument if the
// (possibly compressed) payload exceeds MaxMessageLen.
func Encode(payload []byte, compress bool, comp compressor.Compressor) ([]byte, error) {
	flag := byte(0)
	body := payload

	if compress {
		if comp == nil {
			return nil, status.Newf(status.Internal, "compression requested but no compressor set").AsError()
		}
		compressed, err := comp.Compress(payload)
		if err != nil {
			return nil, status.Newf(status.Internal, "compress failed: %v", err).AsError()
		}
		body = compressed
		flag = 1
	}

	if len(body) > MaxMessageLen {
		return nil, status.Newf(status.InvalidArgument, "message too large").AsError()
	}

	out := make([]byte, HeaderLen+len(body))
	out[0] = flag
	binary.BigEndian.PutUint32(out[1:HeaderLen], uint32(len(body))) //nolint:gosec // bounded by MaxMessageLen above
	copy(out[HeaderLen:], body)
	return out, nil
}
