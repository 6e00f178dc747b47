package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/status"
)

type decoderState int

const (
	stateHeader decoderState = iota
	statePayload
)

// Decoder turns a byte stream that arrives piecemeal across HTTP/2 DATA
// frames into complete grpc-framed messages, delivered via OnMessage.
// It is NOT safe for concurrent use, but it is safe to feed from within
// its own OnMessage callback: a nested Write queues behind the call in
// progress instead of re-entering the parser.
type Decoder struct {
	OnMessage func(payload []byte) error
	OnClose   func(err error)

	decompress compressor.Decompressor

	state      decoderState
	header     [HeaderLen]byte
	headerHave int
	compressed bool
	length     uint32
	body       []byte
	bodyHave   int

	decoding bool
	pending  [][]byte
	closed   bool
	err      error
}

// NewDecoder creates a Decoder bound to the decompressor negotiated for
// this stream via its grpc-encoding header. dec may be nil if the
// stream never negotiated compression; a compressed frame arriving on
// such a stream fails with Unimplemented.
func NewDecoder(dec compressor.Decompressor) *Decoder {
	return &Decoder{decompress: dec}
}

// SetDecompressor binds dec as the decompressor for subsequent messages,
// used once the peer's grpc-encoding header is known (e.g. the client
// learns it from the server's response headers, after the Decoder was
// constructed with no a-priori compressor).
func (d *Decoder) SetDecompressor(dec compressor.Decompressor) {
	d.decompress = dec
}

// Write feeds newly-received bytes into the decoder. It may be called
// again from within OnMessage; such calls are queued and processed
// after the in-progress parse unwinds.
func (d *Decoder) Write(p []byte) error {
	if d.closed {
		return status.Newf(status.Internal, "decoder is closed").AsError()
	}
	if d.decoding {
		d.pending = append(d.pending, append([]byte(nil), p...))
		return nil
	}

	d.decoding = true
	err := d.drain(p)
	d.decoding = false

	for err == nil && len(d.pending) > 0 && !d.closed {
		next := d.pending[0]
		d.pending = d.pending[1:]
		d.decoding = true
		err = d.drain(next)
		d.decoding = false
	}
	if err != nil {
		d.fail(err)
	}
	return err
}

func (d *Decoder) drain(p []byte) error {
	for len(p) > 0 {
		switch d.state {
		case stateHeader:
			n := copy(d.header[d.headerHave:], p)
			d.headerHave += n
			p = p[n:]
			if d.headerHave < HeaderLen {
				return nil
			}
			if err := d.parseHeader(); err != nil {
				return err
			}
			d.state = statePayload
			d.bodyHave = 0
			d.body = make([]byte, d.length)

		case statePayload:
			n := copy(d.body[d.bodyHave:], p)
			d.bodyHave += n
			p = p[n:]
			if d.bodyHave < len(d.body) {
				return nil
			}
			msg, err := d.finishMessage()
			if err != nil {
				return err
			}
			d.headerHave = 0
			d.state = stateHeader
			if d.OnMessage != nil {
				if err := d.OnMessage(msg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Decoder) parseHeader() error {
	flag := d.header[0]
	if flag&0xFE != 0 {
		return status.Newf(status.Internal, "reserved bits not zero").AsError()
	}
	d.compressed = flag == 1
	d.length = binary.BigEndian.Uint32(d.header[1:HeaderLen])
	if d.length > MaxMessageLen {
		return status.Newf(status.InvalidArgument, "message too large").AsError()
	}
	return nil
}

func (d *Decoder) finishMessage() ([]byte, error) {
	if !d.compressed {
		return d.body, nil
	}
	if d.decompress == nil {
		return nil, status.Newf(status.Unimplemented, "message is compressed but stream negotiated no compression").AsError()
	}
	out, err := d.decompress.Decompress(d.body)
	if err != nil {
		return nil, fmt.Errorf("decompress failed: %w", err)
	}
	return out, nil
}

func (d *Decoder) fail(err error) {
	if d.closed {
		return
	}
	d.closed = true
	d.err = err
	if d.OnClose != nil {
		d.OnClose(err)
	}
}

// Close flushes the decoder. A non-empty partial frame in flight is
// reported as an error; a clean boundary closes silently.
func (d *Decoder) Close() error {
	if d.closed {
		return d.err
	}
	var err error
	if d.headerHave != 0 || d.bodyHave != 0 {
		err = status.Newf(status.Internal, "stream closed mid-message").AsError()
	}
	d.closed = true
	d.err = err
	if d.OnClose != nil {
		d.OnClose(err)
	}
	return err
}
