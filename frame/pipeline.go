package frame

import (
	"fmt"
	"io"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/apache/dubbo-go-triple/metadata"
)

// Pipeline reads and writes HTTP/2 frames on a single connection. It is
// not safe for concurrent use; callers own serializing access to it,
// typically via the single per-connection I/O goroutine described in
// spec §5.
type Pipeline struct {
	framer *http2.Framer

	hdecoder *hpack.Decoder
	hencoder *hpack.Encoder
	hbuf     fmtBuffer

	// headersInProgress accumulates a HEADERS frame across CONTINUATION
	// frames for the stream currently being assembled; HTTP/2 forbids
	// interleaving other frames mid-header-block, so one slot suffices.
	headersInProgress *Frame
	headerFields      []metadata.HeaderField
}

// fmtBuffer is the tiny io.Writer hpack.Encoder writes its output into.
type fmtBuffer struct {
	buf []byte
}

func (b *fmtBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *fmtBuffer) Reset() { b.buf = b.buf[:0] }

// NewPipeline wraps rw (typically a net.Conn, after the HTTP/2 preface
// has already been consumed/written by the caller) with a Framer and
// matching HPACK encoder/decoder pair.
func NewPipeline(rw io.ReadWriter) *Pipeline {
	p := &Pipeline{framer: http2.NewFramer(rw, rw)}
	p.framer.MaxHeaderListSize = 16 << 20
	p.hencoder = hpack.NewEncoder(&p.hbuf)
	p.hdecoder = hpack.NewDecoder(4096, func(f hpack.HeaderField) {
		p.headerFields = append(p.headerFields, metadata.HeaderField{Name: f.Name, Value: f.Value})
	})
	return p
}

// ReadFrame blocks for the next frame and translates it to this
// package's Frame. CONTINUATION frames are consumed internally and
// folded into the HEADERS frame that started the sequence; callers
// never see a bare CONTINUATION.
func (p *Pipeline) ReadFrame() (*Frame, error) {
	for {
		raw, err := p.framer.ReadFrame()
		if err != nil {
			return nil, err
		}

		switch f := raw.(type) {
		case *http2.HeadersFrame:
			p.headerFields = p.headerFields[:0]
			if _, err := p.hdecoder.Write(f.HeaderBlockFragment()); err != nil {
				return nil, fmt.Errorf("hpack decode: %w", err)
			}
			out := &Frame{
				Type:       TypeHeaders,
				StreamID:   f.StreamID,
				EndStream:  f.StreamEnded(),
				EndHeaders: f.HeadersEnded(),
			}
			if !out.EndHeaders {
				p.headersInProgress = out
				continue
			}
			out.Headers = metadata.FromList(p.headerFields)
			return out, nil

		case *http2.ContinuationFrame:
			if _, err := p.hdecoder.Write(f.HeaderBlockFragment()); err != nil {
				return nil, fmt.Errorf("hpack decode (continuation): %w", err)
			}
			if !f.HeadersEnded() {
				continue
			}
			out := p.headersInProgress
			p.headersInProgress = nil
			out.EndHeaders = true
			out.Headers = metadata.FromList(p.headerFields)
			return out, nil

		case *http2.DataFrame:
			return &Frame{
				Type:      TypeData,
				StreamID:  f.StreamID,
				EndStream: f.StreamEnded(),
				Data:      append([]byte(nil), f.Data()...),
			}, nil

		case *http2.WindowUpdateFrame:
			return &Frame{Type: TypeWindowUpdate, StreamID: f.StreamID, WindowIncrement: f.Increment}, nil

		case *http2.RSTStreamFrame:
			return &Frame{Type: TypeRSTStream, StreamID: f.StreamID, RSTCode: uint32(f.ErrCode)}, nil

		case *http2.PingFrame:
			return &Frame{Type: TypePing, PingData: f.Data, PingAck: f.IsAck()}, nil

		case *http2.SettingsFrame:
			out := &Frame{Type: TypeSettings, SettingsAck: f.IsAck()}
			f.ForeachSetting(func(s http2.Setting) error {
				out.Settings = append(out.Settings, s)
				return nil
			})
			return out, nil

		default:
			// PRIORITY, PUSH_PROMISE, GOAWAY, unknown extension frames:
			// not acted on at this layer, keep reading.
			continue
		}
	}
}

// WriteHeaders encodes h via HPACK and writes a HEADERS frame (plus
// CONTINUATION frames if the block overflows MaxFrameSize).
func (p *Pipeline) WriteHeaders(streamID uint32, h *metadata.Headers, endStream bool) error {
	p.hbuf.Reset()
	for _, f := range h.ToList() {
		if err := p.hencoder.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			return fmt.Errorf("hpack encode: %w", err)
		}
	}
	block := p.hbuf.buf

	first := block
	rest := []byte(nil)
	if len(block) > MaxFrameSize {
		first = block[:MaxFrameSize]
		rest = block[MaxFrameSize:]
	}

	if err := p.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: first,
		EndStream:     endStream,
		EndHeaders:    len(rest) == 0,
	}); err != nil {
		return err
	}

	for len(rest) > 0 {
		chunk := rest
		end := len(chunk) <= MaxFrameSize
		if !end {
			chunk = rest[:MaxFrameSize]
		}
		if err := p.framer.WriteContinuation(streamID, end, chunk); err != nil {
			return err
		}
		rest = rest[len(chunk):]
	}
	return nil
}

// WriteData writes a single DATA frame. Chunking payloads larger than
// MaxFrameSize, and pacing writes against the flow-control window, is
// flowctl's job, not this package's.
func (p *Pipeline) WriteData(streamID uint32, data []byte, endStream bool) error {
	return p.framer.WriteData(streamID, endStream, data)
}

// WriteWindowUpdate acknowledges received data back to the peer.
func (p *Pipeline) WriteWindowUpdate(streamID uint32, increment uint32) error {
	return p.framer.WriteWindowUpdate(streamID, increment)
}

// WriteRSTStream aborts a stream with the given gRPC/HTTP2 error code.
func (p *Pipeline) WriteRSTStream(streamID uint32, code uint32) error {
	return p.framer.WriteRSTStream(streamID, http2.ErrCode(code))
}

// WritePing writes a PING frame; ack echoes a peer-initiated ping.
func (p *Pipeline) WritePing(ack bool, data [8]byte) error {
	return p.framer.WritePing(ack, data)
}

// WriteSettings announces this connection's settings; WriteSettingsAck
// acknowledges the peer's.
func (p *Pipeline) WriteSettings(settings ...http2.Setting) error {
	return p.framer.WriteSettings(settings...)
}

func (p *Pipeline) WriteSettingsAck() error {
	return p.framer.WriteSettingsAck()
}
