// Package triple wires the lower layers (frame, flowctl, muxstream,
// call) into one running connection: a single goroutine owns all
// mutable connection state, and every cross-goroutine interaction
// (notably a ServerCall's handler goroutine writing a response) is
// trampolined back onto that goroutine via a work queue, the pattern
// spec §5 calls out explicitly to keep HTTP/2 stream/window state
// free of locks.
package triple

import (
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/status"
)

// streamTransport adapts one stream's send surface to call.Transport /
// call.ServerTransport, trampolining every write onto the owning
// Connection's single I/O goroutine via Connection.runOnIOLoop.
type streamTransport struct {
	conn     *Connection
	streamID uint32
}

func (t *streamTransport) SendHeaders(h *metadata.Headers, endStream bool) error {
	return t.conn.runOnIOLoop(func() error {
		return t.conn.flow.WriteHeaders(t.streamID, h, endStream, nil)
	})
}

func (t *streamTransport) SendMessage(framed []byte, endStream bool) error {
	return t.conn.runOnIOLoop(func() error {
		return t.conn.flow.WriteData(t.streamID, framed, endStream, nil)
	})
}

func (t *streamTransport) SendTrailers(h *metadata.Headers) error {
	return t.conn.runOnIOLoop(func() error {
		// The trailers may queue behind DATA still waiting for window;
		// release the stream only once they have actually been written.
		return t.conn.flow.WriteTrailers(t.streamID, h, func(error) {
			t.conn.mux.MarkLocalEndStream(t.streamID)
			t.conn.flow.CloseStream(t.streamID)
		})
	})
}

func (t *streamTransport) CancelLocal(st *status.Status) error {
	return t.conn.runOnIOLoop(func() error {
		if err := t.conn.pipeline.WriteRSTStream(t.streamID, uint32(st.Code())); err != nil {
			return err
		}
		t.conn.mux.MarkLocalEndStream(t.streamID)
		t.conn.flow.CloseStream(t.streamID)
		return nil
	})
}

// runOnIOLoop schedules fn to run on the connection's single I/O
// goroutine and blocks for its result. Any goroutine may call this
// (a ServerCall's handler goroutine, in particular); fn itself must
// never call back into runOnIOLoop or it will deadlock against itself.
func (c *Connection) runOnIOLoop(fn func() error) error {
	result := make(chan error, 1)
	select {
	case c.callSoon <- func() { result <- fn() }:
	case <-c.closed:
		return status.Newf(status.Unavailable, "connection closed").AsError()
	}
	select {
	case err := <-result:
		return err
	case <-c.closed:
		return status.Newf(status.Unavailable, "connection closed").AsError()
	}
}
