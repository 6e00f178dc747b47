// Package flowctl implements the per-stream ordered writer and the
// connection-level HTTP/2 flow controller (spec §2 "Ordered Writer /
// Flow Controller"): outbound frames for a stream reach the wire in the
// order they are enqueued, and DATA frames that would overrun the
// peer's advertised window are buffered until a WINDOW_UPDATE arrives.
// A frame enqueued while earlier frames of the same stream are buffered
// waits behind them, so TRAILERS never overtake buffered DATA. Frames
// are not reordered by kind: HEADERS go out first only because callers
// enqueue them first.
package flowctl

import (
	"github.com/apache/dubbo-go-triple/frame"
	"github.com/apache/dubbo-go-triple/metadata"
)

// kind names the three frame categories that make up one stream's
// response; it selects how a queued frame is written, not its position
// in the queue.
type kind int

const (
	kindHeaders kind = iota
	kindData
	kindTrailers
)

// outbound is one queued write. done, if set, is called once the frame
// has actually reached the wire (or the controller is torn down).
type outbound struct {
	kind      kind
	streamID  uint32
	headers   *metadata.Headers
	data      []byte
	endStream bool
	done      func(error)
}

// connStreamID is the synthetic key used for the connection-level
// window inside streamWindows; real stream IDs are always >= 1.
const connStreamID = 0

// DefaultWindowSize is the initial flow-control window this engine
// advertises and assumes for peers before any WINDOW_UPDATE arrives,
// matching HTTP/2's default initial window (RFC 7540 §6.9.2).
const DefaultWindowSize = 65535

// Controller serializes outbound frames for one connection through a
// single Pipeline, applying HTTP/2 flow control. It is driven entirely
// by its owning goroutine (the connection's I/O loop, spec §5) and
// holds no internal locks.
type Controller struct {
	pipeline *frame.Pipeline

	windows map[uint32]int64 // keyed by stream ID, connStreamID for the connection window

	// pending holds frames that could not be fully written because the
	// relevant window was exhausted, one ordered queue per stream.
	pending map[uint32][]outbound

	closedStreams map[uint32]bool
}

// NewController creates a Controller writing through p, seeded with the
// HTTP/2 default initial window for the connection and per new stream.
func NewController(p *frame.Pipeline) *Controller {
	c := &Controller{
		pipeline:      p,
		windows:       map[uint32]int64{connStreamID: DefaultWindowSize},
		pending:       make(map[uint32][]outbound),
		closedStreams: make(map[uint32]bool),
	}
	return c
}

// OpenStream registers a stream's initial send window, to be called
// once per stream before any frame is enqueued for it.
func (c *Controller) OpenStream(streamID uint32, initialWindow int64) {
	c.windows[streamID] = initialWindow
}

// CloseStream drops bookkeeping for a finished stream and fails any
// frames still buffered for it.
func (c *Controller) CloseStream(streamID uint32) {
	c.closedStreams[streamID] = true
	for _, f := range c.pending[streamID] {
		if f.done != nil {
			f.done(errStreamClosed)
		}
	}
	delete(c.pending, streamID)
	delete(c.windows, streamID)
}

// WriteHeaders enqueues a HEADERS frame, unaffected by flow control
// (RFC 7540 flow control applies only to DATA).
func (c *Controller) WriteHeaders(streamID uint32, h *metadata.Headers, endStream bool, done func(error)) error {
	return c.dispatch(outbound{kind: kindHeaders, streamID: streamID, headers: h, endStream: endStream, done: done})
}

// WriteTrailers enqueues a response's trailing HEADERS frame (carries
// grpc-status/grpc-message, spec §4.4); always END_STREAM.
func (c *Controller) WriteTrailers(streamID uint32, h *metadata.Headers, done func(error)) error {
	return c.dispatch(outbound{kind: kindTrailers, streamID: streamID, headers: h, endStream: true, done: done})
}

// WriteData enqueues message bytes for streamID, subject to flow
// control: if the connection or stream window can't absorb all of
// data, the unsent remainder is buffered and retried once a
// WINDOW_UPDATE arrives (OnWindowUpdate).
func (c *Controller) WriteData(streamID uint32, data []byte, endStream bool, done func(error)) error {
	return c.dispatch(outbound{kind: kindData, streamID: streamID, data: data, endStream: endStream, done: done})
}

func (c *Controller) dispatch(f outbound) error {
	if c.closedStreams[f.streamID] {
		if f.done != nil {
			f.done(errStreamClosed)
		}
		return nil
	}
	// If this stream already has buffered data waiting on window, new
	// writes queue behind it to preserve ordering.
	if len(c.pending[f.streamID]) > 0 {
		c.pending[f.streamID] = append(c.pending[f.streamID], f)
		return nil
	}
	return c.send(f)
}

func (c *Controller) send(f outbound) error {
	switch f.kind {
	case kindHeaders, kindTrailers:
		if err := c.pipeline.WriteHeaders(f.streamID, f.headers, f.endStream); err != nil {
			if f.done != nil {
				f.done(err)
			}
			return err
		}
		if f.done != nil {
			f.done(nil)
		}
		return nil

	case kindData:
		return c.sendData(f)
	}
	return nil
}

// sendData writes as much of f.data as the connection and stream
// windows allow, chunked to frame.MaxFrameSize, and requeues the
// remainder if the window runs out first. The remainder keeps f's
// END_STREAM request, so only the physically last chunk carries it.
func (c *Controller) sendData(f outbound) error {
	data := f.data
	for len(data) > 0 {
		avail := c.available(f.streamID)
		if avail <= 0 {
			c.pending[f.streamID] = append(c.pending[f.streamID], outbound{
				kind: kindData, streamID: f.streamID, data: data, endStream: f.endStream, done: f.done,
			})
			return nil
		}

		n := int64(len(data))
		if n > avail {
			n = avail
		}
		if n > frame.MaxFrameSize {
			n = frame.MaxFrameSize
		}

		chunk := data[:n]
		data = data[n:]
		last := len(data) == 0
		if err := c.pipeline.WriteData(f.streamID, chunk, last && f.endStream); err != nil {
			if f.done != nil {
				f.done(err)
			}
			return err
		}
		c.debit(f.streamID, n)
	}
	if f.done != nil {
		f.done(nil)
	}
	return nil
}

func (c *Controller) available(streamID uint32) int64 {
	conn := c.windows[connStreamID]
	stream := c.windows[streamID]
	if conn < stream {
		return conn
	}
	return stream
}

func (c *Controller) debit(streamID uint32, n int64) {
	c.windows[connStreamID] -= n
	c.windows[streamID] -= n
}

// OnWindowUpdate credits a WINDOW_UPDATE back to the connection (id==0)
// or a specific stream's window and flushes anything that was waiting
// on it.
func (c *Controller) OnWindowUpdate(streamID uint32, increment uint32) {
	c.windows[streamID] += int64(increment)
	c.flushPending(streamID)
	if streamID == connStreamID {
		for sid := range c.pending {
			c.flushPending(sid)
		}
	}
}

func (c *Controller) flushPending(streamID uint32) {
	queued := c.pending[streamID]
	if len(queued) == 0 {
		return
	}
	delete(c.pending, streamID)
	for _, f := range queued {
		if c.closedStreams[f.streamID] {
			if f.done != nil {
				f.done(errStreamClosed)
			}
			continue
		}
		// send() may re-buffer f.streamID again if the window is still
		// short; dispatch rather than send directly so a stream that
		// reappears in c.pending mid-loop still gets queued correctly.
		if err := c.dispatch(f); err != nil {
			return
		}
	}
}

type flowError string

func (e flowError) Error() string { return string(e) }

const errStreamClosed = flowError("stream closed while frame was pending flow control")
