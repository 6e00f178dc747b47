package muxstream

import (
	"errors"

	"github.com/apache/dubbo-go-triple/frame"
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/status"
)

// ErrStreamHandled is returned by a ListenerFactory whose admission
// checks already wrote a complete response (a trailers-only frame with
// the appropriate :status/grpc-status, per spec §4.6's admission
// table) directly to the wire. It tells Dispatch to treat the stream
// as closed rather than RST_STREAM it a second time.
var ErrStreamHandled = errors.New("stream already handled by admission response")

// ListenerFactory creates the Listener for a newly-observed server-side
// stream, given the HEADERS that opened it. Returning an error rejects
// the stream (the caller should RST_STREAM it, unless the error is
// ErrStreamHandled, meaning the factory already responded itself).
type ListenerFactory func(streamID uint32, h *metadata.Headers) (Listener, error)

// Multiplexer owns the live-stream table for one connection. A client
// multiplexer allocates its own (odd) stream IDs; a server multiplexer
// lazily registers a stream, via its ListenerFactory, the first time it
// sees HEADERS for an unrecognized stream ID.
type Multiplexer struct {
	streams map[uint32]*Stream

	isServer    bool
	nextID      uint32 // next stream ID this side will allocate (client only)
	newListener ListenerFactory
}

// NewClientMultiplexer creates a Multiplexer that allocates odd stream
// IDs for locally-initiated calls (RFC 7540 §5.1.1).
func NewClientMultiplexer() *Multiplexer {
	return &Multiplexer{streams: make(map[uint32]*Stream), nextID: 1}
}

// NewServerMultiplexer creates a Multiplexer that registers inbound
// stream IDs lazily via factory on first HEADERS.
func NewServerMultiplexer(factory ListenerFactory) *Multiplexer {
	return &Multiplexer{streams: make(map[uint32]*Stream), isServer: true, newListener: factory}
}

// Open allocates a new client-initiated stream bound to l and returns
// its ID. Only valid on a client multiplexer.
func (m *Multiplexer) Open(l Listener) uint32 {
	id := m.nextID
	m.nextID += 2
	m.streams[id] = newStream(id, l)
	m.streams[id].State = StateOpen
	return id
}

// Get returns the stream for id, if any.
func (m *Multiplexer) Get(id uint32) (*Stream, bool) {
	s, ok := m.streams[id]
	return s, ok
}

// Close removes a stream's bookkeeping once it has fully closed.
func (m *Multiplexer) Close(id uint32) {
	delete(m.streams, id)
}

// Dispatch routes one inbound Frame to its stream, lazily registering a
// new server-side stream via ListenerFactory on first HEADERS for an
// unseen stream ID. Returns the stream the frame was routed to (for
// callers that need it to drive flowctl/call-layer bookkeeping) and an
// RST-worthy error if the frame violates the stream's state.
func (m *Multiplexer) Dispatch(f *frame.Frame) (*Stream, error) {
	s, ok := m.streams[f.StreamID]
	if !ok {
		if !m.isServer || f.Type != frame.TypeHeaders {
			return nil, status.Newf(status.Internal, "frame for unknown stream %d", f.StreamID).AsError()
		}
		l, err := m.newListener(f.StreamID, f.Headers)
		if err != nil {
			if errors.Is(err, ErrStreamHandled) {
				return nil, nil
			}
			return nil, err
		}
		s = newStream(f.StreamID, l)
		s.State = StateOpen
		m.streams[f.StreamID] = s
	}

	if !s.canAccept(f.Type == frame.TypeHeaders, f.Type == frame.TypeData) {
		return s, status.Newf(status.Internal, "frame type %d illegal in stream state %d", f.Type, s.State).AsError()
	}

	switch f.Type {
	case frame.TypeHeaders:
		s.headersReceived = true
		if s.Listener != nil {
			s.Listener.OnHeaders(f.Headers, f.EndStream)
		}
		if f.EndStream {
			s.onRemoteEndStream()
		}
	case frame.TypeData:
		if s.Listener != nil {
			s.Listener.OnData(f.Data, f.EndStream)
		}
		if f.EndStream {
			s.onRemoteEndStream()
		}
	case frame.TypeRSTStream:
		if s.Listener != nil {
			s.Listener.OnReset(f.RSTCode)
		}
		s.State = StateClosed
	}

	if s.State == StateClosed {
		delete(m.streams, s.ID)
	}
	return s, nil
}

// MarkLocalEndStream records that this side has sent END_STREAM on id,
// advancing its half-closed/closed bookkeeping.
func (m *Multiplexer) MarkLocalEndStream(id uint32) {
	if s, ok := m.streams[id]; ok {
		s.onLocalEndStream()
		if s.State == StateClosed {
			delete(m.streams, id)
		}
	}
}
