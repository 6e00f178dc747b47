// Package muxstream implements the HTTP/2 Stream Multiplexer (spec §2):
// the table of live streams on one connection, their HTTP/2 state
// machine, and the lazy server-side registration of a stream's listener
// on its first inbound HEADERS frame.
package muxstream

import "github.com/apache/dubbo-go-triple/metadata"

// State is a stream's position in the HTTP/2 state machine (RFC 7540
// §5.1), trimmed to the states this engine's streams actually visit —
// reserved (push) states are never entered since this engine never
// sends PUSH_PROMISE.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateHalfClosedLocal  // this side sent END_STREAM
	StateHalfClosedRemote // peer sent END_STREAM
	StateClosed
)

// Listener receives frame-level events for one stream, adapted by the
// call/ package into ClientCall/ServerCall state machines.
type Listener interface {
	OnHeaders(h *metadata.Headers, endStream bool)
	OnData(data []byte, endStream bool)
	OnReset(code uint32)
}

// Stream tracks one HTTP/2 stream's state and the Listener bound to it.
type Stream struct {
	ID       uint32
	State    State
	Listener Listener

	headersReceived bool
	localClosed     bool
	remoteClosed    bool
}

func newStream(id uint32, l Listener) *Stream {
	return &Stream{ID: id, State: StateIdle, Listener: l}
}

// canAccept reports whether a frame (HEADERS if isHeaders, DATA if
// isData, anything else if neither) is legal to deliver in the stream's
// current state. A closed stream accepts nothing; a stream the peer has
// half-closed accepts everything except HEADERS and DATA; any other
// state accepts everything.
func (s *Stream) canAccept(isHeaders, isData bool) bool {
	switch s.State {
	case StateClosed:
		return false
	case StateHalfClosedRemote:
		// peer already sent END_STREAM; further HEADERS/DATA from them
		// is a protocol error, though a late RST_STREAM/WINDOW_UPDATE
		// is still acceptable (not gated here).
		return !isHeaders && !isData
	default:
		return true
	}
}

func (s *Stream) onRemoteEndStream() {
	s.remoteClosed = true
	s.advance()
}

func (s *Stream) onLocalEndStream() {
	s.localClosed = true
	s.advance()
}

func (s *Stream) advance() {
	switch {
	case s.localClosed && s.remoteClosed:
		s.State = StateClosed
	case s.localClosed:
		s.State = StateHalfClosedLocal
	case s.remoteClosed:
		s.State = StateHalfClosedRemote
	default:
		s.State = StateOpen
	}
}
