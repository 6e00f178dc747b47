// Package call implements the Triple Call State Machines (spec §2,
// §4.5, §4.6): ClientCall driving an outbound RPC from the caller's
// first message through completion, and ServerCall admitting and
// serving an inbound one.
package call

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/dubbo-go-triple/codec"
	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/muxstream"
	"github.com/apache/dubbo-go-triple/status"
)

// ClientCallState is ClientCall's position in its state machine
// (spec §4.5): Idle -> HeadersSent -> (Sending | ServerComplete) -> Done.
type ClientCallState int

const (
	ClientIdle ClientCallState = iota
	ClientHeadersSent
	ClientSending
	ClientServerComplete
	ClientDone
)

// Transport is the subset of a stream's send surface a ClientCall
// needs: opening it (bound by the caller before Start), writing
// headers/messages, and resetting it locally.
type Transport interface {
	SendHeaders(h *metadata.Headers, endStream bool) error
	SendMessage(framed []byte, endStream bool) error
	CancelLocal(st *status.Status) error
}

// ClientCallListener receives the two events application code (via
// the adapters below) ultimately sees: each decoded response message,
// and the terminal status plus trailers.
type ClientCallListener interface {
	OnMessage(msg []byte)
	OnClose(st *status.Status, trailers map[string]string)
}

// ClientCall drives one outbound Triple RPC. It implements
// muxstream.Listener so the connection's frame dispatcher can deliver
// inbound frames to it directly.
type ClientCall struct {
	transport Transport
	listener  ClientCallListener
	compress  compressor.Compressor // nil means identity

	request *metadata.Request
	state   ClientCallState
	decoder *codec.Decoder

	// headersReceived distinguishes the response HEADERS (validated
	// below) from a later HEADERS frame, which per spec §4.5 is always
	// trailers (a second HEADERS frame only ever carries grpc-status).
	headersReceived bool
}

// NewClientCall creates a ClientCall that will send req over transport
// and report events to listener. comp may be nil for identity encoding.
func NewClientCall(transport Transport, listener ClientCallListener, comp compressor.Compressor) *ClientCall {
	c := &ClientCall{transport: transport, listener: listener, compress: comp}
	var decompress compressor.Decompressor
	if comp != nil {
		decompress = comp
	}
	c.decoder = codec.NewDecoder(decompress)
	c.decoder.OnMessage = func(payload []byte) error {
		c.listener.OnMessage(payload)
		return nil
	}
	return c
}

// SetTransport binds the stream transport once it is known. Some
// callers (triple.Client) must allocate the stream ID, which requires
// registering this call's muxstream.Listener first, before the
// transport bound to that ID can be constructed.
func (c *ClientCall) SetTransport(transport Transport) {
	c.transport = transport
}

// Start records the request metadata that will accompany the first
// SendMessage call's headers; it does not itself write to the wire
// (matching TripleClientCall.start, which only binds the stream).
func (c *ClientCall) Start(req *metadata.Request) {
	c.request = req
	c.state = ClientIdle
}

// SendMessage frames the already-serialized payload (compressing it if
// a compressor is set), sending the request
// headers first if this is the first call. last marks the final
// message of the request stream (END_STREAM on the DATA frame).
func (c *ClientCall) SendMessage(payload []byte, last bool) error {
	if c.state == ClientDone {
		return status.Newf(status.Internal, "call is done, cannot send message").AsError()
	}

	if c.state == ClientIdle {
		if err := c.transport.SendHeaders(c.request.ToHeaders(), false); err != nil {
			return c.fail(err)
		}
		c.state = ClientHeadersSent
	}

	compress := c.compress != nil
	framed, err := codec.Encode(payload, compress, c.compress)
	if err != nil {
		return c.fail(err)
	}
	if err := c.transport.SendMessage(framed, last); err != nil {
		return c.fail(err)
	}
	if last {
		c.state = ClientServerComplete
	} else {
		c.state = ClientSending
	}
	return nil
}

func (c *ClientCall) fail(err error) error {
	st := status.FromError(err)
	c.CancelLocal(fmt.Errorf("%s", st.Description()))
	c.listener.OnClose(st, nil)
	return err
}

// CancelLocal aborts the call from this side (spec §4.5
// cancel_by_local): a no-op once already done. If headers were never
// sent it only marks the call done, since there is nothing to reset on
// the wire.
func (c *ClientCall) CancelLocal(cause error) {
	if c.state == ClientDone {
		return
	}
	wasIdle := c.state == ClientIdle
	c.state = ClientDone
	if wasIdle {
		return
	}
	st := status.Newf(status.Canceled, "call cancelled by client: %v", cause)
	_ = c.transport.CancelLocal(st)
}

// OnHeaders implements muxstream.Listener. The first HEADERS frame for
// a call is the response headers, validated per spec §4.5 (HTTP status
// maps to OK, content-type is grpc, grpc-encoding if present is known);
// any HEADERS frame after that (or this one, if end_stream is set) is
// trailers carrying the final grpc-status.
func (c *ClientCall) OnHeaders(h *metadata.Headers, endStream bool) {
	if c.state == ClientDone {
		return
	}

	if !c.headersReceived {
		c.headersReceived = true
		if st := c.validateResponseHeaders(h); st != nil {
			c.onComplete(st, nil)
			return
		}
	}

	if endStream {
		// Either a trailers-only response (status headers doubled as
		// trailers) or a genuine trailers frame following prior DATA.
		c.onComplete(statusFromTrailers(h), trailersToMap(h))
	}
}

// validateResponseHeaders applies the HTTP status / content-type /
// grpc-encoding checks spec §4.5 requires before any DATA is accepted,
// returning a non-nil status if the call should fail immediately.
func (c *ClientCall) validateResponseHeaders(h *metadata.Headers) *status.Status {
	httpStatus, err := strconv.Atoi(h.Status())
	if h.Status() == "" || err != nil {
		return status.Newf(status.Unknown, "missing or malformed :status")
	}
	if code := status.FromHTTPStatus(httpStatus); code != status.OK {
		return status.New(code)
	}

	ct, _ := h.Get(metadata.HeaderContentType)
	if !strings.HasPrefix(ct, "application/grpc") {
		return status.Newf(status.Internal, "invalid content-type")
	}

	if enc, ok := h.Get(metadata.HeaderGRPCEncoding); ok && !compressor.IsIdentity(enc) {
		dc, ok := compressor.Get(enc)
		if !ok {
			return status.Newf(status.Unimplemented, "unsupported grpc-encoding %q", enc)
		}
		c.decoder.SetDecompressor(dc)
	}
	return nil
}

// OnData implements muxstream.Listener, feeding bytes to the grpc
// message decoder.
func (c *ClientCall) OnData(data []byte, endStream bool) {
	if c.state == ClientDone {
		return
	}
	if err := c.decoder.Write(data); err != nil {
		c.onComplete(status.FromError(err), nil)
		return
	}
	if endStream {
		c.onComplete(status.New(status.OK), nil)
	}
}

// OnReset implements muxstream.Listener for an RST_STREAM from the
// peer (on_cancel_by_remote, spec §4.5).
func (c *ClientCall) OnReset(code uint32) {
	c.onComplete(status.Newf(status.Canceled, "call cancelled by remote (rst code %d)", code), nil)
}

func (c *ClientCall) onComplete(st *status.Status, trailers map[string]string) {
	if c.state == ClientDone {
		return
	}
	c.state = ClientDone
	c.listener.OnClose(st, trailers)
}

func statusFromTrailers(h *metadata.Headers) *status.Status {
	v, ok := h.Get(metadata.HeaderGRPCStatus)
	if !ok {
		return status.Newf(status.Unknown, "missing grpc-status")
	}
	return status.New(status.FromWire(parseUintSafe(v))).WithDescription(trailerMessage(h))
}

func trailerMessage(h *metadata.Headers) string {
	v, _ := h.Get(metadata.HeaderGRPCMessage)
	return v
}

func trailersToMap(h *metadata.Headers) map[string]string {
	out := make(map[string]string)
	for _, f := range h.ToList() {
		out[f.Name] = f.Value
	}
	return out
}

func parseUintSafe(s string) uint32 {
	var v uint32
	for _, r := range s {
		if r < '0' || r > '9' {
			return v
		}
		v = v*10 + uint32(r-'0')
	}
	return v
}

var _ muxstream.Listener = (*ClientCall)(nil)
