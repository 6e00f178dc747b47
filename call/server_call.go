package call

import (
	"context"
	"fmt"

	"github.com/apache/dubbo-go-triple/codec"
	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/muxstream"
	"github.com/apache/dubbo-go-triple/rstream"
	"github.com/apache/dubbo-go-triple/status"
)

// inboundQueueDepth bounds ServerCall's inbound message queue (spec
// §5). Push runs on the connection's single I/O goroutine, so a slow
// handler that falls behind fills this queue rather than blocking the
// connection outright; it is sized well above what any reasonable
// handler should lag by, not as a throughput target.
const inboundQueueDepth = 1000

// ServerCallState is ServerCall's position in the admission/serving
// state machine (spec §4.6): Idle -> RequestHeadersReceived ->
// (Reading | Responding) -> Done.
type ServerCallState int

const (
	ServerIdle ServerCallState = iota
	ServerHeadersReceived
	ServerReading
	ServerResponding
	ServerDone
)

// ServerTransport is the subset of a stream's send surface a ServerCall
// needs to respond.
type ServerTransport interface {
	SendHeaders(h *metadata.Headers, endStream bool) error
	SendMessage(framed []byte, endStream bool) error
	SendTrailers(h *metadata.Headers) error
}

// ServerCall admits an inbound stream against a registered
// MethodDescriptor, decodes request messages, runs the handler, and
// emits the response. It implements muxstream.Listener so it can be
// handed directly to the server-side Multiplexer.
type ServerCall struct {
	transport ServerTransport
	method    *invocation.MethodDescriptor
	compress  compressor.Compressor

	state       ServerCallState
	decoder     *codec.Decoder
	headersSent bool
	reqWriter   *readWriterHandle // feeds ServerCall.method's inbound ReadStream
	cancel      context.CancelFunc
	ctx         context.Context

	// Runner executes the method handler. Defaults to spawning a plain
	// goroutine; a server with a bounded worker pool overrides this to
	// route handler execution through it instead.
	Runner func(func())
}

// readWriterHandle narrows rstream's generic writer handle to []byte,
// the wire representation this package works with; invocation-level
// (de)serialization happens inside the method handler itself.
type readWriterHandle struct {
	push   func([]byte)
	finish func(error)
}

// Admit runs the request-admission checks of spec §4.6 (method known,
// encoding supported) and, if they pass, constructs a ServerCall bound
// to the resolved method. req carries the already-parsed request
// headers; :method and content-type are not examined here.
func Admit(req *metadata.Request, router invocation.ServiceRouter, transport ServerTransport) (*ServerCall, *status.Status) {
	method, ok := router.Lookup(req.Service, req.Method)
	if !ok {
		return nil, status.Newf(status.Unimplemented, "method not found: %s/%s", req.Service, req.Method)
	}

	var comp compressor.Compressor
	if !compressor.IsIdentity(req.Encoding) {
		c, ok := compressor.Get(req.Encoding)
		if !ok {
			return nil, status.Newf(status.Unimplemented, "unsupported grpc-encoding %q", req.Encoding)
		}
		comp = c
	}

	ctx, cancel := context.WithCancel(context.Background())
	sc := &ServerCall{
		transport: transport,
		method:    method,
		compress:  comp,
		state:     ServerHeadersReceived,
		ctx:       ctx,
		cancel:    cancel,
	}

	var decompress compressor.Decompressor
	if comp != nil {
		decompress = comp
	}
	sc.decoder = codec.NewDecoder(decompress)
	sc.Runner = func(fn func()) { go fn() }
	return sc, nil
}

// OnHeaders implements muxstream.Listener, dispatching the method
// runner on the first HEADERS frame for this stream via Runner (a
// goroutine by default, or a bounded worker pool if the server set
// one), so application code never runs on the connection's I/O loop.
func (c *ServerCall) OnHeaders(_ *metadata.Headers, endStream bool) {
	rs, w := rstream.NewReadStream[[]byte](inboundQueueDepth)
	c.reqWriter = &readWriterHandle{push: w.Push, finish: w.Finish}
	c.decoder.OnMessage = func(payload []byte) error {
		c.reqWriter.push(payload)
		return nil
	}
	if endStream {
		c.reqWriter.finish(nil)
	}

	c.state = ServerReading
	c.Runner(func() { c.run(rs) })
}

// OnData implements muxstream.Listener.
func (c *ServerCall) OnData(data []byte, endStream bool) {
	if c.state == ServerDone {
		return
	}
	if err := c.decoder.Write(data); err != nil {
		c.fail(status.FromError(err))
		return
	}
	if endStream && c.reqWriter != nil {
		c.reqWriter.finish(nil)
	}
}

// OnReset implements muxstream.Listener for a client-initiated
// cancellation (spec §4.6 on_cancel_by_remote).
func (c *ServerCall) OnReset(code uint32) {
	c.state = ServerDone
	c.cancel()
	if c.reqWriter != nil {
		c.reqWriter.finish(status.Newf(status.Canceled, "call cancelled by remote (rst code %d)", code).AsError())
	}
}

// run dispatches to the method descriptor's handler by RPC shape,
// mirroring DefaultMethodRunner.run/handle_result/handle_exception.
func (c *ServerCall) run(rs *rstream.ReadStream[[]byte]) {
	switch c.method.Type {
	case invocation.Unary:
		payload, err := rs.Read(c.ctx)
		if err != nil {
			c.handleException(err)
			return
		}
		out, err := c.method.Unary(c.ctx, payload)
		if err != nil {
			c.handleException(err)
			return
		}
		c.handleResult([][]byte{out})

	case invocation.ClientStream:
		out, err := c.method.ClientStream(c.ctx, rs)
		if err != nil {
			c.handleException(err)
			return
		}
		c.handleResult([][]byte{out})

	case invocation.ServerStream:
		payload, err := rs.Read(c.ctx)
		if err != nil {
			c.handleException(err)
			return
		}
		ws := rstream.NewWriteStream[[]byte](c.sendMessage, c.finishWith)
		if err := c.method.ServerStream(c.ctx, payload, ws); err != nil {
			c.handleException(err)
			return
		}
		_ = ws.Close(nil)

	case invocation.BidiStream:
		ws := rstream.NewWriteStream[[]byte](c.sendMessage, c.finishWith)
		rw := &rstream.ReadWriteStream[[]byte, []byte]{ReadStream: rs, WriteStream: ws}
		if err := c.method.BidiStream(c.ctx, rw); err != nil {
			c.handleException(err)
			return
		}
		_ = ws.Close(nil)
	}
}

func (c *ServerCall) handleResult(messages [][]byte) {
	for _, m := range messages {
		if err := c.sendMessage(m); err != nil {
			c.handleException(err)
			return
		}
	}
	_ = c.finishWith(nil)
}

func (c *ServerCall) handleException(err error) {
	if c.state == ServerDone {
		return
	}
	st := status.Newf(status.Internal, "Invoke method failed: %v", err)
	_ = c.finishWith(st)
}

func (c *ServerCall) sendMessage(payload []byte) error {
	if !c.headersSent {
		c.headersSent = true
		h := metadata.New()
		h.SetStatus("200")
		h.Add(metadata.HeaderContentType, metadata.ContentTypeGRPCProto)
		if err := c.transport.SendHeaders(h, false); err != nil {
			return err
		}
	}
	compress := c.compress != nil
	framed, err := codec.Encode(payload, compress, c.compress)
	if err != nil {
		return err
	}
	return c.transport.SendMessage(framed, false)
}

// finishWith completes the call with st (nil meaning OK), sending
// headers-only trailers if no response headers were ever sent so
// content-type is always present on the wire.
func (c *ServerCall) finishWith(st *status.Status) error {
	if c.state == ServerDone {
		return nil
	}
	c.state = ServerDone
	c.cancel()

	if st == nil {
		st = status.New(status.OK)
	}

	trailers := metadata.New()
	if !c.headersSent {
		trailers.SetStatus("200")
		trailers.Add(metadata.HeaderContentType, metadata.ContentTypeGRPCProto)
	}
	trailers.Add(metadata.HeaderGRPCStatus, fmt.Sprintf("%d", uint32(st.Code())))
	if st.Description() != "" {
		trailers.Add(metadata.HeaderGRPCMessage, st.Description())
	}
	return c.transport.SendTrailers(trailers)
}

func (c *ServerCall) fail(st *status.Status) {
	_ = c.finishWith(st)
}

var _ muxstream.Listener = (*ServerCall)(nil)
