package triple

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"golang.org/x/net/http2"

	"github.com/apache/dubbo-go-triple/call"
	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/flowctl"
	"github.com/apache/dubbo-go-triple/frame"
	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/muxstream"
	"github.com/apache/dubbo-go-triple/status"
)

// Connection owns one HTTP/2 connection's entire mutable state —
// the frame pipeline, the flow controller, and the stream table — and
// is only ever touched from its own goroutine (Serve) or via
// runOnIOLoop's trampoline. Logging goes through an injected
// *log.Logger rather than a package-level global.
type Connection struct {
	pipeline *frame.Pipeline
	flow     *flowctl.Controller
	mux      *muxstream.Multiplexer

	callSoon chan func()
	closed   chan struct{}
	logger   *log.Logger
}

// newConnection wires the shared plumbing; server- and client-side
// entry points supply their own Multiplexer (lazy server registration
// vs. odd-ID client allocation, see muxstream).
func newConnection(rw io.ReadWriter, mux *muxstream.Multiplexer, logger *log.Logger) *Connection {
	pipeline := frame.NewPipeline(rw)
	c := &Connection{
		pipeline: pipeline,
		flow:     flowctl.NewController(pipeline),
		mux:      mux,
		callSoon: make(chan func(), 64),
		closed:   make(chan struct{}),
		logger:   logger,
	}
	return c
}

// Serve runs the connection's single I/O goroutine until the peer
// closes the connection or a fatal framing error occurs. It announces
// this engine's SETTINGS first, per RFC 7540 §3.5.
func (c *Connection) Serve() error {
	if err := c.pipeline.WriteSettings(); err != nil {
		return err
	}

	frames := make(chan *frame.Frame)
	readErrs := make(chan error, 1)
	go func() {
		for {
			f, err := c.pipeline.ReadFrame()
			if err != nil {
				readErrs <- err
				return
			}
			frames <- f
		}
	}()

	for {
		select {
		case f := <-frames:
			c.handleFrame(f)
		case err := <-readErrs:
			close(c.closed)
			return err
		case fn := <-c.callSoon:
			fn()
		}
	}
}

func (c *Connection) handleFrame(f *frame.Frame) {
	switch f.Type {
	case frame.TypeWindowUpdate:
		c.flow.OnWindowUpdate(f.StreamID, f.WindowIncrement)
		return
	case frame.TypePing:
		if !f.PingAck {
			if err := c.pipeline.WritePing(true, f.PingData); err != nil {
				c.logger.Printf("triple: ping ack failed: %v", err)
			}
		}
		return
	case frame.TypeSettings:
		if !f.SettingsAck {
			if err := c.pipeline.WriteSettingsAck(); err != nil {
				c.logger.Printf("triple: settings ack failed: %v", err)
			}
		}
		return
	}

	if f.Type == frame.TypeHeaders {
		c.flow.OpenStream(f.StreamID, flowctl.DefaultWindowSize)
	}
	if f.Type == frame.TypeData && len(f.Data) > 0 {
		// Spec §4.2: inbound DATA MUST be acknowledged on both the
		// stream and the connection so the peer's send window refills;
		// the raw http2.Framer does none of this automatically.
		n := uint32(len(f.Data))
		if err := c.pipeline.WriteWindowUpdate(f.StreamID, n); err != nil {
			c.logger.Printf("triple: stream window_update failed: %v", err)
		}
		if err := c.pipeline.WriteWindowUpdate(0, n); err != nil {
			c.logger.Printf("triple: connection window_update failed: %v", err)
		}
	}

	stream, err := c.mux.Dispatch(f)
	if err != nil {
		id := f.StreamID
		if stream != nil {
			id = stream.ID
		}
		c.logger.Printf("triple: rejecting stream %d: %v", id, err)
		if werr := c.pipeline.WriteRSTStream(id, uint32(http2.ErrCodeInternal)); werr != nil {
			c.logger.Printf("triple: rst_stream write failed: %v", werr)
		}
	}
}

// NewServerCallListener returns the muxstream.ListenerFactory a server
// Connection should register, admitting each new stream's request
// against router and running its handler via runner (nil means each
// call gets its own bare goroutine). Admission follows the table in
// spec §4.6: a request failing :method/content-type/:path checks gets
// a trailers-only response with the listed HTTP :status; an unknown
// handler or unsupported grpc-encoding gets a normal (HTTP 200)
// gRPC-framed UNIMPLEMENTED response. Every rejection is written
// synchronously here, since the factory runs on the connection's own
// I/O goroutine (inside Dispatch, called from handleFrame) — it must
// not go through the runOnIOLoop trampoline streamTransport uses, or
// it would deadlock against itself.
func NewServerCallListener(conn *Connection, router invocation.ServiceRouter, runner func(func())) muxstream.ListenerFactory {
	return func(streamID uint32, h *metadata.Headers) (muxstream.Listener, error) {
		if h.Method() != "POST" {
			conn.rejectAdmission(streamID, "405", status.Internal, fmt.Sprintf("unsupported :method %q", h.Method()))
			return nil, muxstream.ErrStreamHandled
		}
		ct, _ := h.Get(metadata.HeaderContentType)
		if !strings.HasPrefix(ct, "application/grpc") {
			conn.rejectAdmission(streamID, "415", status.Unimplemented, fmt.Sprintf("unsupported content-type %q", ct))
			return nil, muxstream.ErrStreamHandled
		}

		req, st := requestFromPath(h.Path())
		if st != nil {
			conn.rejectAdmission(streamID, "404", st.Code(), st.Description())
			return nil, muxstream.ErrStreamHandled
		}
		if v, ok := h.Get(metadata.HeaderGRPCEncoding); ok {
			req.Encoding = v
		}
		if v, ok := h.Get(metadata.HeaderServiceVersion); ok {
			req.Version = v
		}
		if v, ok := h.Get(metadata.HeaderServiceGroup); ok {
			req.Group = v
		}

		if _, ok := router.Lookup(req.Service, req.Method); !ok {
			conn.rejectAdmission(streamID, "200", status.Unimplemented,
				fmt.Sprintf("method not found: %s/%s", req.Service, req.Method))
			return nil, muxstream.ErrStreamHandled
		}
		if !compressor.IsIdentity(req.Encoding) {
			if _, ok := compressor.Get(req.Encoding); !ok {
				conn.rejectAdmission(streamID, "200", status.Unimplemented, "Grpc-encoding not supported")
				return nil, muxstream.ErrStreamHandled
			}
		}

		transport := &streamTransport{conn: conn, streamID: streamID}
		sc, failure := call.Admit(req, router, transport)
		if failure != nil {
			conn.rejectAdmission(streamID, "200", failure.Code(), failure.Description())
			return nil, muxstream.ErrStreamHandled
		}
		if runner != nil {
			sc.Runner = runner
		}
		return sc, nil
	}
}

// rejectAdmission writes a trailers-only response carrying httpStatus
// and the given gRPC status directly through the flow controller,
// bypassing streamTransport's runOnIOLoop trampoline (this runs inside
// Dispatch, already on the I/O goroutine) and releasing the
// never-registered stream's flow-control bookkeeping.
func (c *Connection) rejectAdmission(streamID uint32, httpStatus string, code status.Code, message string) {
	trailers := metadata.New()
	trailers.SetStatus(httpStatus)
	trailers.Add(metadata.HeaderContentType, metadata.ContentTypeGRPCProto)
	trailers.Add(metadata.HeaderGRPCStatus, strconv.Itoa(int(code)))
	if message != "" {
		trailers.Add(metadata.HeaderGRPCMessage, message)
	}
	if err := c.flow.WriteHeaders(streamID, trailers, true, nil); err != nil {
		c.logger.Printf("triple: admission rejection write failed for stream %d: %v", streamID, err)
	}
	c.flow.CloseStream(streamID)
}

func requestFromPath(path string) (*metadata.Request, *status.Status) {
	if len(path) < 2 || path[0] != '/' {
		return nil, status.Newf(status.Unimplemented, "malformed :path %q", path)
	}
	service, method, ok := splitPath(path[1:])
	if !ok {
		return nil, status.Newf(status.Unimplemented, "malformed :path %q", path)
	}
	return &metadata.Request{Service: service, Method: method}, nil
}

func splitPath(p string) (service, method string, ok bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i], p[i+1:], true
		}
	}
	return "", "", false
}
