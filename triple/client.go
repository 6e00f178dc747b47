package triple

import (
	"fmt"
	"log"
	"net"

	"golang.org/x/net/http2"

	"github.com/apache/dubbo-go-triple/call"
	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/flowctl"
	"github.com/apache/dubbo-go-triple/metadata"
	"github.com/apache/dubbo-go-triple/muxstream"
)

// Client dials a single h2c connection and issues Triple calls over
// it. One Client owns exactly one Connection; pooling/load-balancing
// across multiple connections is left to a caller layered on top (spec
// §1 names "connection pooling/load balancing" as an external
// collaborator, not this engine's concern).
type Client struct {
	conn   *Connection
	logger *log.Logger
}

// Dial opens a TCP connection to addr, writes the HTTP/2 client
// preface, and starts the connection's I/O loop in the background.
func Dial(addr string) (*Client, error) {
	return DialWithLogger(addr, log.Default())
}

// DialWithLogger is Dial with an explicit *log.Logger, for callers
// that want this connection's diagnostics routed somewhere specific.
func DialWithLogger(addr string, logger *log.Logger) (*Client, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if _, err := raw.Write([]byte(http2.ClientPreface)); err != nil {
		raw.Close()
		return nil, fmt.Errorf("write preface: %w", err)
	}

	conn := newConnection(raw, muxstream.NewClientMultiplexer(), logger)
	go func() {
		if err := conn.Serve(); err != nil {
			logger.Printf("triple: client connection to %s ended: %v", addr, err)
		}
	}()

	return &Client{conn: conn, logger: logger}, nil
}

// NewCall opens a new stream on the client's connection and returns a
// ClientCall bound to it, ready for Start/SendMessage.
func (c *Client) NewCall(listener call.ClientCallListener, comp compressor.Compressor) *call.ClientCall {
	var streamID uint32
	cc := call.NewClientCall(nil, listener, comp) // transport bound below, after stream ID is known
	l := &clientCallListenerBridge{cc: cc}

	_ = c.conn.runOnIOLoop(func() error {
		streamID = c.conn.mux.Open(l)
		// Streams the peer opens get their send window from the
		// inbound HEADERS path (handleFrame); a locally opened stream
		// has no inbound HEADERS to trigger that, so it must be opened
		// here or its first DATA write buffers forever against a
		// nonexistent window.
		c.conn.flow.OpenStream(streamID, flowctl.DefaultWindowSize)
		return nil
	})

	tr := &streamTransport{conn: c.conn, streamID: streamID}
	cc.SetTransport(tr)
	return cc
}

// clientCallListenerBridge lets ClientCall itself satisfy
// muxstream.Listener while keeping muxstream.Open's registration (which
// needs the Listener before the ClientCall's transport field can be
// set) one level removed.
type clientCallListenerBridge struct {
	cc *call.ClientCall
}

func (b *clientCallListenerBridge) OnHeaders(h *metadata.Headers, endStream bool) {
	b.cc.OnHeaders(h, endStream)
}
func (b *clientCallListenerBridge) OnData(data []byte, endStream bool) { b.cc.OnData(data, endStream) }
func (b *clientCallListenerBridge) OnReset(code uint32)                { b.cc.OnReset(code) }

var _ muxstream.Listener = (*clientCallListenerBridge)(nil)
