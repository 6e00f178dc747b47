package triple

import (
	"fmt"
	"io"
	"log"
	"net"

	"golang.org/x/net/http2"

	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/muxstream"
)

// Server accepts cleartext HTTP/2 (h2c) connections and serves Triple
// RPCs against router. It needs raw frame access rather than net/http's
// http2.Server, so it reads the connection preface itself. Only
// prior-knowledge h2c is served; an HTTP/1.1 "Upgrade: h2c" request is
// not handled.
type Server struct {
	Router invocation.ServiceRouter
	Logger *log.Logger

	pool *workerPool
}

// NewServer creates a Server with a default stdlib log.Logger, injected
// rather than a package global, and a worker pool bounding concurrent
// method-handler execution.
func NewServer(router invocation.ServiceRouter) *Server {
	return &Server{Router: router, Logger: log.Default(), pool: newWorkerPool(defaultPoolSize)}
}

// defaultPoolSize bounds concurrent in-flight method handlers per
// server; a future revision might derive this from runtime.GOMAXPROCS,
// but a fixed figure is simpler and matches what load this engine
// targets until real numbers say otherwise.
const defaultPoolSize = 64

// Serve accepts connections on ln until it returns an error (typically
// from ln.Close()), handling each on its own goroutine — one
// Connection.Serve loop per socket, per spec §5's single-goroutine-
// per-connection model.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if err := readPreface(conn); err != nil {
		s.Logger.Printf("triple: bad connection preface from %s: %v", conn.RemoteAddr(), err)
		return
	}

	c := newConnection(conn, nil, s.Logger)
	c.mux = muxstream.NewServerMultiplexer(NewServerCallListener(c, s.Router, s.pool.Submit))

	if err := c.Serve(); err != nil {
		s.Logger.Printf("triple: connection from %s ended: %v", conn.RemoteAddr(), err)
	}
}

// readPreface consumes the fixed 24-byte HTTP/2 client connection
// preface (RFC 7540 §3.5); callers that serve h2c directly (no ALPN,
// no TLS) must still see and validate this before the first real
// frame.
func readPreface(conn net.Conn) error {
	buf := make([]byte, len(http2.ClientPreface))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return err
	}
	if string(buf) != http2.ClientPreface {
		return fmt.Errorf("unexpected preface %q", buf)
	}
	return nil
}
