package triple_test

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/apache/dubbo-go-triple/codec"
	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/triple"
)

// TestServerUnaryCallOverRawFrames drives triple.Server with a
// hand-rolled HTTP/2 client (preface + HEADERS + DATA written directly
// via http2.Framer/hpack) rather than triple.Client, so this test
// exercises the server's wire handling independent of the client
// package's own correctness.
func TestServerUnaryCallOverRawFrames(t *testing.T) {
	router := invocation.NewRegistry()
	router.Register(&invocation.MethodDescriptor{
		Service: "Greeter",
		Method:  "SayHello",
		Type:    invocation.Unary,
		Unary: func(ctx context.Context, req []byte) ([]byte, error) {
			return append([]byte("hello "), req...), nil
		},
	})

	serverSide, clientSide := net.Pipe()
	srv := triple.NewServer(router)
	go srv.Serve(&singleConnListener{conn: serverSide})

	if _, err := clientSide.Write([]byte(http2.ClientPreface)); err != nil {
		t.Fatalf("write preface: %v", err)
	}
	framer := http2.NewFramer(clientSide, clientSide)
	readServerSettings(t, framer)

	var hbuf hpackBuf
	enc := hpack.NewEncoder(&hbuf)
	enc.WriteField(hpack.HeaderField{Name: ":path", Value: "/Greeter/SayHello"})
	enc.WriteField(hpack.HeaderField{Name: ":method", Value: "POST"})
	enc.WriteField(hpack.HeaderField{Name: "content-type", Value: "application/grpc+proto"})

	if err := framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID: 1, BlockFragment: hbuf.buf, EndHeaders: true, EndStream: false,
	}); err != nil {
		t.Fatalf("write headers: %v", err)
	}

	framed, err := codec.Encode([]byte("world"), false, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := framer.WriteData(1, true, framed); err != nil {
		t.Fatalf("write data: %v", err)
	}

	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 10; i++ {
		f, err := framer.ReadFrame()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if df, ok := f.(*http2.DataFrame); ok {
			_, payload, decodeErr := decodeGRPCFrame(df.Data())
			if decodeErr != nil {
				t.Fatalf("decode response frame: %v", decodeErr)
			}
			if string(payload) != "hello world" {
				t.Fatalf("got %q", payload)
			}
			return
		}
	}
	t.Fatal("never saw a DATA frame with the response")
}

// TestServerRejectsMissingContentType exercises spec §4.6's admission
// table: a request with no (or non-grpc) content-type gets a
// trailers-only response carrying HTTP :status=415 and a gRPC
// UNIMPLEMENTED status, not an RST_STREAM.
func TestServerRejectsMissingContentType(t *testing.T) {
	router := invocation.NewRegistry()
	serverSide, clientSide := net.Pipe()
	srv := triple.NewServer(router)
	go srv.Serve(&singleConnListener{conn: serverSide})

	if _, err := clientSide.Write([]byte(http2.ClientPreface)); err != nil {
		t.Fatalf("write preface: %v", err)
	}
	framer := http2.NewFramer(clientSide, clientSide)
	readServerSettings(t, framer)

	var hbuf hpackBuf
	enc := hpack.NewEncoder(&hbuf)
	enc.WriteField(hpack.HeaderField{Name: ":path", Value: "/Greeter/SayHello"})
	enc.WriteField(hpack.HeaderField{Name: ":method", Value: "POST"})

	if err := framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID: 1, BlockFragment: hbuf.buf, EndHeaders: true, EndStream: true,
	}); err != nil {
		t.Fatalf("write headers: %v", err)
	}

	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 10; i++ {
		f, err := framer.ReadFrame()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		hf, ok := f.(*http2.HeadersFrame)
		if !ok {
			continue
		}
		dec := hpack.NewDecoder(4096, nil)
		fields, err := dec.DecodeFull(hf.HeaderBlockFragment())
		if err != nil {
			t.Fatalf("decode response headers: %v", err)
		}
		var gotStatus, gotGRPCStatus string
		for _, f := range fields {
			switch f.Name {
			case ":status":
				gotStatus = f.Value
			case "grpc-status":
				gotGRPCStatus = f.Value
			}
		}
		if gotStatus != "415" {
			t.Fatalf("expected :status=415, got %q", gotStatus)
		}
		if gotGRPCStatus != "12" {
			t.Fatalf("expected grpc-status=12 (UNIMPLEMENTED), got %q", gotGRPCStatus)
		}
		return
	}
	t.Fatal("never saw a HEADERS response frame")
}

// readServerSettings consumes the SETTINGS frame Connection.Serve writes
// before it reads anything. net.Pipe has no buffering, so the client
// must read that frame before writing its request, or both sides block
// in Write.
func readServerSettings(t *testing.T, framer *http2.Framer) {
	t.Helper()
	f, err := framer.ReadFrame()
	if err != nil {
		t.Fatalf("read server settings: %v", err)
	}
	if _, ok := f.(*http2.SettingsFrame); !ok {
		t.Fatalf("expected SETTINGS first, got %T", f)
	}
}

type hpackBuf struct{ buf []byte }

func (b *hpackBuf) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func decodeGRPCFrame(framed []byte) (bool, []byte, error) {
	var out []byte
	dec := codec.NewDecoder(nil)
	dec.OnMessage = func(msg []byte) error {
		out = msg
		return nil
	}
	if err := dec.Write(framed); err != nil {
		return false, nil, err
	}
	return true, out, nil
}

// singleConnListener adapts one pre-established net.Conn (from
// net.Pipe) to the net.Listener interface triple.Server.Serve expects.
type singleConnListener struct {
	conn net.Conn
	used bool
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	if l.used {
		select {}
	}
	l.used = true
	return l.conn, nil
}
func (l *singleConnListener) Close() error   { return l.conn.Close() }
func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }
