package call_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/apache/dubbo-go-triple/call"
	"github.com/apache/dubbo-go-triple/codec"
	"github.com/apache/dubbo-go-triple/invocation"
	"github.com/apache/dubbo-go-triple/metadata"
)

type fakeServerTransport struct {
	headers  []*metadata.Headers
	messages [][]byte
	trailers *metadata.Headers
	done     chan struct{}
}

func newFakeServerTransport() *fakeServerTransport {
	return &fakeServerTransport{done: make(chan struct{})}
}

func (f *fakeServerTransport) SendHeaders(h *metadata.Headers, endStream bool) error {
	f.headers = append(f.headers, h)
	return nil
}
func (f *fakeServerTransport) SendMessage(framed []byte, endStream bool) error {
	f.messages = append(f.messages, framed)
	return nil
}
func (f *fakeServerTransport) SendTrailers(h *metadata.Headers) error {
	f.trailers = h
	close(f.done)
	return nil
}

func TestServerCallUnaryRoundTrip(t *testing.T) {
	router := invocation.NewRegistry()
	router.Register(&invocation.MethodDescriptor{
		Service: "Greeter",
		Method:  "SayHello",
		Type:    invocation.Unary,
		Unary: func(ctx context.Context, req []byte) ([]byte, error) {
			return append([]byte("hello "), req...), nil
		},
	})

	tr := newFakeServerTransport()
	sc, failure := call.Admit(&metadata.Request{Service: "Greeter", Method: "SayHello"}, router, tr)
	if failure != nil {
		t.Fatalf("admit: %v", failure)
	}

	sc.OnHeaders(metadata.New(), false)
	framed, _ := codec.Encode([]byte("world"), false, nil)
	sc.OnData(framed, true)

	select {
	case <-tr.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}

	if len(tr.messages) != 1 {
		t.Fatalf("expected one response message, got %d", len(tr.messages))
	}
	if tr.trailers == nil {
		t.Fatal("expected trailers")
	}
	if v, _ := tr.trailers.Get(metadata.HeaderGRPCStatus); v != "0" {
		t.Fatalf("expected OK grpc-status, got %q", v)
	}
}

func TestServerCallAdmitsIdentityWireSpelling(t *testing.T) {
	router := invocation.NewRegistry()
	router.Register(&invocation.MethodDescriptor{
		Service: "Greeter",
		Method:  "SayHello",
		Type:    invocation.Unary,
		Unary: func(ctx context.Context, req []byte) ([]byte, error) {
			return req, nil
		},
	})

	tr := newFakeServerTransport()
	sc, failure := call.Admit(&metadata.Request{Service: "Greeter", Method: "SayHello", Encoding: "identity"}, router, tr)
	if failure != nil {
		t.Fatalf("admit: %v", failure)
	}

	sc.OnHeaders(metadata.New(), false)
	framed, _ := codec.Encode([]byte("hi"), false, nil)
	sc.OnData(framed, true)

	select {
	case <-tr.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}

	framedOut := tr.messages[0]
	if framedOut[0] != 0 {
		t.Error("identity encoding should not set the compressed flag")
	}
	if string(framedOut[5:]) != "hi" {
		t.Errorf("unexpected payload %q", framedOut[5:])
	}
}

func TestServerCallHandlerErrorBecomesInternal(t *testing.T) {
	router := invocation.NewRegistry()
	router.Register(&invocation.MethodDescriptor{
		Service: "Greeter",
		Method:  "SayHello",
		Type:    invocation.Unary,
		Unary: func(ctx context.Context, req []byte) ([]byte, error) {
			return nil, errors.New("bad")
		},
	})

	tr := newFakeServerTransport()
	sc, failure := call.Admit(&metadata.Request{Service: "Greeter", Method: "SayHello"}, router, tr)
	if failure != nil {
		t.Fatalf("admit: %v", failure)
	}

	sc.OnHeaders(metadata.New(), false)
	framed, _ := codec.Encode([]byte("world"), false, nil)
	sc.OnData(framed, true)

	select {
	case <-tr.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}

	if tr.trailers == nil {
		t.Fatal("expected trailers")
	}
	if v, _ := tr.trailers.Get(metadata.HeaderGRPCStatus); v != "13" {
		t.Fatalf("expected INTERNAL (13) grpc-status, got %q", v)
	}
	msg, _ := tr.trailers.Get(metadata.HeaderGRPCMessage)
	if !strings.Contains(msg, "Invoke method failed: bad") {
		t.Fatalf("expected grpc-message to contain %q, got %q", "Invoke method failed: bad", msg)
	}
}

func TestServerCallUnknownMethodFailsAdmission(t *testing.T) {
	router := invocation.NewRegistry()
	tr := newFakeServerTransport()
	_, failure := call.Admit(&metadata.Request{Service: "Greeter", Method: "Missing"}, router, tr)
	if failure == nil {
		t.Fatal("expected admission failure for unknown method")
	}
}
