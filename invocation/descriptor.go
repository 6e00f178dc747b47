// Package invocation describes the application-facing shape of an RPC
// call: which method is being invoked, its streaming cardinality, and
// how to reach the registered handler for it (spec §2, §4.7).
package invocation

import (
	"context"

	"github.com/apache/dubbo-go-triple/rstream"
)

// RPCType is the streaming cardinality of a method, mirroring gRPC's
// four method shapes.
type RPCType int

const (
	Unary RPCType = iota
	ClientStream
	ServerStream
	BidiStream
)

func (t RPCType) IsClientStream() bool { return t == ClientStream || t == BidiStream }
func (t RPCType) IsServerStream() bool { return t == ServerStream || t == BidiStream }

// UnaryHandler handles a single-request/single-response method.
type UnaryHandler func(ctx context.Context, req []byte) ([]byte, error)

// ClientStreamHandler handles a many-request/single-response method.
type ClientStreamHandler func(ctx context.Context, reqs *rstream.ReadStream[[]byte]) ([]byte, error)

// ServerStreamHandler handles a single-request/many-response method.
type ServerStreamHandler func(ctx context.Context, req []byte, resps *rstream.WriteStream[[]byte]) error

// BidiStreamHandler handles a many-request/many-response method.
type BidiStreamHandler func(ctx context.Context, rw *rstream.ReadWriteStream[[]byte, []byte]) error

// MethodDescriptor names one registered RPC method and the handler
// that serves it. Exactly one of the four handler fields is set,
// matching Type.
type MethodDescriptor struct {
	Service string
	Method  string
	Type    RPCType

	Unary        UnaryHandler
	ClientStream ClientStreamHandler
	ServerStream ServerStreamHandler
	BidiStream   BidiStreamHandler
}
