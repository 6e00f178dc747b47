package invocation

import (
	"google.golang.org/protobuf/proto"

	"github.com/apache/dubbo-go-triple/status"
)

// MessageCodec marshals and unmarshals the application-level request
// and response messages carried inside each grpc-framed payload (spec
// §1 names "message (de)serialization" as an external collaborator
// this engine delegates to; ProtoCodec is the default implementation).
type MessageCodec interface {
	Marshal(msg proto.Message) ([]byte, error)
	Unmarshal(data []byte, msg proto.Message) error
}

// ProtoCodec implements MessageCodec over protocol buffers, the wire
// format this engine's content-type (application/grpc+proto) commits
// to.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(msg proto.Message) ([]byte, error) {
	out, err := proto.Marshal(msg)
	if err != nil {
		return nil, status.Newf(status.Internal, "marshal request: %v", err).AsError()
	}
	return out, nil
}

func (ProtoCodec) Unmarshal(data []byte, msg proto.Message) error {
	if err := proto.Unmarshal(data, msg); err != nil {
		return status.Newf(status.InvalidArgument, "unmarshal request: %v", err).AsError()
	}
	return nil
}

var _ MessageCodec = ProtoCodec{}
