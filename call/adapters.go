package call

import (
	"github.com/apache/dubbo-go-triple/status"
)

// Future is the minimal promise interface FutureCallListener resolves:
// SetResult for a successful unary call, SetError otherwise.
type Future interface {
	SetResult(msg []byte)
	SetError(err error)
}

// FutureCallListener adapts a ClientCall's events onto a Future, the
// shape a unary call's public API returns (spec §4.5's
// FutureToClientCallListenerAdapter).
type FutureCallListener struct {
	future  Future
	message []byte
}

// NewFutureCallListener creates a listener that resolves future once
// the call completes.
func NewFutureCallListener(future Future) *FutureCallListener {
	return &FutureCallListener{future: future}
}

func (a *FutureCallListener) OnMessage(msg []byte) { a.message = msg }

func (a *FutureCallListener) OnClose(st *status.Status, _ map[string]string) {
	if st.Code() != status.OK {
		a.future.SetError(st.AsError())
		return
	}
	a.future.SetResult(a.message)
}

var _ ClientCallListener = (*FutureCallListener)(nil)

// ReadStreamCallListener adapts a ClientCall's events onto an
// rstream.ReadStream, the shape a server-streaming or bidi call's
// response side returns (spec §4.5's
// ReadStreamToClientCallListenerAdapter).
type ReadStreamCallListener struct {
	writer *readStreamWriterHandle
}

// readStreamWriterHandle narrows rstream's writer-side handle to the
// two operations this adapter needs, so this package doesn't need to
// know rstream's generic parameter here (messages cross this boundary
// as already-decoded []byte; the invocation layer retypes them).
type readStreamWriterHandle struct {
	push   func([]byte)
	finish func(error)
}

// NewReadStreamCallListener creates a listener that feeds rs via the
// returned writer handle; typically wired as:
//
//	rs, w := rstream.NewReadStream[[]byte](8)
//	listener := call.NewReadStreamCallListener(w)
func NewReadStreamCallListener(w interface {
	Push([]byte)
	Finish(error)
}) *ReadStreamCallListener {
	return &ReadStreamCallListener{writer: &readStreamWriterHandle{push: w.Push, finish: w.Finish}}
}

func (a *ReadStreamCallListener) OnMessage(msg []byte) { a.writer.push(msg) }

func (a *ReadStreamCallListener) OnClose(st *status.Status, _ map[string]string) {
	if st.Code() != status.OK {
		a.writer.finish(st.AsError())
		return
	}
	a.writer.finish(nil)
}

var _ ClientCallListener = (*ReadStreamCallListener)(nil)
