// Package rstream implements the user-facing streaming abstractions
// (spec §2, §4.7): channel-backed ReadStream, WriteStream and
// ReadWriteStream values handed to application method handlers, in
// place of the raw muxstream.Listener frame events.
package rstream

import (
	"context"
	"errors"

	"github.com/apache/dubbo-go-triple/status"
)

// item carries one decoded message or a terminal status down the
// internal channel; exactly one of msg/err is meaningful, msg when err
// is nil.
type item[T any] struct {
	msg T
	err error // io.EOF-equivalent: *status.Status wrapped as error, nil means "more to come"
}

// EOF is the sentinel error ReadStream.Read returns once the peer has
// signalled completion (END_STREAM / an explicit done-writing call with
// no error), distinguishing a clean finish from a failed one.
var EOF = errors.New("rstream: end of stream")

// ReadStream is the read side of a streaming call: a sequence of
// messages terminated by EOF or an error status.
type ReadStream[T any] struct {
	items chan item[T]
}

// NewReadStream creates a ReadStream and the writer-side handle used to
// feed it; the transport layer (call/) owns the handle, application
// code only ever sees the ReadStream.
func NewReadStream[T any](buffer int) (*ReadStream[T], *readStreamWriter[T]) {
	ch := make(chan item[T], buffer)
	return &ReadStream[T]{items: ch}, &readStreamWriter[T]{items: ch}
}

// Read blocks for the next message, returning EOF once the stream is
// done, ctx.Err() if ctx is cancelled first, or a transport error.
func (r *ReadStream[T]) Read(ctx context.Context) (T, error) {
	var zero T
	select {
	case it, ok := <-r.items:
		if !ok {
			return zero, EOF
		}
		return it.msg, it.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type readStreamWriter[T any] struct {
	items  chan item[T]
	closed bool
}

// Push delivers one message to the ReadStream's reader.
func (w *readStreamWriter[T]) Push(msg T) {
	if w.closed {
		return
	}
	w.items <- item[T]{msg: msg}
}

// Finish terminates the stream: a nil err becomes EOF at the reader, a
// non-nil err is delivered as-is. Finish is idempotent; only the first
// call has effect, matching done_writing()'s single-shot semantics.
func (w *readStreamWriter[T]) Finish(err error) {
	if w.closed {
		return
	}
	w.closed = true
	if err != nil {
		w.items <- item[T]{err: err}
	}
	close(w.items)
}

// WriteStream is the write side of a streaming call: application code
// calls Write for each outbound message and Close exactly once when
// done, optionally carrying a non-OK status for an aborted stream.
type WriteStream[T any] struct {
	write func(T) error
	close func(status *status.Status) error
	done  bool
}

// NewWriteStream adapts the given send/close primitives (owned by the
// call/ package, which knows how to frame and flow-control the bytes)
// into the application-facing WriteStream type.
func NewWriteStream[T any](write func(T) error, close func(*status.Status) error) *WriteStream[T] {
	return &WriteStream[T]{write: write, close: close}
}

// Write sends one message. Write after Close returns an error.
func (w *WriteStream[T]) Write(msg T) error {
	if w.done {
		return status.Newf(status.Internal, "write after stream close").AsError()
	}
	return w.write(msg)
}

// Close finishes the stream with st (nil means OK). A second call is a
// no-op, matching the "second done_writing call raises" rule at the
// call-state-machine layer: here it is downgraded to a silent no-op
// since by the time application code can reach Close twice the
// transport has typically already torn the call down.
func (w *WriteStream[T]) Close(st *status.Status) error {
	if w.done {
		return nil
	}
	w.done = true
	return w.close(st)
}

// ReadWriteStream composes both directions for client-streaming and
// bidi-streaming handlers.
type ReadWriteStream[In, Out any] struct {
	*ReadStream[In]
	*WriteStream[Out]
}
