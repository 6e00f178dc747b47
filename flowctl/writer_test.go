package flowctl_test

import (
	"bytes"
	"testing"

	"github.com/apache/dubbo-go-triple/flowctl"
	"github.com/apache/dubbo-go-triple/frame"
)

func TestDataBuffersWhenWindowExhausted(t *testing.T) {
	var buf bytes.Buffer
	p := frame.NewPipeline(&loopback{&buf})
	c := flowctl.NewController(p)
	c.OpenStream(1, 10) // tiny window

	var doneErr error
	called := false
	err := c.WriteData(1, []byte("0123456789ABCDEF"), true, func(e error) {
		called = true
		doneErr = e
	})
	if err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if called {
		t.Fatal("expected write to buffer, not complete, while window exhausted")
	}

	c.OnWindowUpdate(1, 100)
	c.OnWindowUpdate(0, 100)
	if !called {
		t.Fatal("expected buffered write to flush after window update")
	}
	if doneErr != nil {
		t.Fatalf("unexpected error: %v", doneErr)
	}
}

// loopback lets the pipeline write frames without a real socket; tests
// only assert on controller-level behavior, not wire bytes.
type loopback struct{ buf *bytes.Buffer }

func (l *loopback) Read(p []byte) (int, error)  { return l.buf.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }
