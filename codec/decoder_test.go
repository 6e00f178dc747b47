package codec_test

import (
	"bytes"
	"testing"

	"github.com/apache/dubbo-go-triple/codec"
	"github.com/apache/dubbo-go-triple/compressor"
	"github.com/apache/dubbo-go-triple/status"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello triple")
	framed, err := codec.Encode(payload, false, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got []byte
	dec := codec.NewDecoder(nil)
	dec.OnMessage = func(msg []byte) error {
		got = msg
		return nil
	}
	if err := dec.Write(framed); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestDecodeSplitAcrossWrites(t *testing.T) {
	payload := []byte("a message split across several DATA frames")
	framed, err := codec.Encode(payload, false, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got []byte
	dec := codec.NewDecoder(nil)
	dec.OnMessage = func(msg []byte) error {
		got = append([]byte(nil), msg...)
		return nil
	}

	for i := 0; i < len(framed); i++ {
		if err := dec.Write(framed[i : i+1]); err != nil {
			t.Fatalf("write byte %d: %v", i, err)
		}
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestDecodeRejectsReservedBits(t *testing.T) {
	framed, _ := codec.Encode([]byte("x"), false, nil)
	framed[0] = 0x02 // bit 1 set, reserved

	dec := codec.NewDecoder(nil)
	err := dec.Write(framed)
	if err == nil {
		t.Fatal("expected reserved-bit error")
	}
	if status.FromError(err).Code() != status.Internal {
		t.Errorf("expected Internal, got %s", status.FromError(err).Code())
	}
}

func TestDecodeReentrantWriteIsQueued(t *testing.T) {
	first, _ := codec.Encode([]byte("first"), false, nil)
	second, _ := codec.Encode([]byte("second"), false, nil)

	var order []string
	dec := codec.NewDecoder(nil)
	dec.OnMessage = func(msg []byte) error {
		order = append(order, string(msg))
		if string(msg) == "first" {
			// Reentrant call from within the callback: must be queued,
			// not parsed out of order or recursively.
			if err := dec.Write(second); err != nil {
				t.Fatalf("nested write: %v", err)
			}
		}
		return nil
	}

	if err := dec.Write(first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestEncodeWithCompression(t *testing.T) {
	gz, _ := compressor.Get(compressor.Gzip)
	payload := bytes.Repeat([]byte("compressible payload "), 32)

	framed, err := codec.Encode(payload, true, gz)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if framed[0] != 1 {
		t.Fatalf("expected compressed flag set")
	}

	var got []byte
	dec := codec.NewDecoder(gz)
	dec.OnMessage = func(msg []byte) error {
		got = msg
		return nil
	}
	if err := dec.Write(framed); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decompressed payload mismatch")
	}
}

func TestEncodeMessageTooLarge(t *testing.T) {
	huge := make([]byte, codec.MaxMessageLen+1)
	if _, err := codec.Encode(huge, false, nil); err == nil {
		t.Fatal("expected message-too-large error")
	} else if status.FromError(err).Code() != status.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %s", status.FromError(err).Code())
	}
}

func TestCloseMidMessageFails(t *testing.T) {
	dec := codec.NewDecoder(nil)
	if err := dec.Write([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := dec.Close(); err == nil {
		t.Fatal("expected error closing mid-header")
	}
}
