package compressor_test

import (
	"bytes"
	"testing"

	"github.com/apache/dubbo-go-triple/compressor"
)

func roundTrip(t *testing.T, name string) {
	t.Helper()
	c, ok := compressor.Get(name)
	if !ok {
		t.Fatalf("codec %q not registered", name)
	}
	payload := bytes.Repeat([]byte("triple protocol payload "), 64)

	compressed, err := c.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("round trip mismatch for %q", name)
	}
}

func TestGzipRoundTrip(t *testing.T) { roundTrip(t, compressor.Gzip) }

func TestBzip2RoundTrip(t *testing.T) { roundTrip(t, compressor.Bzip2) }

func TestIdentityAlwaysResolves(t *testing.T) {
	c, ok := compressor.Get(compressor.Identity)
	if !ok {
		t.Fatal("identity codec should always resolve")
	}
	if c.Name() != compressor.Identity {
		t.Errorf("unexpected name %q", c.Name())
	}
}

func TestUnknownNameNotFound(t *testing.T) {
	if _, ok := compressor.Get("snappy"); ok {
		t.Error("expected snappy to be unregistered")
	}
}

func TestIdentityWireSpellingResolves(t *testing.T) {
	c, ok := compressor.Get("identity")
	if !ok {
		t.Fatal("wire spelling \"identity\" should resolve")
	}
	out, err := c.Decompress([]byte("payload"))
	if err != nil || string(out) != "payload" {
		t.Errorf("identity decompress should be a no-op, got %q, %v", out, err)
	}
	if !compressor.IsIdentity("identity") || !compressor.IsIdentity(compressor.Identity) {
		t.Error("IsIdentity should accept both the sentinel and the wire spelling")
	}
	if compressor.IsIdentity("gzip") {
		t.Error("IsIdentity should reject a real compressor name")
	}
}
