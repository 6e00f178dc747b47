// Package compressor implements the pluggable message-body compression
// named by the grpc-encoding / grpc-accept-encoding headers (spec §6).
package compressor

import (
	"bytes"
	"sync"
)

// Name constants for the built-in compressors.
const (
	Identity = ""
	Gzip     = "gzip"
	Bzip2    = "bzip2"
)

// Compressor compresses outbound message payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Name() string
}

// Decompressor decompresses inbound message payloads.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// Codec is both directions of a single named algorithm, the shape
// registered and looked up by name.
type Codec interface {
	Compressor
	Decompressor
}

var registry = struct {
	sync.RWMutex
	byName map[string]Codec
}{byName: make(map[string]Codec)}

// Register makes c available to Get under c.Name().
func Register(c Codec) {
	registry.Lock()
	defer registry.Unlock()
	registry.byName[c.Name()] = c
}

// Get looks up a previously registered codec by name. identity resolves
// under both its internal sentinel ("") and its wire spelling
// ("identity", what a peer actually sends in grpc-encoding), even if
// never explicitly registered.
func Get(name string) (Codec, bool) {
	if IsIdentity(name) {
		return identityCodec{}, true
	}
	registry.RLock()
	defer registry.RUnlock()
	c, ok := registry.byName[name]
	return c, ok
}

// IsIdentity reports whether name denotes no compression: the internal
// "not set" sentinel ("") or the wire spelling a peer sends
// ("identity").
func IsIdentity(name string) bool {
	return name == Identity || name == "identity"
}

type identityCodec struct{}

func (identityCodec) Name() string                         { return Identity }
func (identityCodec) Compress(data []byte) ([]byte, error) { return data, nil }
func (identityCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

func init() {
	Register(&GzipCodec{})
	Register(&Bzip2Codec{})
}

// bufferPool is shared by the built-in codecs to cut allocations on the
// hot compress/decompress path.
var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}
