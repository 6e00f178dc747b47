// Package frame owns the raw HTTP/2 wire: framing via
// golang.org/x/net/http2.Framer and header (de)compression via
// golang.org/x/net/http2/hpack, translated to and from this engine's
// own metadata.Headers so nothing above this package touches a
// *http2.Framer directly (spec §2, Frame Pipeline).
package frame

import (
	"golang.org/x/net/http2"

	"github.com/apache/dubbo-go-triple/metadata"
)

// Type identifies the handful of HTTP/2 frame kinds this engine acts
// on. Frame types it doesn't need to interpret (PRIORITY, PUSH_PROMISE,
// GOAWAY) are read and ignored by the Pipeline.
type Type int

const (
	TypeHeaders Type = iota
	TypeData
	TypeWindowUpdate
	TypeRSTStream
	TypePing
	TypeSettings
)

// Frame is the engine-level view of one inbound HTTP/2 frame, already
// stripped of Framer/hpack plumbing.
type Frame struct {
	Type       Type
	StreamID   uint32
	EndStream  bool // HEADERS or DATA carried END_STREAM
	EndHeaders bool // HEADERS/CONTINUATION sequence is complete

	Headers *metadata.Headers // set when Type == TypeHeaders
	Data    []byte            // set when Type == TypeData

	WindowIncrement uint32 // set when Type == TypeWindowUpdate
	RSTCode         uint32 // set when Type == TypeRSTStream
	PingData        [8]byte
	PingAck         bool
	Settings        []http2.Setting // set when Type == TypeSettings
	SettingsAck     bool
}

// MaxFrameSize is the largest single HTTP/2 frame this engine will
// write; larger payloads are chunked by flowctl before reaching here.
const MaxFrameSize = 16384
