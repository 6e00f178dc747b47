package metadata

import "strconv"

// Standard Triple header names (spec §6).
const (
	HeaderContentType       = "content-type"
	HeaderGRPCEncoding      = "grpc-encoding"
	HeaderGRPCAcceptEncoding = "grpc-accept-encoding"
	HeaderGRPCTimeout       = "grpc-timeout"
	HeaderTE                = "te"
	HeaderServiceVersion    = "tri-service-version"
	HeaderServiceGroup      = "tri-service-group"
	HeaderConsumerAppName   = "tri-consumer-appname"
	HeaderGRPCStatus        = "grpc-status"
	HeaderGRPCMessage       = "grpc-message"
)

// ContentTypeGRPCProto is the content-type this engine always emits;
// grpc+json and other encodings are a codec-layer concern (external
// collaborator, spec §1) and are not produced here.
const ContentTypeGRPCProto = "application/grpc+proto"

// Request describes an outbound Triple call before it becomes wire
// headers (spec §3's RequestMetadata).
type Request struct {
	Scheme      string // "http" or "https"
	Authority   string // host:port
	Service     string
	Method      string
	Group       string
	Version     string
	Application string
	TimeoutMS   int64 // 0 means "no timeout set"
	AcceptEncodings []string
	Encoding    string // selected compressor name, "" for identity
	Attachments map[string]string
}

// ToHeaders renders the request metadata to HTTP/2 headers, emitting the
// pseudo-headers before the grpc-* and application fields.
func (r *Request) ToHeaders() *Headers {
	h := New()
	h.SetScheme(r.Scheme)
	h.SetAuthority(r.Authority)
	h.SetMethod("POST")
	h.SetPath("/" + r.Service + "/" + r.Method)
	h.Add(HeaderContentType, ContentTypeGRPCProto)
	h.Add(HeaderTE, "trailers")

	if r.Version != "" {
		h.Add(HeaderServiceVersion, r.Version)
	}
	if r.TimeoutMS > 0 {
		h.Add(HeaderGRPCTimeout, EncodeTimeout(r.TimeoutMS))
	}
	if r.Group != "" {
		h.Add(HeaderServiceGroup, r.Group)
	}
	if r.Application != "" {
		h.Add(HeaderConsumerAppName, r.Application)
	}
	if len(r.AcceptEncodings) > 0 {
		h.Add(HeaderGRPCAcceptEncoding, joinComma(r.AcceptEncodings))
	}
	if r.Encoding != "" {
		h.Add(HeaderGRPCEncoding, r.Encoding)
	}

	for k, v := range r.Attachments {
		h.Add(k, v)
	}

	return h
}

func joinComma(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

// EncodeTimeout renders a millisecond duration as a gRPC timeout header
// value: durations under 100 seconds in milliseconds (e.g. "500m" for
// 500 ms, "2000m" for 2 seconds), longer ones in whole seconds (e.g.
// "2000S" for 2,000,000 ms).
func EncodeTimeout(ms int64) string {
	if ms < 100000 {
		return strconv.FormatInt(ms, 10) + "m"
	}
	secs := ms / 1000
	return strconv.FormatInt(secs, 10) + "S"
}
