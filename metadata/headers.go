// Package metadata implements the Triple wire data model: ordered
// HTTP/2 headers with named pseudo-headers, and the outbound request
// descriptor that renders to them (spec §3).
package metadata

// Pseudo-header names defined in RFC 7540 §8.1.2.
const (
	PseudoScheme    = ":scheme"
	PseudoMethod    = ":method"
	PseudoAuthority = ":authority"
	PseudoPath      = ":path"
	PseudoStatus    = ":status"
)

var pseudoHeaderOrder = []string{PseudoScheme, PseudoMethod, PseudoAuthority, PseudoPath, PseudoStatus}

func isPseudoHeader(name string) bool {
	for _, p := range pseudoHeaderOrder {
		if p == name {
			return true
		}
	}
	return false
}

// HeaderField is a single name/value pair, preserving the case and
// order the caller supplied.
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered HTTP/2 header list with the five pseudo-headers
// addressable by field and everything else kept as an insertion-ordered
// list of regular headers (spec §3's Http2Headers).
type Headers struct {
	pseudo  map[string]string
	regular []HeaderField
}

// New creates an empty Headers value.
func New() *Headers {
	return &Headers{pseudo: make(map[string]string, len(pseudoHeaderOrder))}
}

// Add sets a pseudo-header if name is one of the five recognized ones,
// otherwise appends a regular header, preserving insertion order.
func (h *Headers) Add(name, value string) {
	if isPseudoHeader(name) {
		h.pseudo[name] = value
		return
	}
	h.regular = append(h.regular, HeaderField{Name: name, Value: value})
}

// Get returns the first value for name, pseudo or regular, and whether
// it was present.
func (h *Headers) Get(name string) (string, bool) {
	if isPseudoHeader(name) {
		v, ok := h.pseudo[name]
		return v, ok
	}
	for _, f := range h.regular {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Method, Scheme, Authority, Path, Status are convenience accessors over
// the five named pseudo-headers.
func (h *Headers) Method() string    { return h.pseudo[PseudoMethod] }
func (h *Headers) Scheme() string    { return h.pseudo[PseudoScheme] }
func (h *Headers) Authority() string { return h.pseudo[PseudoAuthority] }
func (h *Headers) Path() string      { return h.pseudo[PseudoPath] }
func (h *Headers) Status() string    { return h.pseudo[PseudoStatus] }

// SetMethod, SetScheme, SetAuthority, SetPath, SetStatus set the
// corresponding pseudo-header.
func (h *Headers) SetMethod(v string)    { h.pseudo[PseudoMethod] = v }
func (h *Headers) SetScheme(v string)    { h.pseudo[PseudoScheme] = v }
func (h *Headers) SetAuthority(v string) { h.pseudo[PseudoAuthority] = v }
func (h *Headers) SetPath(v string)      { h.pseudo[PseudoPath] = v }
func (h *Headers) SetStatus(v string)    { h.pseudo[PseudoStatus] = v }

// ToList renders the headers to an ordered list suitable for HPACK
// encoding: pseudo-headers first (in the fixed RFC order, skipping any
// that were never set), then regular headers in insertion order.
func (h *Headers) ToList() []HeaderField {
	out := make([]HeaderField, 0, len(h.pseudo)+len(h.regular))
	for _, name := range pseudoHeaderOrder {
		if v, ok := h.pseudo[name]; ok {
			out = append(out, HeaderField{Name: name, Value: v})
		}
	}
	out = append(out, h.regular...)
	return out
}

// FromList builds a Headers from a flat field list, e.g. as decoded off
// the wire by an HPACK decoder.
func FromList(fields []HeaderField) *Headers {
	h := New()
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	return h
}
