package status

import "fmt"

// maxDescriptionLen is the truncation limit for a status description
// (spec §3: "optional description (<=512 chars, truncated)").
const maxDescriptionLen = 512

// Status is a gRPC/Triple status: a code, an optional human-readable
// description, and an optional cause (the Go error that produced it).
// It is immutable from the outside; use the With* builders to derive a
// new value rather than mutating in place.
type Status struct {
	code        Code
	description string
	cause       error
}

// New creates a Status with the given code.
func New(code Code) *Status {
	return &Status{code: code}
}

// Newf creates a Status with a formatted description.
func Newf(code Code, format string, args ...any) *Status {
	return &Status{code: code, description: limitDescription(fmt.Sprintf(format, args...))}
}

// Code returns the status code.
func (s *Status) Code() Code { return s.code }

// Description returns the (possibly empty) human-readable description.
func (s *Status) Description() string { return s.description }

// Cause returns the underlying error, if any.
func (s *Status) Cause() error { return s.cause }

// OK reports whether the status represents success.
func (s *Status) OK() bool { return s.code == OK }

// WithDescription returns a copy of s with the description replaced.
func (s *Status) WithDescription(description string) *Status {
	c := *s
	c.description = limitDescription(description)
	return &c
}

// WithCause returns a copy of s with the cause set.
func (s *Status) WithCause(cause error) *Status {
	c := *s
	c.cause = cause
	return &c
}

// AppendDescription appends to the description, separated by a
// newline, preserving whatever was already recorded.
func (s *Status) AppendDescription(description string) *Status {
	c := *s
	if c.description != "" {
		c.description = limitDescription(c.description + "\n" + description)
	} else {
		c.description = limitDescription(description)
	}
	return &c
}

// AsError converts the status to a Go error.
func (s *Status) AsError() error {
	if s.OK() {
		return nil
	}
	return &Error{Status: s}
}

func limitDescription(description string) string {
	if len(description) > maxDescriptionLen {
		return description[:maxDescriptionLen] + "..."
	}
	return description
}

func (s *Status) String() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", s.code, s.description)
}

// Error wraps a Status as a Go error, the type returned by Status.AsError.
type Error struct {
	Status *Status
}

func (e *Error) Error() string {
	return e.Status.String()
}

func (e *Error) Unwrap() error {
	return e.Status.Cause()
}

// FromError extracts the Status from err if it (or something it wraps)
// is a *Error; otherwise it reports an Unknown status carrying err as
// the cause.
func FromError(err error) *Status {
	if err == nil {
		return New(OK)
	}
	var se *Error
	if asError(err, &se) {
		return se.Status
	}
	return New(Unknown).WithDescription(err.Error()).WithCause(err)
}

// asError is a small local errors.As to avoid importing errors just for
// this one call site elsewhere in the package.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
