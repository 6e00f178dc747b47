// Package status implements the Triple/gRPC status model: the 17
// canonical status codes, TriRpcStatus, and the HTTP<->gRPC mapping
// table used when a call terminates without ever seeing trailers.
package status

import (
	"strconv"

	"google.golang.org/grpc/codes"
)

// Code is a gRPC status code, numerically identical to
// google.golang.org/grpc/codes.Code so wire values round-trip without
// translation.
type Code uint32

// The canonical gRPC status codes (spec §6).
const (
	OK                 Code = 0
	Canceled           Code = 1
	Unknown            Code = 2
	InvalidArgument    Code = 3
	DeadlineExceeded   Code = 4
	NotFound           Code = 5
	AlreadyExists      Code = 6
	PermissionDenied   Code = 7
	ResourceExhausted  Code = 8
	FailedPrecondition Code = 9
	Aborted            Code = 10
	OutOfRange         Code = 11
	Unimplemented      Code = 12
	Internal           Code = 13
	Unavailable        Code = 14
	DataLoss           Code = 15
	Unauthenticated    Code = 16
)

var codeNames = map[Code]string{
	OK:                 "OK",
	Canceled:           "CANCELLED",
	Unknown:            "UNKNOWN",
	InvalidArgument:    "INVALID_ARGUMENT",
	DeadlineExceeded:   "DEADLINE_EXCEEDED",
	NotFound:           "NOT_FOUND",
	AlreadyExists:      "ALREADY_EXISTS",
	PermissionDenied:   "PERMISSION_DENIED",
	ResourceExhausted:  "RESOURCE_EXHAUSTED",
	FailedPrecondition: "FAILED_PRECONDITION",
	Aborted:            "ABORTED",
	OutOfRange:         "OUT_OF_RANGE",
	Unimplemented:      "UNIMPLEMENTED",
	Internal:           "INTERNAL",
	Unavailable:        "UNAVAILABLE",
	DataLoss:           "DATA_LOSS",
	Unauthenticated:    "UNAUTHENTICATED",
}

// FromWire parses the numeric value carried in a grpc-status trailer.
func FromWire(v uint32) Code {
	if _, ok := codeNames[Code(v)]; ok {
		return Code(v)
	}
	return Unknown
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "CODE(" + strconv.FormatUint(uint64(c), 10) + ")"
}

// ToGRPCCode converts to google.golang.org/grpc/codes.Code, for callers
// embedding this engine alongside the grpc-go ecosystem (reflection,
// interceptors) that expect that type.
func (c Code) ToGRPCCode() codes.Code {
	return codes.Code(c)
}

// FromGRPCCode converts from google.golang.org/grpc/codes.Code.
func FromGRPCCode(c codes.Code) Code {
	return FromWire(uint32(c))
}
