package status_test

import (
	"strings"
	"testing"

	"google.golang.org/grpc/codes"

	"github.com/apache/dubbo-go-triple/status"
)

func TestStatusDescriptionTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	s := status.New(status.Internal).WithDescription(long)
	if len(s.Description()) != 512+len("...") {
		t.Errorf("expected truncated description of 515 chars, got %d", len(s.Description()))
	}
}

func TestStatusAppendDescription(t *testing.T) {
	s := status.New(status.Internal).WithDescription("first")
	s = s.AppendDescription("second")
	if s.Description() != "first\nsecond" {
		t.Errorf("got %q", s.Description())
	}
}

func TestAsErrorOKIsNil(t *testing.T) {
	if err := status.New(status.OK).AsError(); err != nil {
		t.Errorf("expected nil error for OK status, got %v", err)
	}
}

func TestFromErrorRoundTrip(t *testing.T) {
	orig := status.Newf(status.NotFound, "user %s not found", "42")
	err := orig.AsError()

	got := status.FromError(err)
	if got.Code() != status.NotFound {
		t.Errorf("expected NotFound, got %s", got.Code())
	}
	if got.Description() != "user 42 not found" {
		t.Errorf("unexpected description: %q", got.Description())
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		http int
		want status.Code
	}{
		{100, status.Internal},
		{400, status.Internal},
		{431, status.Internal},
		{401, status.Unauthenticated},
		{403, status.PermissionDenied},
		{404, status.NotFound},
		{429, status.Unavailable},
		{502, status.Unavailable},
		{503, status.Unavailable},
		{504, status.Unavailable},
		{418, status.Unknown},
	}

	for _, tt := range tests {
		if got := status.FromHTTPStatus(tt.http); got != tt.want {
			t.Errorf("FromHTTPStatus(%d) = %s, want %s", tt.http, got, tt.want)
		}
	}
}

func TestCodeFromWireUnknownFallsBack(t *testing.T) {
	if got := status.FromWire(255); got != status.Unknown {
		t.Errorf("expected Unknown for out-of-range wire code, got %s", got)
	}
}

func TestGRPCCodeRoundTrip(t *testing.T) {
	for c := status.OK; c <= status.Unauthenticated; c++ {
		if got := status.FromGRPCCode(c.ToGRPCCode()); got != c {
			t.Errorf("round trip for %s produced %s", c, got)
		}
		if c.ToGRPCCode() != codes.Code(c) {
			t.Errorf("ToGRPCCode(%s) = %d, want numerically identical %d", c, c.ToGRPCCode(), uint32(c))
		}
	}
}
