package status

// HTTP status codes that participate in the HTTP->gRPC status mapping
// table (spec §3). Only the codes the table references are named; 200
// maps to OK and 1xx to Internal, and any other HTTP status not listed
// here maps to Unknown.
const (
	httpBadRequest                 = 400
	httpUnauthorized                = 401
	httpForbidden                   = 403
	httpNotFound                    = 404
	httpTooManyRequests             = 429
	httpRequestHeaderFieldsTooLarge = 431
	httpBadGateway                  = 502
	httpServiceUnavailable          = 503
	httpGatewayTimeout              = 504
)

// FromHTTPStatus implements the HTTP->gRPC status table from spec §3:
// 1xx/400/431 -> Internal, 401 -> Unauthenticated, 403 -> PermissionDenied,
// 404 -> NotFound, 429/502/503/504 -> Unavailable, everything else ->
// Unknown. A 200 response maps to OK since it means the call succeeded
// at the transport layer (the real verdict comes from grpc-status).
func FromHTTPStatus(code int) Code {
	switch {
	case code == 200:
		return OK
	case is1xx(code), code == httpBadRequest, code == httpRequestHeaderFieldsTooLarge:
		return Internal
	case code == httpUnauthorized:
		return Unauthenticated
	case code == httpForbidden:
		return PermissionDenied
	case code == httpNotFound:
		return NotFound
	case code == httpTooManyRequests, code == httpBadGateway,
		code == httpServiceUnavailable, code == httpGatewayTimeout:
		return Unavailable
	default:
		return Unknown
	}
}

func is1xx(code int) bool {
	return code >= 100 && code < 200
}
