// Package apperr defines the failure taxonomy shared by the auth, api,
// realtime and dashboard layers. Every error that crosses a package boundary
// is one of these kinds, so callers can branch on Kind instead of string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindUnauthorized
	KindTimeout
	KindUnreachable
	KindServerError
	KindMisconfiguredEndpoint
	KindUserCancelled
	KindAuthorizationFailed
	KindTokenExchangeFailed
	KindBackendRejected
	KindMalformedResponse
	KindConnectionFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid-credentials"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindServerError:
		return "server-error"
	case KindMisconfiguredEndpoint:
		return "misconfigured-endpoint"
	case KindUserCancelled:
		return "user-cancelled"
	case KindAuthorizationFailed:
		return "authorization-failed"
	case KindTokenExchangeFailed:
		return "token-exchange-failed"
	case KindBackendRejected:
		return "backend-rejected"
	case KindMalformedResponse:
		return "malformed-response"
	case KindConnectionFailed:
		return "connection-failed"
	}
	return "unknown"
}

// maxRawBody caps how much of a non-JSON response body is retained for
// diagnostics. Enough to recognize an HTML error page, not enough to flood
// the logs.
const maxRawBody = 200

type Error struct {
	Kind    Kind
	Message string
	RawBody string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithBody attaches a truncated raw response body. Used when an endpoint
// that should return JSON returns something else; the body is the only clue
// whether the problem is routing, CORS or a proxy error page.
func WithBody(kind Kind, message, body string) *Error {
	if len(body) > maxRawBody {
		body = body[:maxRawBody]
	}
	return &Error{Kind: kind, Message: message, RawBody: body}
}

// IsKind reports whether err is an *Error of the given kind.
// KindMisconfiguredEndpoint is a variant of KindServerError and matches both.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == kind {
		return true
	}
	return kind == KindServerError && e.Kind == KindMisconfiguredEndpoint
}

// MessageOf extracts the human-readable message, falling back to Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
