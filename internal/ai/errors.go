package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayErrorKind classifies a failed gateway call by how the caller
// should react to it.
type GatewayErrorKind int

const (
	KindGeneric GatewayErrorKind = iota
	KindRateLimited
	KindUnavailable
	KindUnauthorized
	KindNoBody
)

func (k GatewayErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthorized:
		return "unauthorized"
	case KindNoBody:
		return "no_body"
	default:
		return "generic"
	}
}

var ErrStreamIdle = errors.New("gateway stream idle timeout")

// GatewayError is returned for every gateway failure. Status is zero when
// no HTTP response was received.
type GatewayError struct {
	Kind   GatewayErrorKind
	Status int
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	msg := "gateway " + e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError unwraps err to a *GatewayError.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind GatewayErrorKind) bool {
	gwErr, ok := AsGatewayError(err)
	return ok && gwErr.Kind == kind
}

// ClassifyStatus maps a non-success HTTP status and its body to a GatewayError.
func ClassifyStatus(status int, body string) *GatewayError {
	kind := KindGeneric
	switch status {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusPaymentRequired:
		kind = KindUnavailable
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	}
	return &GatewayError{Kind: kind, Status: status, Detail: body}
}
