package sumup

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayTimeout means the processor did not answer within the configured deadline.
	ErrGatewayTimeout = errors.New("sumup gateway timeout")
	// ErrGatewayError means the processor answered with a non-2xx status.
	ErrGatewayError = errors.New("sumup gateway error")
	// ErrSignatureInvalid is returned when a webhook signature is missing or does not match.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
	// ErrNotConfigured is returned when required credentials are absent.
	ErrNotConfigured = errors.New("sumup client not configured")
)

// GatewayError carries the processor's HTTP status and a bounded copy of its body.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("sumup %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayError
}
