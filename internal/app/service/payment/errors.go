package payment

import "errors"

var (
	ErrInvalidCheckout = errors.New("invalid checkout request")
	// ErrGatewayFailure wraps processor failures surfaced to the caller.
	ErrGatewayFailure  = errors.New("payment gateway failure")
	ErrAttemptFinal    = errors.New("payment attempt is already final")
	ErrNotApproved     = errors.New("payment attempt is not approved")
	ErrOrderInFlight   = errors.New("order creation already in progress")
	ErrOrderNotCreated = errors.New("order creation failed")
)
