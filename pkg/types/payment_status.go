package types

// AttemptStatus is the canonical state of a payment attempt.
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "PENDING"
	AttemptStatusApproved  AttemptStatus = "APPROVED"
	AttemptStatusDeclined  AttemptStatus = "DECLINED"
	AttemptStatusCancelled AttemptStatus = "CANCELLED"
	AttemptStatusError     AttemptStatus = "ERROR"
	// AttemptStatusTimeout is only set by an administrative expiry, never by reconciliation.
	AttemptStatusTimeout AttemptStatus = "TIMEOUT"
)

var terminalStatuses = map[AttemptStatus]bool{
	AttemptStatusApproved:  true,
	AttemptStatusDeclined:  true,
	AttemptStatusCancelled: true,
	AttemptStatusError:     true,
	AttemptStatusTimeout:   true,
}

// IsTerminal reports whether no further transitions are allowed out of s.
func (s AttemptStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

func (s AttemptStatus) String() string { return string(s) }

type PaymentProvider string

const (
	PaymentProviderSumUp PaymentProvider = "sumup"
)

// Reconciliation sources, reported in logs, metrics and downstream notifications.
const (
	SourceStatusPoll = "status-poll"
	SourceWebhook    = "webhook"
	SourceAdmin      = "admin"
	SourceCheckout   = "checkout"
)
