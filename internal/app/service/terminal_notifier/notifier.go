package terminal_notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/metrics"
	"github.com/fatflowers/posbridge/pkg/tool"
)

var (
	ErrVerificationFailed     = errors.New("terminal confirmation verification failed")
	ErrDownstreamNotifyFailed = errors.New("terminal confirmation delivery failed")
)

// SkipReason explains why MaybeSend did not deliver.
type SkipReason string

const (
	ReasonMissingURL         SkipReason = "missing-url"
	ReasonNonFinalStatus     SkipReason = "non-final-status"
	ReasonAlreadyNotified    SkipReason = "already-notified"
	ReasonVerificationFailed SkipReason = "verification-failed"
)

// Verifier re-reads a transaction from the processor.
type Verifier interface {
	Resolve(ctx context.Context, keys sumup.LookupKeys) (*sumup.Transaction, error)
}

// Marker records that the confirmation for an attempt went out.
type Marker interface {
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
}

type Result struct {
	Sent         bool          `json:"sent"`
	Reason       SkipReason    `json:"reason,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

type VerificationAmount struct {
	Currency *string `json:"currency"`
	Value    *int64  `json:"value"`
}

// Verification is what the processor said when re-asked just before sending.
type Verification struct {
	Confirmed       bool                `json:"confirmed"`
	Source          string              `json:"source"`
	Status          string              `json:"status,omitempty"`
	RawStatus       string              `json:"rawStatus,omitempty"`
	TransactionID   *string             `json:"transactionId"`
	MatchesOrderRef bool                `json:"matchesOrderRef"`
	Amount          *VerificationAmount `json:"amount,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// Payload is the body POSTed to the terminal confirmation URL.
type Payload struct {
	AttemptID           string        `json:"attemptId"`
	OrderRef            string        `json:"orderRef"`
	Status              string        `json:"status"`
	AmountMinor         int64         `json:"amountMinor"`
	Currency            string        `json:"currency"`
	ReaderID            string        `json:"readerId"`
	TransactionID       *string       `json:"transactionId"`
	ClientTransactionID *string       `json:"clientTransactionId"`
	ApprovalCode        *string       `json:"approvalCode"`
	Scheme              *string       `json:"scheme"`
	Last4               *string       `json:"last4"`
	Message             *string       `json:"message"`
	ShopifyOrderID      *string       `json:"shopifyOrderId"`
	Source              string        `json:"source"`
	Verification        *Verification `json:"verification"`
	SentAt              time.Time     `json:"sentAt"`
}

// Notifier sends at most one verified terminal confirmation per attempt.
type Notifier struct {
	url      string
	http     *http.Client
	verifier Verifier
	marker   Marker
	log      *zap.SugaredLogger
	metrics  *metrics.Business
	now      func() time.Time
}

func NewNotifier(cfg *config.Config, verifier Verifier, marker Marker, log *zap.SugaredLogger, m *metrics.Business) *Notifier {
	return &Notifier{
		url:      cfg.Notify.TerminalConfirmationURL,
		http:     &http.Client{Timeout: cfg.Notify.Timeout},
		verifier: verifier,
		marker:   marker,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func skipped(reason SkipReason) *Result {
	return &Result{Reason: reason}
}

// MaybeSend re-verifies a with the processor and POSTs the confirmation once.
// The observation that triggered the call is never trusted on its own.
func (n *Notifier) MaybeSend(ctx context.Context, a *models.PaymentAttempt, source string) (*Result, error) {
	log := logctx.FromCtx(ctx, n.log)
	switch {
	case n.url == "":
		return skipped(ReasonMissingURL), nil
	case !a.Status.IsTerminal():
		return skipped(ReasonNonFinalStatus), nil
	case a.TerminalWebhookNotifiedAt != nil:
		return skipped(ReasonAlreadyNotified), nil
	}

	verification, err := n.verify(ctx, a)
	if err != nil {
		n.metrics.ObserveNotify("verification_failed")
		log.Warnw("terminal_notify_verification_failed", "status", a.Status, "error", err)
		return &Result{Reason: ReasonVerificationFailed, Verification: verification}, nil
	}

	now := n.now()
	payload := &Payload{
		AttemptID:           a.ID,
		OrderRef:            a.OrderRef,
		Status:              a.Status.String(),
		AmountMinor:         a.AmountMinor,
		Currency:            a.Currency,
		ReaderID:            a.ReaderID,
		TransactionID:       a.TransactionID,
		ClientTransactionID: a.ClientTransactionID,
		ApprovalCode:        a.ApprovalCode,
		Scheme:              a.Scheme,
		Last4:               a.Last4,
		Message:             a.Message,
		ShopifyOrderID:      a.ShopifyOrderID,
		Source:              source,
		Verification:        verification,
		SentAt:              now,
	}
	if err := n.post(ctx, payload); err != nil {
		n.metrics.ObserveNotify("failed")
		return nil, err
	}
	n.metrics.ObserveNotify("sent")

	marked, err := n.marker.MarkNotified(ctx, a.ID, now)
	switch {
	case err != nil:
		log.Errorw("terminal_notify_mark_failed", "attempt_id", a.ID, "error", err)
	case !marked:
		log.Warnw("terminal_notify_concurrent_delivery", "attempt_id", a.ID)
	default:
		a.TerminalWebhookNotifiedAt = &now
	}
	log.Infow("terminal_notified", "status", a.Status, "source", source)
	return &Result{Sent: true, Verification: verification}, nil
}

func (n *Notifier) verify(ctx context.Context, a *models.PaymentAttempt) (*Verification, error) {
	v := &Verification{Source: "sumup-api"}
	keys := sumup.LookupKeys{OrderRef: a.OrderRef}
	if a.ClientTransactionID != nil {
		keys.ClientTransactionID = *a.ClientTransactionID
	}
	tx, err := n.verifier.Resolve(ctx, keys)
	if err != nil {
		v.Error = err.Error()
		return v, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if tx == nil {
		v.Error = "transaction not found"
		return v, fmt.Errorf("%w: transaction not found", ErrVerificationFailed)
	}

	v.Confirmed = true
	v.RawStatus = tx.Status
	v.Status = sumup.MapStatus(tx.Status).String()
	v.MatchesOrderRef = tx.MatchesForeignID(a.OrderRef)
	if tx.TransactionID != "" {
		v.TransactionID = &tx.TransactionID
	}
	if tx.AmountMinor != nil || tx.Currency != "" {
		v.Amount = &VerificationAmount{Value: tx.AmountMinor}
		if tx.Currency != "" {
			v.Amount.Currency = &tx.Currency
		}
	}
	return v, nil
}

func (n *Notifier) post(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal terminal confirmation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownstreamNotifyFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tid, ok := ctx.Value(logctx.TraceIDKey).(string); ok && tid != "" {
		req.Header.Set("X-Trace-Id", tid)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownstreamNotifyFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrDownstreamNotifyFailed, resp.StatusCode, tool.Truncate(string(respBody), 300))
	}
	return nil
}
