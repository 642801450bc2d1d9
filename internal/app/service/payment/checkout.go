package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/tool"
	"github.com/fatflowers/posbridge/pkg/types"
)

type ReaderGateway interface {
	StartReaderCheckout(ctx context.Context, req sumup.CheckoutStart) (*sumup.CheckoutStarted, error)
	TerminateReaderCheckout(ctx context.Context, readerID string) error
}

type StartCheckoutRequest struct {
	TerminalID  string
	AmountMinor int64
	Currency    string
	OrderRef    string
	Description string
	Cart        json.RawMessage
	Customer    json.RawMessage
}

type StartCheckoutResult struct {
	Attempt *models.PaymentAttempt
	// Duplicate is set when orderRef already had an attempt; no new session was started.
	Duplicate bool
}

type Checkout struct {
	cfg     config.PaymentsConfig
	store   attempt.Store
	gateway ReaderGateway
	log     *zap.SugaredLogger
}

func NewCheckout(cfg *config.Config, store attempt.Store, gateway ReaderGateway, log *zap.SugaredLogger) *Checkout {
	return &Checkout{cfg: cfg.Payments, store: store, gateway: gateway, log: log}
}

func snapshot(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

func (req *StartCheckoutRequest) validate(defaultCurrency string) error {
	req.TerminalID = strings.TrimSpace(req.TerminalID)
	req.OrderRef = strings.TrimSpace(req.OrderRef)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = strings.ToUpper(defaultCurrency)
	}
	switch {
	case req.TerminalID == "":
		return fmt.Errorf("%w: terminalId is required", ErrInvalidCheckout)
	case req.OrderRef == "":
		return fmt.Errorf("%w: orderRef is required", ErrInvalidCheckout)
	case req.AmountMinor < 0:
		return fmt.Errorf("%w: amountMinor must not be negative", ErrInvalidCheckout)
	case !types.IsCurrencyCode(req.Currency):
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidCheckout, req.Currency)
	}
	return nil
}

// Start records a PENDING attempt and pushes the sale to the reader. A repeat
// call for the same orderRef returns the stored attempt without contacting
// the processor again.
func (c *Checkout) Start(ctx context.Context, req *StartCheckoutRequest) (*StartCheckoutResult, error) {
	if err := req.validate(c.cfg.DefaultCurrency); err != nil {
		return nil, err
	}
	ctx = logctx.WithOrderRef(ctx, req.OrderRef)
	log := logctx.FromCtx(ctx, c.log)

	stored, created, err := c.store.Create(ctx, &models.PaymentAttempt{
		OrderRef:         req.OrderRef,
		ReaderID:         req.TerminalID,
		AmountMinor:      req.AmountMinor,
		Currency:         req.Currency,
		Status:           types.AttemptStatusPending,
		CartSnapshot:     snapshot(req.Cart),
		CustomerSnapshot: snapshot(req.Customer),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		log.Infow("checkout_duplicate", "status", stored.Status)
		return &StartCheckoutResult{Attempt: stored, Duplicate: true}, nil
	}

	// The reader may already be showing the sale; a dropped client must not abort the call.
	started, err := c.gateway.StartReaderCheckout(context.WithoutCancel(ctx), sumup.CheckoutStart{
		ReaderID:    req.TerminalID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		ForeignID:   req.OrderRef,
		Description: req.Description,
	})
	if err != nil {
		log.Errorw("checkout_start_failed", "reader_id", req.TerminalID, "error", err)
		msg := tool.Truncate(err.Error(), c.cfg.MessageMaxLen)
		failed, uerr := c.store.Update(ctx, req.OrderRef, func(a *models.PaymentAttempt) error {
			if a.Status.IsTerminal() {
				return attempt.ErrSkipUpdate
			}
			a.Status = types.AttemptStatusError
			a.Message = &msg
			return nil
		})
		if uerr != nil {
			log.Errorw("checkout_error_persist_failed", "error", uerr)
			failed = stored
		}
		return &StartCheckoutResult{Attempt: failed}, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}

	if id := started.ClientTransactionID; id != "" {
		updated, err := c.store.Update(ctx, req.OrderRef, func(a *models.PaymentAttempt) error {
			if a.ClientTransactionID != nil {
				return attempt.ErrSkipUpdate
			}
			a.ClientTransactionID = &id
			return nil
		})
		if err != nil {
			// Reconciliation still finds the transaction by foreign id.
			log.Errorw("checkout_client_transaction_id_persist_failed", "client_transaction_id", id, "error", err)
		} else {
			stored = updated
		}
	}
	log.Infow("checkout_started", "reader_id", req.TerminalID, "amount_minor", req.AmountMinor, "currency", req.Currency)
	return &StartCheckoutResult{Attempt: stored}, nil
}

// Cancel asks the reader to abandon the pending sale. The attempt status is
// left to reconciliation.
func (c *Checkout) Cancel(ctx context.Context, orderRef string) (*models.PaymentAttempt, error) {
	ctx = logctx.WithOrderRef(ctx, orderRef)
	a, err := c.store.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return a, ErrAttemptFinal
	}
	if err := c.gateway.TerminateReaderCheckout(ctx, a.ReaderID); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("checkout_cancel_failed", "reader_id", a.ReaderID, "error", err)
		return a, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}
	logctx.FromCtx(ctx, c.log).Infow("checkout_cancel_requested", "reader_id", a.ReaderID)
	return a, nil
}
