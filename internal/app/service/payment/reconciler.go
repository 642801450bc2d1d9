package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/terminal_notifier"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/cache"
	"github.com/fatflowers/posbridge/internal/platform/kafka"
	"github.com/fatflowers/posbridge/internal/platform/shopify"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/metrics"
	"github.com/fatflowers/posbridge/pkg/tool"
	"github.com/fatflowers/posbridge/pkg/types"
)

type TransactionResolver interface {
	Resolve(ctx context.Context, keys sumup.LookupKeys) (*sumup.Transaction, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req *shopify.OrderRequest) (string, error)
}

type TerminalNotifier interface {
	MaybeSend(ctx context.Context, a *models.PaymentAttempt, source string) (*terminal_notifier.Result, error)
}

type EventPublisher interface {
	PublishFinalized(ctx context.Context, event *kafka.PaymentFinalized) error
}

const publishTimeout = 10 * time.Second

// Outcome is the result of one reconciliation.
type Outcome struct {
	Attempt *models.PaymentAttempt
	// Observed is the observation applied, nil when the processor had nothing.
	Observed *sumup.Transaction
	// Finalized is true only for the call that moved the attempt out of PENDING.
	Finalized bool
	// Conflict is set when a terminal attempt was observed with a different terminal status.
	Conflict bool
}

// Reconciler is the single place attempt status changes. Every source of
// truth (poll, webhook, admin) goes through Reconcile.
type Reconciler struct {
	cfg      config.PaymentsConfig
	store    attempt.Store
	resolver TransactionResolver
	orders   OrderCreator
	notifier TerminalNotifier
	events   EventPublisher
	gate     cache.PollGate
	log      *zap.SugaredLogger
	metrics  *metrics.Business
	now      func() time.Time
}

func NewReconciler(
	cfg *config.Config,
	store attempt.Store,
	resolver TransactionResolver,
	orders OrderCreator,
	notifier TerminalNotifier,
	events EventPublisher,
	gate cache.PollGate,
	log *zap.SugaredLogger,
	m *metrics.Business,
) *Reconciler {
	return &Reconciler{
		cfg:      cfg.Payments,
		store:    store,
		resolver: resolver,
		orders:   orders,
		notifier: notifier,
		events:   events,
		gate:     gate,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (r *Reconciler) claimable(a *models.PaymentAttempt, now time.Time) bool {
	return a.OrderClaimedAt == nil || now.Sub(*a.OrderClaimedAt) > r.cfg.OrderClaimTTL
}

func lookupKeys(a *models.PaymentAttempt) sumup.LookupKeys {
	keys := sumup.LookupKeys{OrderRef: a.OrderRef}
	if a.ClientTransactionID != nil {
		keys.ClientTransactionID = *a.ClientTransactionID
	}
	return keys
}

// Reconcile applies an observation to the attempt for orderRef. With a nil
// (or status-less) observation the processor is queried. A terminal attempt
// never changes status; later observations can only fill in missing fields
// and only when they agree with the stored status.
func (r *Reconciler) Reconcile(ctx context.Context, orderRef string, observed *sumup.Transaction, source string) (*Outcome, error) {
	ctx = logctx.WithOrderRef(ctx, orderRef)
	log := logctx.FromCtx(ctx, r.log)

	current, err := r.store.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	if !observed.HasStatus() {
		resolved, err := r.resolver.Resolve(ctx, lookupKeys(current))
		if err != nil {
			r.metrics.ObserveReconcile(source, "lookup_failed")
			return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
		}
		observed = resolved
	}

	out := &Outcome{Attempt: current, Observed: observed}
	if observed == nil {
		r.metrics.ObserveReconcile(source, "not_found")
		log.Debugw("reconcile_no_transaction", "source", source)
		r.followUps(ctx, out, false, source)
		return out, nil
	}

	mapped := sumup.MapStatus(observed.Status)
	if mapped == types.AttemptStatusPending {
		r.metrics.ObserveReconcile(source, "pending")
		r.followUps(ctx, out, false, source)
		return out, nil
	}

	obs := *observed
	obs.Message = tool.Truncate(obs.Message, r.cfg.MessageMaxLen)
	now := r.now()

	var finalized, conflict, claimed bool
	updated, err := r.store.Update(ctx, orderRef, func(a *models.PaymentAttempt) error {
		finalized, conflict, claimed = false, false, false
		changed := false
		if a.Status.IsTerminal() {
			conflict = a.Status != mapped
		} else {
			a.Status = mapped
			finalized = true
			changed = true
		}
		if !conflict && Merge(a, &obs) {
			changed = true
		}
		if a.Status == types.AttemptStatusApproved && a.ShopifyOrderID == nil && r.claimable(a, now) {
			a.OrderClaimedAt = &now
			claimed = true
			changed = true
		}
		if !changed {
			return attempt.ErrSkipUpdate
		}
		return nil
	})
	if err != nil {
		r.metrics.ObserveReconcile(source, "store_failed")
		return nil, err
	}

	out.Attempt, out.Finalized, out.Conflict = updated, finalized, conflict
	switch {
	case finalized:
		r.metrics.ObserveReconcile(source, "finalized")
		log.Infow("payment_attempt_finalized", "status", updated.Status, "source", source, "transaction_id", obs.TransactionID)
	case conflict:
		r.metrics.ObserveReconcile(source, "conflict")
		log.Warnw("payment_conflicting_observation",
			"stored_status", updated.Status, "observed_status", mapped, "raw_status", obs.Status, "source", source)
	default:
		r.metrics.ObserveReconcile(source, "already_final")
	}

	r.followUps(ctx, out, claimed, source)
	if finalized {
		r.publish(ctx, out.Attempt, source)
	}
	return out, nil
}

// followUps runs the side effects of a terminal attempt. They use a context
// that outlives the caller so a dropped client cannot abort them halfway.
func (r *Reconciler) followUps(ctx context.Context, out *Outcome, claimed bool, source string) {
	if !out.Attempt.Status.IsTerminal() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if claimed {
		a, _ := r.createOrder(ctx, out.Attempt)
		out.Attempt = a
	}
	r.notify(ctx, out.Attempt, source)
}

// createOrder must only be called while holding the order claim on a.
func (r *Reconciler) createOrder(ctx context.Context, a *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	log := logctx.FromCtx(ctx, r.log)
	release := func(cause error) (*models.PaymentAttempt, error) {
		r.metrics.ObserveOrderCreate("failed")
		log.Errorw("order_create_failed", "error", cause)
		if err := r.store.ReleaseOrderClaim(ctx, a.OrderRef); err != nil {
			log.Errorw("order_claim_release_failed", "error", err)
		} else {
			a.OrderClaimedAt = nil
		}
		return a, fmt.Errorf("%w: %w", ErrOrderNotCreated, cause)
	}

	cart, customer, err := shopify.DecodeSnapshots(a.CartSnapshot, a.CustomerSnapshot)
	if err != nil {
		return release(err)
	}
	req := &shopify.OrderRequest{
		OrderRef:    a.OrderRef,
		Cart:        cart,
		Customer:    customer,
		AmountMinor: a.AmountMinor,
		Currency:    a.Currency,
	}
	if a.TransactionID != nil {
		req.TransactionID = *a.TransactionID
	}
	if a.ApprovalCode != nil {
		req.ApprovalCode = *a.ApprovalCode
	}
	if a.Scheme != nil {
		req.Scheme = *a.Scheme
	}
	if a.Last4 != nil {
		req.Last4 = *a.Last4
	}

	orderID, err := r.orders.CreateOrder(ctx, req)
	if err != nil {
		return release(err)
	}

	stored, err := r.store.SetShopifyOrderID(ctx, a.OrderRef, orderID)
	if err != nil {
		// The order exists downstream; the claim stays until it expires.
		r.metrics.ObserveOrderCreate("persist_failed")
		log.Errorw("order_id_persist_failed", "shopify_order_id", orderID, "error", err)
		return a, err
	}
	if !stored {
		log.Warnw("order_id_already_set", "shopify_order_id", orderID)
	}
	r.metrics.ObserveOrderCreate("created")
	log.Infow("order_created", "shopify_order_id", orderID)
	a.ShopifyOrderID = &orderID
	a.OrderClaimedAt = nil
	return a, nil
}

func (r *Reconciler) notify(ctx context.Context, a *models.PaymentAttempt, source string) {
	log := logctx.FromCtx(ctx, r.log)
	res, err := r.notifier.MaybeSend(ctx, a, source)
	if err != nil {
		log.Errorw("terminal_notify_failed", "status", a.Status, "error", err)
		return
	}
	if !res.Sent && res.Reason != terminal_notifier.ReasonAlreadyNotified {
		log.Debugw("terminal_notify_skipped", "reason", res.Reason)
	}
}

func (r *Reconciler) publish(ctx context.Context, a *models.PaymentAttempt, source string) {
	event := &kafka.PaymentFinalized{
		AttemptID:      a.ID,
		OrderRef:       a.OrderRef,
		Status:         a.Status.String(),
		AmountMinor:    a.AmountMinor,
		Currency:       a.Currency,
		ReaderID:       a.ReaderID,
		TransactionID:  a.TransactionID,
		ShopifyOrderID: a.ShopifyOrderID,
		Source:         source,
		FinalizedAt:    a.UpdatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := r.events.PublishFinalized(ctx, event); err != nil {
			logctx.FromCtx(ctx, r.log).Errorw("payment_event_publish_failed", "error", err)
		}
	}()
}

// PollResult tells the POS what the attempt looks like and when to ask again.
type PollResult struct {
	Attempt   *models.PaymentAttempt
	PollAfter time.Duration
}

// Poll returns the attempt for orderRef, refreshing it from the processor
// when it is old enough and the per-attempt gate allows a live query.
func (r *Reconciler) Poll(ctx context.Context, orderRef string) (*PollResult, error) {
	ctx = logctx.WithOrderRef(ctx, orderRef)
	log := logctx.FromCtx(ctx, r.log)

	a, err := r.store.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return &PollResult{Attempt: a}, nil
	}
	if age := a.Age(r.now()); age < r.cfg.PollMinAge {
		return &PollResult{Attempt: a, PollAfter: r.cfg.PollMinAge - age}, nil
	}

	allowed, err := r.gate.Allow(ctx, orderRef)
	if err != nil {
		log.Warnw("poll_gate_unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		return &PollResult{Attempt: a, PollAfter: r.cfg.PollInterval}, nil
	}

	out, err := r.Reconcile(ctx, orderRef, nil, types.SourceStatusPoll)
	if err != nil {
		log.Warnw("status_poll_refresh_failed", "error", err)
		return &PollResult{Attempt: a, PollAfter: r.cfg.PollInterval}, nil
	}
	res := &PollResult{Attempt: out.Attempt, PollAfter: r.cfg.PollInterval}
	if out.Attempt.Status.IsTerminal() {
		res.PollAfter = 0
	}
	return res, nil
}

// WebhookResult reports whether a webhook matched an attempt.
type WebhookResult struct {
	Matched bool
	Outcome *Outcome
}

// HandleWebhook finds the attempt a webhook refers to and reconciles it. A
// webhook without a status triggers a live lookup instead.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload *sumup.WebhookPayload) (*WebhookResult, error) {
	tx := payload.Transaction
	a, err := r.findAttempt(ctx, tx)
	if errors.Is(err, attempt.ErrAttemptNotFound) {
		logctx.FromCtx(ctx, r.log).Infow("webhook_attempt_not_found",
			"event_id", payload.ID, "foreign_id", tx.ForeignID,
			"client_transaction_id", tx.ClientTransactionID, "transaction_id", tx.TransactionID)
		return &WebhookResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	var observed *sumup.Transaction
	if tx.HasStatus() {
		observed = tx
	}
	out, err := r.Reconcile(ctx, a.OrderRef, observed, types.SourceWebhook)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Matched: true, Outcome: out}, nil
}

// findAttempt tries the foreign id, then the client transaction id, then the
// processor transaction id.
func (r *Reconciler) findAttempt(ctx context.Context, tx *sumup.Transaction) (*models.PaymentAttempt, error) {
	if tx == nil {
		return nil, attempt.ErrAttemptNotFound
	}
	lookups := []struct {
		key  string
		find func(context.Context, string) (*models.PaymentAttempt, error)
	}{
		{tx.ForeignID, r.store.FindByOrderRef},
		{tx.ClientTransactionID, r.store.FindByClientTransactionID},
		{tx.TransactionID, r.store.FindByTransactionID},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		a, err := l.find(ctx, l.key)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, attempt.ErrAttemptNotFound) {
			return nil, err
		}
	}
	return nil, attempt.ErrAttemptNotFound
}

// RecoverOrder creates the downstream order for an APPROVED attempt that
// does not have one yet.
func (r *Reconciler) RecoverOrder(ctx context.Context, orderRef string) (*models.PaymentAttempt, error) {
	ctx = logctx.WithOrderRef(ctx, orderRef)
	now := r.now()
	claimed := false
	a, err := r.store.Update(ctx, orderRef, func(a *models.PaymentAttempt) error {
		switch {
		case a.Status != types.AttemptStatusApproved:
			return ErrNotApproved
		case a.ShopifyOrderID != nil:
			return attempt.ErrSkipUpdate
		case !r.claimable(a, now):
			return ErrOrderInFlight
		}
		a.OrderClaimedAt = &now
		claimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return a, nil
	}
	return r.createOrder(context.WithoutCancel(ctx), a)
}

// Expire moves a PENDING attempt to TIMEOUT. It is the only way an attempt
// reaches TIMEOUT.
func (r *Reconciler) Expire(ctx context.Context, orderRef, reason string) (*models.PaymentAttempt, error) {
	ctx = logctx.WithOrderRef(ctx, orderRef)
	if reason == "" {
		reason = "expired by operator"
	}
	msg := tool.Truncate(reason, r.cfg.MessageMaxLen)
	a, err := r.store.Update(ctx, orderRef, func(a *models.PaymentAttempt) error {
		if a.Status.IsTerminal() {
			return ErrAttemptFinal
		}
		a.Status = types.AttemptStatusTimeout
		a.Message = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, r.log).Infow("payment_attempt_expired", "reason", msg)
	r.metrics.ObserveReconcile(types.SourceAdmin, "expired")

	out := &Outcome{Attempt: a, Finalized: true}
	r.followUps(ctx, out, false, types.SourceAdmin)
	r.publish(ctx, out.Attempt, types.SourceAdmin)
	return out.Attempt, nil
}
