package models

import (
	"time"

	"github.com/fatflowers/posbridge/pkg/types"
	"gorm.io/datatypes"
)

// PaymentAttempt is one sale attempt on a card terminal. It is the idempotency
// guard for checkout creation and the audit trail of the outcome; rows are never deleted.
type PaymentAttempt struct {
	ID       string `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	OrderRef string `gorm:"column:order_ref;type:varchar(128);not null;uniqueIndex:unique_payment_attempt_order_ref" json:"order_ref"`
	ReaderID string `gorm:"column:reader_id;type:varchar(128);not null" json:"reader_id"`

	// AmountMinor is in the currency's smallest unit.
	AmountMinor int64               `gorm:"column:amount_minor;type:bigint;not null" json:"amount_minor"`
	Currency    string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status      types.AttemptStatus `gorm:"column:status;type:varchar(32);not null;index:idx_payment_attempt_status_created,priority:1" json:"status"`

	TransactionID       *string `gorm:"column:transaction_id;type:varchar(128);index:idx_payment_attempt_transaction_id" json:"transaction_id"`
	ClientTransactionID *string `gorm:"column:client_transaction_id;type:varchar(128);index:idx_payment_attempt_client_transaction_id" json:"client_transaction_id"`
	Scheme              *string `gorm:"column:scheme;type:varchar(64)" json:"scheme"`
	Last4               *string `gorm:"column:last4;type:varchar(8)" json:"last4"`
	ApprovalCode        *string `gorm:"column:approval_code;type:varchar(64)" json:"approval_code"`
	Message             *string `gorm:"column:message;type:varchar(512)" json:"message"`

	// Snapshots are captured at checkout; the client clears its cart before the order is built.
	CartSnapshot     datatypes.JSON `gorm:"column:cart_snapshot;type:jsonb" json:"cart_snapshot"`
	CustomerSnapshot datatypes.JSON `gorm:"column:customer_snapshot;type:jsonb" json:"customer_snapshot"`

	ShopifyOrderID *string `gorm:"column:shopify_order_id;type:varchar(128)" json:"shopify_order_id"`

	// OrderClaimedAt marks an in-flight order creation; cleared again when creation fails.
	OrderClaimedAt            *time.Time `gorm:"column:order_claimed_at" json:"order_claimed_at"`
	TerminalWebhookNotifiedAt *time.Time `gorm:"column:terminal_webhook_notified_at" json:"terminal_webhook_notified_at"`

	CreatedAt time.Time `gorm:"column:created_at;index:idx_payment_attempt_status_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempt"
}

// Age is the time elapsed since the attempt was created.
func (a *PaymentAttempt) Age(now time.Time) time.Duration {
	if a == nil || a.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(a.CreatedAt)
}

// Clone returns a shallow copy that can be mutated without touching a.
func (a *PaymentAttempt) Clone() *PaymentAttempt {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
