package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventStatus string

const (
	WebhookEventStatusHandled      WebhookEventStatus = "handled"
	WebhookEventStatusUnmatched    WebhookEventStatus = "unmatched"
	WebhookEventStatusHandleFailed WebhookEventStatus = "handle_failed"
)

// WebhookEvent is the append-only audit record of an inbound processor webhook.
type WebhookEvent struct {
	ID         string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProviderID string  `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	EventID    string  `gorm:"column:event_id;type:varchar(128)" json:"event_id"`
	EventType  string  `gorm:"column:event_type;type:varchar(128)" json:"event_type"`
	TraceID    string  `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OrderRef   *string `gorm:"column:order_ref;type:varchar(128);index" json:"order_ref"`

	// SignatureVerified is false when verification was skipped because no secret is configured.
	SignatureVerified bool               `gorm:"column:signature_verified;not null" json:"signature_verified"`
	Payload           datatypes.JSON     `gorm:"column:payload;type:jsonb" json:"payload"`
	Result            *datatypes.JSON    `gorm:"column:result;type:jsonb" json:"result"`
	Status            WebhookEventStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	ReceivedAt        time.Time          `gorm:"column:received_at;not null" json:"received_at"`
	CreatedAt         time.Time          `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
