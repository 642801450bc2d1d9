package webhook_log

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/tool"
)

const saveTimeout = 5 * time.Second

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook audit record. Nil input is ignored.
// The returned channel is closed once the write has finished.
func (s *Service) Save(ctx context.Context, event *models.WebhookEvent) <-chan struct{} {
	done := make(chan struct{})
	if event == nil {
		close(done)
		return done
	}
	if event.ID == "" {
		event.ID = tool.GenerateUUIDV7()
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("webhook_event_save_failed", "event_id", event.EventID, "error", err)
		}
	}()
	return done
}

// ListByOrderRef returns the audit records for one attempt, newest first.
func (s *Service) ListByOrderRef(ctx context.Context, orderRef string, limit int) ([]*models.WebhookEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var events []*models.WebhookEvent
	err := s.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("received_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
