package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/pkg/config"
)

// PaymentFinalized is published once per attempt when it leaves PENDING.
type PaymentFinalized struct {
	AttemptID      string    `json:"attemptId"`
	OrderRef       string    `json:"orderRef"`
	Status         string    `json:"status"`
	AmountMinor    int64     `json:"amountMinor"`
	Currency       string    `json:"currency"`
	ReaderID       string    `json:"readerId"`
	TransactionID  *string   `json:"transactionId"`
	ShopifyOrderID *string   `json:"shopifyOrderId"`
	Source         string    `json:"source"`
	FinalizedAt    time.Time `json:"finalizedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

const (
	maxAttempts = 3
	baseDelay   = 100 * time.Millisecond
)

// Publisher writes payment events keyed by orderRef. With no brokers
// configured it drops events.
type Publisher struct {
	writer messageWriter
	topic  string
	log    *zap.SugaredLogger
}

func NewPublisher(cfg *config.Config, log *zap.SugaredLogger) *Publisher {
	p := &Publisher{topic: cfg.Kafka.Topic, log: log}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Infow("kafka_publisher_disabled", "reason", "kafka.brokers is empty")
		return p
	}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	log.Infow("kafka_publisher_initialized", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return p
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

func (p *Publisher) PublishFinalized(ctx context.Context, event *PaymentFinalized) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}
	msg := kafkago.Message{Key: []byte(event.OrderRef), Value: data}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-time.After(baseDelay << attempt):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
	return fmt.Errorf("failed to publish to topic '%s' after %d attempts: %w", p.topic, maxAttempts, lastErr)
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

func registerClose(lc fx.Lifecycle, p *Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
	fx.Invoke(registerClose),
)
