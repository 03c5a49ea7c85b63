// Package events delivers transfer-completed messages to downstream
// consumers (audit, notifications). Delivery is best-effort: a publish
// failure is logged and stashed, never surfaced to the transfer itself.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"

	"transaction-engine/internal/config"
	"transaction-engine/internal/domain"
)

// DeadLetter stores events that could not be published so operators can
// replay them.
type DeadLetter interface {
	Stash(ctx context.Context, event domain.TransferEvent) error
}

type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	dlq    DeadLetter
	logger *zap.Logger
}

var _ domain.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg config.Kafka, dlq DeadLetter, metrics *kprom.Metrics, logger *zap.Logger) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientName),
		kgo.WithHooks(metrics),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		client: client,
		topic:  cfg.Topic,
		dlq:    dlq,
		logger: logger,
	}, nil
}

// PublishTransferCompleted produces the event asynchronously. The returned
// error only covers serialization; broker failures are handled in the
// produce callback.
func (p *KafkaPublisher) PublishTransferCompleted(ctx context.Context, event domain.TransferEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.CorrelationID),
		Value: value,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.logger.Error("failed to publish transfer event",
			zap.String("correlation_id", event.CorrelationID),
			zap.String("transfer_id", event.ID.String()),
			zap.Error(err))

		if p.dlq == nil {
			return
		}
		// The request context may be gone by the time the broker answers.
		stashCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stashErr := p.dlq.Stash(stashCtx, event); stashErr != nil {
			p.logger.Error("failed to stash unpublished transfer event",
				zap.String("correlation_id", event.CorrelationID),
				zap.Error(stashErr))
		}
	})
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher drops events. Used when no brokers are configured and in
// tests.
type NopPublisher struct{}

var _ domain.EventPublisher = NopPublisher{}

func (NopPublisher) PublishTransferCompleted(context.Context, domain.TransferEvent) error {
	return nil
}
