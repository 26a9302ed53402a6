package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/ismaiel54/limit-order-book/internal/metrics"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"go.uber.org/zap"
)

// Sender ships messages in order; *msg.Producer satisfies it
type Sender interface {
	Produce(ctx context.Context, msgs ...msg.Message) (int, error)
}

// Publisher drains the outbox to Kafka in insertion order
type Publisher struct {
	store     *Store
	sender    Sender
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewPublisher creates a publisher that polls store every interval
func NewPublisher(store *Store, sender Sender, interval time.Duration, batchSize int, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:     store,
		sender:    sender,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run publishes batches until ctx is done. A full batch is followed
// immediately by the next one; otherwise it waits for the next tick.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for {
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Warn("outbox publish incomplete, retrying next tick", zap.Error(err))
				break
			}
			if n < p.batchSize {
				break
			}
		}
	}
}

// PublishBatch ships up to one batch. Events after the first failure are
// left for the next call so the order within a key is kept.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	events, err := p.store.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]msg.Message, len(events))
	ids := make([]string, len(events))
	for i, e := range events {
		msgs[i] = msg.Message{Topic: e.Topic, Key: e.Key, Value: []byte(e.PayloadJSON), EventID: e.EventID}
		ids[i] = e.EventID
	}

	sent, sendErr := p.sender.Produce(ctx, msgs...)
	if sent > 0 {
		// a failure here re-sends these events later; consumers dedupe on event_id
		if err := p.store.MarkPublished(ctx, p.now().UnixMilli(), ids[:sent]...); err != nil {
			return 0, err
		}
		metrics.OutboxPublished.Add(float64(sent))
		p.logger.Debug("published outbox batch",
			zap.Int("published", sent),
			zap.Int("batch", len(events)),
			zap.String("last_event_id", ids[sent-1]),
		)
	}

	if sendErr != nil {
		metrics.OutboxErrors.Inc()
		return sent, fmt.Errorf("stopped at event %s: %w", ids[sent], sendErr)
	}
	return sent, nil
}
