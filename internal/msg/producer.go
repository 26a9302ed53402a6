package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// HeaderEventID carries a message's event id so consumers can dedupe
// without decoding the payload
const HeaderEventID = "event_id"

const produceTimeout = 5 * time.Second

// Message is one record to produce
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	EventID string
}

// Producer wraps a Kafka producer
type Producer struct {
	client   *kgo.Client
	logger   *zap.Logger
	produced atomic.Int64
	failed   atomic.Int64
	stop     chan struct{}
}

// NewProducer creates a producer that waits for all in-sync replicas
func NewProducer(brokers []string, logger *zap.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		logger: logger,
		stop:   make(chan struct{}),
	}

	logger.Info("producer initialized", zap.Strings("brokers", brokers))
	go p.logStats()
	return p, nil
}

// ProduceJSON marshals v and produces it to topic
func (p *Producer) ProduceJSON(ctx context.Context, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = p.Produce(ctx, Message{Topic: topic, Key: key, Value: data})
	return err
}

// Produce sends msgs synchronously and returns how many of them, counted
// from the first, were acknowledged before the first failure
func (p *Producer) Produce(ctx context.Context, msgs ...Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	records := make([]*kgo.Record, len(msgs))
	for i, m := range msgs {
		records[i] = &kgo.Record{Topic: m.Topic, Key: []byte(m.Key), Value: m.Value}
		if m.EventID != "" {
			records[i].Headers = []kgo.RecordHeader{{Key: HeaderEventID, Value: []byte(m.EventID)}}
		}
	}

	produceCtx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()

	results := p.client.ProduceSync(produceCtx, records...)
	for i, r := range results {
		if r.Err != nil {
			p.produced.Add(int64(i))
			p.failed.Add(int64(len(results) - i))
			return i, fmt.Errorf("failed to produce to %s: %w", r.Record.Topic, r.Err)
		}
	}

	p.produced.Add(int64(len(results)))
	return len(results), nil
}

// Close stops the stats loop and flushes the client
func (p *Producer) Close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	if p.client != nil {
		p.client.Close()
	}
}

func (p *Producer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.logger.Info("producer stats",
				zap.Int64("produced", p.produced.Load()),
				zap.Int64("errors", p.failed.Load()),
			)
		}
	}
}
