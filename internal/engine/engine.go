// Package engine runs one instrument's order book behind the Kafka
// command stream: it is the book's single writer and hands consistent
// snapshots to concurrent readers.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ismaiel54/limit-order-book/internal/chaos"
	"github.com/ismaiel54/limit-order-book/internal/metrics"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"github.com/ismaiel54/limit-order-book/internal/orderbook"
	"github.com/ismaiel54/limit-order-book/internal/outbox"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Journal guards against redelivery and queues outgoing events
type Journal interface {
	IsProcessed(ctx context.Context, commandEventID string) (bool, error)
	Commit(ctx context.Context, outcome outbox.Outcome, events []outbox.OutboxEvent) error
}

// Result describes what happened to one command message
type Result struct {
	Status  string
	Reason  string
	Seq     uint64
	Skipped bool // already processed; the book was not touched
}

// pendingCommit is an applied command whose journal commit has not succeeded yet
type pendingCommit struct {
	msg     msg.OrderCmdMsg
	result  Result
	outcome outbox.Outcome
	events  []outbox.OutboxEvent
}

// Engine owns one OrderBook. Apply and HandleRecord must be called from a
// single goroutine; TopOfBook and Depth are safe to call from any.
type Engine struct {
	mu   sync.RWMutex
	book *orderbook.OrderBook
	seq  uint64

	tick    decimal.Decimal
	journal Journal
	chaos   *chaos.Chaos
	logger  *zap.Logger
	now     func() time.Time

	// applied to the book but not yet journaled, keyed by command event id
	pending map[string]pendingCommit
	// wait between journal attempts while a pending command blocks the stream
	retryBackoff time.Duration
}

// New creates an engine serving symbol
func New(symbol string, tick decimal.Decimal, journal Journal, ch *chaos.Chaos, logger *zap.Logger) *Engine {
	return &Engine{
		book:    orderbook.NewOrderBook(symbol),
		tick:    tick,
		journal: journal,
		chaos:   ch,
		logger:  logger,
		now:     time.Now,
		pending: make(map[string]pendingCommit),

		retryBackoff: 100 * time.Millisecond,
	}
}

// Symbol returns the instrument served by this engine
func (e *Engine) Symbol() string {
	return e.book.Symbol()
}

// HandleRecord is the consumer handler for orders.commands.
// Returning an error makes the consumer retry the record. While a command
// sits applied but unjournaled, HandleRecord keeps retrying on its own until
// the journal accepts it or ctx ends, so the consumer never moves past it.
func (e *Engine) HandleRecord(ctx context.Context, rec msg.Record) error {
	var m msg.OrderCmdMsg
	if err := json.Unmarshal(rec.Value, &m); err != nil {
		// retrying cannot fix the payload
		metrics.CommandsTotal.WithLabelValues("UNKNOWN", msg.StatusRejected).Inc()
		e.logger.Error("dropping undecodable command",
			zap.String("topic", rec.Topic),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
			zap.Error(err),
		)
		return nil
	}

	if err := e.chaos.Before(ctx, chaosTarget(m)); err != nil {
		return err
	}

	backoff := e.retryBackoff
	for {
		_, err := e.Apply(ctx, m)
		if err == nil || len(e.pending) == 0 {
			return err
		}

		e.logger.Warn("journal unavailable with commands pending, retrying",
			zap.String("event_id", m.EventID),
			zap.Int("pending", len(e.pending)),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

// Apply runs one command message against the book and journals the outcome.
// Book rejections are outcomes, not errors; an error means the journal
// could not be reached and the same message should be retried.
func (e *Engine) Apply(ctx context.Context, m msg.OrderCmdMsg) (Result, error) {
	start := e.now()

	if m.EventID == "" {
		metrics.CommandsTotal.WithLabelValues(commandLabel(m.Command), msg.StatusRejected).Inc()
		e.logger.Error("dropping command without event_id", zap.Int64("order_id", m.OrderID))
		return Result{Status: msg.StatusRejected, Reason: "missing event_id"}, nil
	}

	// a retry of a command that reached the book but not the journal
	if p, ok := e.pending[m.EventID]; ok {
		if err := e.flushPending(ctx, start); err != nil {
			return Result{}, err
		}
		return p.result, nil
	}

	// nothing new touches the book until every earlier outcome is journaled
	if err := e.flushPending(ctx, start); err != nil {
		return Result{}, err
	}

	seen, err := e.journal.IsProcessed(ctx, m.EventID)
	if err != nil {
		return Result{}, err
	}
	if seen {
		metrics.RedeliveriesSkipped.Inc()
		e.logger.Info("duplicate command event, skipping",
			zap.String("event_id", m.EventID),
			zap.Int64("order_id", m.OrderID),
		)
		return Result{Skipped: true}, nil
	}

	p := e.apply(m)
	e.pending[m.EventID] = p
	return e.commit(ctx, p, start)
}

// flushPending journals applied commands in seq order and stops at the first failure
func (e *Engine) flushPending(ctx context.Context, start time.Time) error {
	if len(e.pending) == 0 {
		return nil
	}

	ordered := make([]pendingCommit, 0, len(e.pending))
	for _, p := range e.pending {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].result.Seq < ordered[j].result.Seq
	})

	for _, p := range ordered {
		if _, err := e.commit(ctx, p, start); err != nil {
			return err
		}
	}
	return nil
}

// apply mutates the book and builds the events describing the result
func (e *Engine) apply(m msg.OrderCmdMsg) pendingCommit {
	e.mu.Lock()
	defer e.mu.Unlock()

	status, reason := msg.StatusAccepted, "accepted"
	if err := e.process(m); err != nil {
		status, reason = msg.StatusRejected, err.Error()
	}

	e.seq++
	nowMillis := e.now().UnixMilli()
	result := Result{Status: status, Reason: reason, Seq: e.seq}

	orderEvent := msg.OrderEventMsg{
		EventID:        uuid.New().String(),
		CommandEventID: m.EventID,
		OrderID:        m.OrderID,
		Command:        m.Command,
		Status:         status,
		Reason:         reason,
		Seq:            e.seq,
		TsUnixMillis:   nowMillis,
	}
	top := e.topOfBookLocked()
	top.EventID = uuid.New().String()
	top.TsUnixMillis = nowMillis

	// both topics are keyed by symbol so a book's events share a partition
	return pendingCommit{
		msg:    m,
		result: result,
		outcome: outbox.Outcome{
			CommandEventID: m.EventID,
			OrderID:        m.OrderID,
			Command:        m.Command,
			Status:         status,
			Reason:         reason,
			UnixMillis:     nowMillis,
		},
		events: []outbox.OutboxEvent{
			outboxEvent(orderEvent.EventID, msg.TopicOrdersEvents, top.Symbol, orderEvent, nowMillis),
			outboxEvent(top.EventID, msg.TopicBookTop, top.Symbol, top, nowMillis),
		},
	}
}

func (e *Engine) process(m msg.OrderCmdMsg) error {
	if m.Symbol != e.book.Symbol() {
		return fmt.Errorf("symbol %q is not served by this book (%s)", m.Symbol, e.book.Symbol())
	}

	cmd, err := m.ToCommand(e.tick)
	if err != nil {
		return err
	}
	return e.book.Process(cmd)
}

func (e *Engine) commit(ctx context.Context, p pendingCommit, start time.Time) (Result, error) {
	m := p.msg
	var err error
	if e.chaos.FailCommit(chaosTarget(m)) {
		err = chaos.ErrInjectedCommitFailure
	} else {
		err = e.journal.Commit(ctx, p.outcome, p.events)
	}
	if err != nil && !errors.Is(err, outbox.ErrAlreadyProcessed) {
		e.logger.Warn("failed to journal command outcome",
			zap.String("event_id", m.EventID),
			zap.Uint64("seq", p.result.Seq),
			zap.Error(err),
		)
		return Result{}, err
	}
	delete(e.pending, m.EventID)

	e.observe(m, p.result, start)
	return p.result, nil
}

// observe logs the outcome and refreshes book gauges
func (e *Engine) observe(m msg.OrderCmdMsg, r Result, start time.Time) {
	fields := []zap.Field{
		zap.String("event_id", m.EventID),
		zap.String("kind", m.Command),
		zap.Int64("order_id", m.OrderID),
		zap.String("side", m.Side),
		zap.String("price", m.Price),
		zap.Int64("qty", m.Qty),
		zap.Uint64("seq", r.Seq),
	}
	if r.Status == msg.StatusRejected {
		e.logger.Warn("command rejected", append(fields, zap.String("reason", r.Reason))...)
	} else {
		e.logger.Info("command applied", fields...)
	}

	metrics.CommandsTotal.WithLabelValues(commandLabel(m.Command), r.Status).Inc()
	metrics.CommandLatencyMs.Observe(float64(e.now().Sub(start).Microseconds()) / 1000)

	e.mu.RLock()
	defer e.mu.RUnlock()

	metrics.RestingOrders.Set(float64(e.book.OrderCount()))
	for _, side := range []*orderbook.BookSide{e.book.Bids(), e.book.Asks()} {
		label := side.Side().String()
		metrics.PriceLevels.WithLabelValues(label).Set(float64(side.Len()))
		if best, ok := side.Best(); ok {
			metrics.BestPrice.WithLabelValues(label).Set(float64(best))
		} else {
			metrics.BestPrice.DeleteLabelValues(label)
		}
	}
}

// TopOfBook returns the current best prices; 0 stands in for an empty side
func (e *Engine) TopOfBook() msg.TopOfBookMsg {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.topOfBookLocked()
}

func (e *Engine) topOfBookLocked() msg.TopOfBookMsg {
	bid, hasBid := e.book.BestBid()
	ask, hasAsk := e.book.BestAsk()
	return msg.TopOfBookMsg{
		Symbol:  e.book.Symbol(),
		Seq:     e.seq,
		BestBid: bid,
		HasBid:  hasBid,
		BestAsk: ask,
		HasAsk:  hasAsk,
		Orders:  e.book.OrderCount(),
	}
}

// Depth returns up to n aggregated levels per side
func (e *Engine) Depth(n int) orderbook.Depth {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Depth(n)
}

// Tick returns the price increment used to convert decimal prices
func (e *Engine) Tick() decimal.Decimal {
	return e.tick
}

func outboxEvent(id, topic, key string, payload any, nowMillis int64) outbox.OutboxEvent {
	// the payloads are plain structs; Marshal cannot fail on them
	data, _ := json.Marshal(payload)
	return outbox.OutboxEvent{
		EventID:           id,
		Topic:             topic,
		Key:               key,
		PayloadJSON:       string(data),
		CreatedUnixMillis: nowMillis,
	}
}

func chaosTarget(m msg.OrderCmdMsg) chaos.Target {
	return chaos.Target{Symbol: m.Symbol, Command: m.Command}
}

// commandLabel bounds metric cardinality to the known kinds
func commandLabel(command string) string {
	if kind := orderbook.ParseCommandKind(command); kind != 0 {
		return kind.String()
	}
	return "UNKNOWN"
}
