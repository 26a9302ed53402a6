package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ismaiel54/limit-order-book/internal/msg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "book.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEvents(ids ...string) []OutboxEvent {
	events := make([]OutboxEvent, 0, len(ids))
	for i, id := range ids {
		events = append(events, OutboxEvent{
			EventID:           id,
			Topic:             "orders.events",
			Key:               "1",
			PayloadJSON:       `{"event_id":"` + id + `"}`,
			CreatedUnixMillis: int64(1000 + i),
		})
	}
	return events
}

func TestCommit_RedeliveryGuard(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	outcome := Outcome{CommandEventID: "cmd-1", OrderID: 1, Command: "NEW", Status: "ACCEPTED", Reason: "accepted", UnixMillis: 1000}

	seen, err := store.IsProcessed(ctx, "cmd-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Commit(ctx, outcome, testEvents("evt-1", "top-1")))

	seen, err = store.IsProcessed(ctx, "cmd-1")
	require.NoError(t, err)
	assert.True(t, seen, "committed command must be reported as processed")

	// Second commit of the same command event is refused and queues nothing
	err = store.Commit(ctx, outcome, testEvents("evt-2"))
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	unpublished, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unpublished, 2)
	assert.Equal(t, "evt-1", unpublished[0].EventID)
	assert.Equal(t, "top-1", unpublished[1].EventID)
}

func TestCommit_RollsBackOnDuplicateEventID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, Outcome{CommandEventID: "cmd-1", Command: "NEW", Status: "ACCEPTED"}, testEvents("evt-1")))

	err := store.Commit(ctx, Outcome{CommandEventID: "cmd-2", Command: "NEW", Status: "ACCEPTED"}, testEvents("evt-1"))
	require.Error(t, err)

	seen, err := store.IsProcessed(ctx, "cmd-2")
	require.NoError(t, err)
	assert.False(t, seen, "failed commit must not record the command")
}

func TestMarkPublished(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, Outcome{CommandEventID: "cmd-1", Command: "NEW", Status: "ACCEPTED"}, testEvents("evt-1", "evt-2")))
	require.NoError(t, store.MarkPublished(ctx, 2000, "evt-1"))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	unpublished, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, "evt-2", unpublished[0].EventID)
}

type fakeSender struct {
	sent    []string
	failAt  int // 1-based message that fails; 0 never fails
	count   int
	batches int
}

func (f *fakeSender) Produce(_ context.Context, msgs ...msg.Message) (int, error) {
	f.batches++
	for i, m := range msgs {
		f.count++
		if f.count == f.failAt {
			return i, errors.New("broker unavailable")
		}
		f.sent = append(f.sent, string(m.Value))
	}
	return len(msgs), nil
}

func TestPublisher_PublishBatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, Outcome{CommandEventID: "cmd-1", Command: "NEW", Status: "ACCEPTED"}, testEvents("a", "b", "c")))

	sender := &fakeSender{failAt: 2}
	p := NewPublisher(store, sender, time.Millisecond, 10, zap.NewNop())

	n, err := p.PublishBatch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped at event b")
	assert.Equal(t, 1, n, "batch stops at the first failure")

	n, err = p.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{`{"event_id":"a"}`, `{"event_id":"b"}`, `{"event_id":"c"}`}, sender.sent)

	n, err = p.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, sender.batches, "an empty outbox sends nothing")
}

func TestPublisher_RunDrainsFullBatches(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		outcome := Outcome{CommandEventID: "cmd-" + id, Command: "NEW", Status: "ACCEPTED", UnixMillis: int64(i)}
		require.NoError(t, store.Commit(ctx, outcome, testEvents(id)))
	}

	sender := &fakeSender{}
	p := NewPublisher(store, sender, time.Millisecond, 2, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		pending, err := store.Pending(context.Background())
		return err == nil && pending == 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, sender.sent, 5)
}
