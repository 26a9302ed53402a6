package msg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConsumer() *Consumer {
	return &Consumer{
		logger:     zap.NewNop(),
		maxRetries: 3,
		backoff:    time.Millisecond,
		stop:       make(chan struct{}),
	}
}

func TestHandleWithRetry_SucceedsAfterFailures(t *testing.T) {
	c := newTestConsumer()

	calls := 0
	err := c.handleWithRetry(context.Background(), Record{Topic: TopicOrdersCommands}, func(context.Context, Record) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetry_GivesUp(t *testing.T) {
	c := newTestConsumer()
	boom := errors.New("boom")

	calls := 0
	err := c.handleWithRetry(context.Background(), Record{}, func(context.Context, Record) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetry_StopsOnCancel(t *testing.T) {
	c := newTestConsumer()
	c.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.handleWithRetry(ctx, Record{}, func(context.Context, Record) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
