package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("initial state is closed", func(t *testing.T) {
		assert.False(t, client.isCircuitOpen())
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		assert.False(t, client.isCircuitOpen())
		assert.Equal(t, int64(0), atomic.LoadInt64(&client.failureCount))
		assert.Equal(t, StateClosed, atomic.LoadInt32(&client.state))
	})

	t.Run("max failures open the circuit", func(t *testing.T) {
		client.recordSuccess()
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		assert.True(t, client.isCircuitOpen())
		assert.Equal(t, StateOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		assert.False(t, client.isCircuitOpen())
		assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateHalfOpen)
		atomic.StoreInt64(&client.failureCount, 0)
		client.recordFailure()
		assert.Equal(t, StateOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("stays open within timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()
		assert.True(t, client.isCircuitOpen())
	})
}

func TestClient_PublishEntrySync_Guards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("fails fast when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishEntrySync(context.Background(), "abc")
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishEntrySync(ctx, "abc")
		assert.Equal(t, context.Canceled, err)
	})
}

func TestEntrySyncMessageJSON(t *testing.T) {
	msg := NewEntrySyncMessage("e-1")
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	data, err := msg.ToJSON()
	require.NoError(t, err)

	parsed, err := EntrySyncMessageFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "e-1", parsed.EntryID)
	assert.True(t, parsed.Timestamp.Equal(msg.Timestamp))

	_, err = EntrySyncMessageFromJSON([]byte(`{"entry_id": 5}`))
	assert.Error(t, err)
	_, err = EntrySyncMessageFromJSON([]byte(`{"timestamp": "2024-01-01T00:00:00Z"}`))
	assert.Error(t, err)
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	body, err := NewEntrySyncMessage("e-1").ToJSON()
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		var got string
		ack := &fakeAck{}
		dispatch(ctx, body, ack, func(_ context.Context, m *EntrySyncMessage) error {
			got = m.EntryID
			return nil
		})
		assert.Equal(t, "e-1", got)
		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
	})

	t.Run("requeue on handler error", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, body, ack, func(context.Context, *EntrySyncMessage) error { return assert.AnError })
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("drop undecodable", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		dispatch(ctx, []byte("not json"), ack, func(context.Context, *EntrySyncMessage) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}

func TestConsumeWithRetryResetsBackoffAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []int
	backoff := func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}
	sessions := 0
	err := consumeWithRetry(ctx, backoff, func(ctx context.Context, started func()) error {
		sessions++
		switch sessions {
		case 1, 2:
			return fmt.Errorf("dial: %w", amqp091.ErrClosed)
		case 3:
			started()
			return errDeliveriesClosed
		case 4:
			return errDeliveriesClosed
		default:
			cancel()
			return ctx.Err()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{0, 1, 0, 1}, waits, "a session that started consuming restarts the backoff")
}

func TestConsumeWithRetryStopsOnOtherErrors(t *testing.T) {
	called := false
	err := consumeWithRetry(context.Background(), func(int) time.Duration {
		called = true
		return 0
	}, func(context.Context, func()) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, called)
}
