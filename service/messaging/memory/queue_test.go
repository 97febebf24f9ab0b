package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tapedeck/service/messaging"
)

type TestPayload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	payload := TestPayload{ID: "test-1", Count: 1}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.NotEmpty(t, message.ID())
	assert.Equal(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	// double ack
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueueNack(t *testing.T) {
	testCases := []struct {
		name        string
		deadLetter  bool
		expectedDLQ int
	}{
		{name: "dead letter", deadLetter: true, expectedDLQ: 1},
		{name: "dropped", deadLetter: false, expectedDLQ: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			queue := NewQueue[TestPayload](Config{DeadLetter: tc.deadLetter})
			ctx := context.Background()
			require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "nack"}))
			message, err := queue.Consume(ctx)
			require.NoError(t, err)
			cause := errors.New("handler panicked")
			assert.NoError(t, message.Nack(cause))
			assert.Equal(t, tc.expectedDLQ, queue.DLQSize())
			assert.Equal(t, cause, message.(*Message[TestPayload]).Err())
			// never redelivered
			assert.Equal(t, 0, queue.Size())
		})
	}
}

func TestQueueClose(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "pending"}))
	assert.NoError(t, queue.Close())
	assert.NoError(t, queue.Close())

	err := queue.Publish(ctx, &TestPayload{ID: "late"})
	assert.True(t, errors.Is(err, messaging.ErrClosed))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pending", message.T().ID)

	_, err = queue.Consume(ctx)
	assert.True(t, errors.Is(err, messaging.ErrClosed))
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	producers := 10
	messagesPerProducer := 10

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for j := 0; j < messagesPerProducer; j++ {
				payload := TestPayload{ID: fmt.Sprintf("p%d-m%d", producerID, j), Count: j}
				if err := queue.Publish(ctx, &payload); err != nil {
					t.Errorf("Error publishing: %v", err)
				}
			}
		}(i)
	}

	// single consumer, as used by the registry control loop
	consumed := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(consumed) < producers*messagesPerProducer {
			message, err := queue.Consume(ctx)
			if err != nil {
				t.Errorf("Error consuming: %v", err)
				return
			}
			consumed[message.T().ID] = true
			_ = message.Ack()
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out")
	}
	assert.Equal(t, producers*messagesPerProducer, len(consumed))
	assert.Equal(t, 0, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	payload := TestPayload{ID: "test"}
	assert.Error(t, queue.Publish(ctx, &payload))

	ctxWithTimeout, cancelTimeout := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(ctxWithTimeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// still usable after cancellation
	assert.NoError(t, queue.Publish(context.Background(), &payload))
	message, err := queue.Consume(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
