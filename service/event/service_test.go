package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTransition struct {
	From string
	To   string
}

func collect[T any](t *testing.T, ch chan *Event[T], count int) []*Event[T] {
	var ret []*Event[T]
	for i := 0; i < count; i++ {
		select {
		case e := <-ch:
			ret = append(ret, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	return ret
}

func TestService_TypedListener(t *testing.T) {
	srv := New()
	defer srv.Close()
	ctx := context.Background()

	received := make(chan *Event[testTransition], 10)
	SetListenerOf[testTransition](srv, func(e *Event[testTransition]) {
		received <- e
	})

	publisher := PublisherOf[testTransition](srv)
	assert.Same(t, publisher, PublisherOf[testTransition](srv))

	err := publisher.Publish(ctx, NewEvent(&Context{SessionID: 7, EventType: TypeTransition}, testTransition{From: "starting", To: "running"}))
	require.NoError(t, err)

	events := collect(t, received, 1)
	assert.EqualValues(t, 7, events[0].Context.SessionID)
	assert.Equal(t, "running", events[0].Data.To)
	assert.NotEmpty(t, events[0].ID)
}

func TestService_CatchAllListener(t *testing.T) {
	srv := New()
	defer srv.Close()
	ctx := context.Background()

	received := make(chan *Event[any], 10)
	srv.SetListener(func(e *Event[any]) {
		received <- e
	})

	publisher := PublisherOf[testTransition](srv)
	require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{SessionID: 1}, testTransition{To: "running"})))
	require.NoError(t, publisher.Publish(ctx, NewEvent(&Context{SessionID: 1}, testTransition{To: "stopped"})))

	events := collect(t, received, 2)
	assert.Equal(t, "running", events[0].Data.(testTransition).To)
	assert.Equal(t, "stopped", events[1].Data.(testTransition).To)
}

func TestService_PublishWithoutListener(t *testing.T) {
	srv := New()
	defer srv.Close()
	publisher := PublisherOf[testTransition](srv)

	// more than the queue buffer: publishing must never block without a listener
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = publisher.Publish(context.Background(), NewEvent(&Context{}, testTransition{}))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked without listener")
	}
}

func TestService_ReplaceListener(t *testing.T) {
	srv := New()
	defer srv.Close()
	var mu sync.Mutex
	var first, second int
	SetListenerOf[testTransition](srv, func(e *Event[testTransition]) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	received := make(chan *Event[testTransition], 1)
	SetListenerOf[testTransition](srv, func(e *Event[testTransition]) {
		mu.Lock()
		second++
		mu.Unlock()
		received <- e
	})
	require.NoError(t, PublisherOf[testTransition](srv).Publish(context.Background(), NewEvent(&Context{}, testTransition{})))
	collect(t, received, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}
