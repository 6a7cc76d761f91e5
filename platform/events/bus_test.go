package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct{ BaseEvent }

func (pingEvent) EventName() string { return "test.ping" }

func TestInMemoryBusPublishDeliversToEverySubscriber(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pingEvent{NewBaseEvent()})
	bus.Wait()

	assert.Equal(t, int32(3), calls.Load())
}

func TestInMemoryBusPublishSyncStopsAtFirstError(t *testing.T) {
	bus := NewInMemoryBus(nil)
	boom := errors.New("boom")
	var second bool
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return boom }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { second = true; return nil }))

	err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()})

	require.ErrorIs(t, err, boom)
	assert.False(t, second)
}

func TestInMemoryBusAsyncHandlerSurvivesCancelledPublisher(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var ctxErr atomic.Value
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{NewBaseEvent()})
	bus.Wait()

	assert.Equal(t, true, ctxErr.Load())
}
