package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempoolScope/internal/observability"
)

func blockEvent(number uint64) Event {
	return NewBlockEvent(block(number, 0, 2, 1))
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(8, nil)
	a := bus.Subscribe()
	b := bus.Subscribe()

	for i := uint64(1); i <= 3; i++ {
		bus.Publish(blockEvent(i))
	}

	ctx := context.Background()
	for _, sub := range []*Subscriber{a, b} {
		for i := uint64(1); i <= 3; i++ {
			ev, err := sub.Recv(ctx)
			require.NoError(t, err)
			assert.Equal(t, i, ev.Block.Number)
		}
	}
}

func TestBusSubscriberStartsAtHead(t *testing.T) {
	bus := NewBus(8, nil)
	early := bus.Subscribe()
	bus.Publish(blockEvent(1))

	late := bus.Subscribe()
	bus.Publish(blockEvent(2))

	ev, err := late.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Block.Number)

	ev, err = early.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Block.Number)
}

func TestBusLag(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	bus := NewBus(DefaultBusCapacity, metrics)
	sub := bus.Subscribe()

	for i := uint64(1); i <= DefaultBusCapacity+1; i++ {
		bus.Publish(blockEvent(i))
	}
	assert.Equal(t, float64(DefaultBusCapacity+1), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("block")))

	_, err := sub.Recv(context.Background())
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	assert.Equal(t, uint64(1), lagged.Skipped)

	ev, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Block.Number)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(2, nil)
	for i := uint64(1); i <= 10; i++ {
		bus.Publish(blockEvent(i))
	}

	sub := bus.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBusRecvWakesOnPublish(t *testing.T) {
	bus := NewBus(4, nil)
	sub := bus.Subscribe()

	got := make(chan Event, 1)
	go func() {
		ev, err := sub.Recv(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Publish(blockEvent(7))

	select {
	case ev := <-got:
		assert.Equal(t, uint64(7), ev.Block.Number)
	case <-time.After(time.Second):
		t.Fatal("subscriber was not woken")
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus(4, nil)
	sub := bus.Subscribe()
	bus.Publish(blockEvent(1))
	bus.Close()
	bus.Publish(blockEvent(2))

	ev, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Block.Number)

	_, err = sub.Recv(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestSubscriberClose(t *testing.T) {
	bus := NewBus(4, nil)
	sub := bus.Subscribe()
	sub.Close()
	sub.Close()

	bus.Publish(blockEvent(1))
	_, err := sub.Recv(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
}
