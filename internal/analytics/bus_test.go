package analytics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDispatchesQueuedEventsOnTick(t *testing.T) {
	bus := NewBus(10*time.Millisecond, nil)
	var received int32
	bus.Subscribe("test", func(ctx context.Context, evt Event) {
		atomic.AddInt32(&received, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	defer func() { cancel(); bus.Stop() }()

	bus.Publish(context.Background(), Event{Kind: EventSystemStatus, Priority: 1})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&received) == 1 }, time.Second, 5*time.Millisecond)
}

func TestBusHighPriorityBypassesQueue(t *testing.T) {
	bus := NewBus(time.Hour, nil)
	var received int32
	bus.Subscribe("test", func(ctx context.Context, evt Event) {
		atomic.AddInt32(&received, 1)
	})

	bus.Publish(context.Background(), Event{Kind: EventSignalGenerated, Priority: HighPriorityThreshold})
	require.EqualValues(t, 1, atomic.LoadInt32(&received), "priority>=8 event must dispatch synchronously")
}

func TestBusDropsOnFullQueue(t *testing.T) {
	bus := NewBus(time.Hour, nil)
	for i := 0; i < QueueCapacity+10; i++ {
		bus.Publish(context.Background(), Event{Kind: EventSystemStatus, Priority: 1})
	}
	require.Greater(t, bus.DroppedCount(), int64(0))
}

func TestBusRingBufferBounded(t *testing.T) {
	bus := NewBus(time.Hour, nil)
	for i := 0; i < RingBufferCapacity+20; i++ {
		bus.dispatch(context.Background(), Event{Kind: EventSystemStatus, Priority: 1})
	}
	require.Len(t, bus.RecentEvents(), RingBufferCapacity)
}
