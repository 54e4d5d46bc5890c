package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/pkg/metrics"
)

// QueueCapacity is the bounded work queue size.
const QueueCapacity = 1000

// DrainBatchSize is the maximum number of queued events a single consumer
// tick drains.
const DrainBatchSize = 50

// RingBufferCapacity bounds the dashboard snapshot ring, grounded on
// realtime_analytics_dashboard.py's deque(maxlen=100).
const RingBufferCapacity = 100

// Handler receives a dispatched event. Handler errors are logged and never
// propagate to the bus or to other handlers.
type Handler func(ctx context.Context, evt Event)

// Bus is a bounded, single-consumer, priority-aware publish/subscribe event
// bus. Naming follows system/core/bus.go's Subscribe/Publish shape;
// internals are a bounded channel + ticker-driven consumer instead of
// synchronous concurrent fan-out, trading blocking producers for
// backpressure (drop-and-count).
type Bus struct {
	log *logrus.Entry

	queue chan Event

	mu   sync.RWMutex
	subs map[string][]Handler

	ringMu sync.Mutex
	ring   []Event

	droppedMu sync.Mutex
	dropped   int64

	lastEventMu sync.RWMutex
	lastEventAt time.Time

	tickInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewBus constructs a Bus. Call Start to launch the consumer loop.
func NewBus(tickInterval time.Duration, log *logrus.Entry) *Bus {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Bus{
		log:          log,
		queue:        make(chan Event, QueueCapacity),
		subs:         make(map[string][]Handler),
		tickInterval: tickInterval,
	}
}

// Subscribe registers a handler for a component identity. Every dispatched
// event is offered to every subscriber, fanning out to per-component
// subscribers; filtering by component/kind is left to the Handler itself.
func (b *Bus) Subscribe(component string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[component] = append(b.subs[component], h)
}

// Publish enqueues evt for asynchronous dispatch, unless its Priority is at
// or above HighPriorityThreshold, in which case it is dispatched
// synchronously before Publish returns. When the queue is full the event is
// dropped and a counter incremented; Publish never blocks.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if evt.Priority >= HighPriorityThreshold {
		b.dispatch(ctx, evt)
		return
	}

	select {
	case b.queue <- evt:
	default:
		b.droppedMu.Lock()
		b.dropped++
		b.droppedMu.Unlock()
		metrics.RecordEventDropped(string(evt.Kind))
	}
}

// Start launches the single consumer goroutine.
func (b *Bus) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.consume(runCtx)
}

// Stop halts the consumer loop and waits for it to exit.
func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Bus) consume(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.drainRemaining(ctx)
			return
		case <-ticker.C:
			b.drainBatch(ctx)
		}
	}
}

func (b *Bus) drainBatch(ctx context.Context) {
	for i := 0; i < DrainBatchSize; i++ {
		select {
		case evt := <-b.queue:
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) drainRemaining(ctx context.Context) {
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.appendRing(evt)

	b.lastEventMu.Lock()
	b.lastEventAt = evt.Timestamp
	b.lastEventMu.Unlock()

	metrics.RecordEventPublished(string(evt.Kind))

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs)*2)
	for _, hs := range b.subs {
		handlers = append(handlers, hs...)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invokeSafely(ctx, h, evt)
	}
}

// invokeSafely contains a panicking or erroring subscriber so it never
// affects other subscribers or the consumer loop.
func (b *Bus) invokeSafely(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.WithField("event_kind", evt.Kind).Errorf("analytics: subscriber panicked: %v", r)
		}
	}()
	h(ctx, evt)
}

func (b *Bus) appendRing(evt Event) {
	b.ringMu.Lock()
	defer b.ringMu.Unlock()
	b.ring = append(b.ring, evt)
	if len(b.ring) > RingBufferCapacity {
		b.ring = b.ring[len(b.ring)-RingBufferCapacity:]
	}
}

// RecentEvents returns a copy of the dashboard ring buffer, most recent last.
func (b *Bus) RecentEvents() []Event {
	b.ringMu.Lock()
	defer b.ringMu.Unlock()
	return append([]Event(nil), b.ring...)
}

// DroppedCount returns the number of events dropped due to a full queue.
func (b *Bus) DroppedCount() int64 {
	b.droppedMu.Lock()
	defer b.droppedMu.Unlock()
	return b.dropped
}

// LastEventAt returns the timestamp of the most recently dispatched event,
// used by recovery.TradingEngineStuckProbe to detect a stalled pipeline.
func (b *Bus) LastEventAt() time.Time {
	b.lastEventMu.RLock()
	defer b.lastEventMu.RUnlock()
	return b.lastEventAt
}
