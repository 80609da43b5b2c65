// Package events fans aggregation cycle results out to in-process
// consumers. Publish never blocks: a subscriber whose buffer is full
// loses that result and a drop is counted against its name, so a stalled
// consumer can never stall the engine.
package events

import (
	"log/slog"
	"sync"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

const defaultBuffer = 8

type subscriber struct {
	name string
	ch   chan domain.CycleResult
}

// Bus is an in-process publish/subscribe fan-out of CycleResult.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	closed  bool
	buffer  int
	metrics *metrics.BusMetrics
}

// NewBus creates a bus whose subscriber channels hold up to buffer
// results. buffer <= 0 selects the default.
func NewBus(buffer int, m *metrics.BusMetrics) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:    make(map[int]*subscriber),
		buffer:  buffer,
		metrics: m,
	}
}

// SubscribeNamed registers a consumer under a stable name used for drop
// accounting. The cancel func detaches the subscription and closes the
// channel; it is safe to call more than once.
func (b *Bus) SubscribeNamed(name string) (<-chan domain.CycleResult, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.CycleResult, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{name: name, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Subscribe implements domain.CycleSubscriber.
func (b *Bus) Subscribe() (<-chan domain.CycleResult, func()) {
	return b.SubscribeNamed("anonymous")
}

// PublishCycle implements domain.CyclePublisher.
func (b *Bus) PublishCycle(result domain.CycleResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.metrics != nil {
		b.metrics.EventsPublished.Inc()
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- result:
		default:
			if b.metrics != nil {
				b.metrics.EventsDropped.WithLabelValues(sub.name).Inc()
			}
			slog.Warn("dropping cycle result for slow subscriber",
				"subscriber", sub.name,
				"cycle", result.Seq,
			)
		}
	}
}

// Close detaches every subscriber and closes their channels. Further
// publishes are discarded; Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
