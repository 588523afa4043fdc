// Package notify fans lifecycle events out to registered sinks without ever
// blocking the control loop: a slow or failed sink only loses its own events.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// Sink consumes lifecycle events. Publish is called from a dedicated drain
// goroutine, so sinks may block without stalling the loop.
type Sink interface {
	Name() string
	Publish(evt models.Event)
}

type subscriber struct {
	sink Sink
	ch   chan models.Event
}

// Broker is a bounded-channel publish-subscribe fan-out. Events offered to a
// full subscriber buffer are dropped, never queued unboundedly.
type Broker struct {
	mu     sync.Mutex
	subs   []*subscriber
	buffer int
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewBroker constructs a broker with the given per-sink buffer size.
func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{buffer: buffer, logger: logger}
}

// AddSink registers a sink and starts its drain goroutine.
func (b *Broker) AddSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	sub := &subscriber{sink: sink, ch: make(chan models.Event, b.buffer)}
	b.subs = append(b.subs, sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range sub.ch {
			sub.sink.Publish(evt)
		}
	}()
}

// Publish offers the event to every sink. Fire-and-forget: full buffers drop.
func (b *Broker) Publish(evt models.Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.logger.Debug("event dropped for slow sink",
				slog.String("sink", sub.sink.Name()),
				slog.String("event", string(evt.Type)))
		}
	}
}

// Close stops accepting events and waits for the drain goroutines to finish.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
