package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

type collectSink struct {
	mu     sync.Mutex
	name   string
	events []models.Event
	block  chan struct{}
}

func (c *collectSink) Name() string { return c.name }

func (c *collectSink) Publish(evt models.Event) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *collectSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBrokerDeliversInOrder(t *testing.T) {
	broker := NewBroker(8, nil)
	sink := &collectSink{name: "a"}
	broker.AddSink(sink)

	for _, eventType := range []models.EventType{
		models.EventServiceDiscovered,
		models.EventIncidentDetected,
		models.EventActionTaken,
	} {
		broker.Publish(models.Event{Type: eventType, ServiceID: "svc-1"})
	}
	broker.Close()

	if sink.count() != 3 {
		t.Fatalf("delivered %d events, want 3", sink.count())
	}
	if sink.events[0].Type != models.EventServiceDiscovered || sink.events[2].Type != models.EventActionTaken {
		t.Fatalf("order lost: %v", sink.events)
	}
	if sink.events[0].Time.IsZero() {
		t.Fatal("publish must stamp the event time")
	}
}

func TestBrokerDropsForSlowSink(t *testing.T) {
	broker := NewBroker(2, nil)
	slow := &collectSink{name: "slow", block: make(chan struct{})}
	broker.AddSink(slow)

	// One event is consumed by the blocked drain goroutine, two fill the
	// buffer; everything beyond that must drop without blocking Publish.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			broker.Publish(models.Event{Type: models.EventIncidentDetected})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow sink")
	}

	close(slow.block)
	broker.Close()

	if got := slow.count(); got > 3 {
		t.Fatalf("slow sink received %d events, expected at most 3", got)
	}
}

func TestBrokerSinksAreIndependent(t *testing.T) {
	broker := NewBroker(4, nil)
	blocked := &collectSink{name: "blocked", block: make(chan struct{})}
	healthy := &collectSink{name: "healthy"}
	broker.AddSink(blocked)
	broker.AddSink(healthy)

	for i := 0; i < 4; i++ {
		broker.Publish(models.Event{Type: models.EventActionSuccess})
	}

	deadline := time.Now().Add(time.Second)
	for healthy.count() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("healthy sink starved by blocked sibling: %d events", healthy.count())
		}
		time.Sleep(time.Millisecond)
	}

	close(blocked.block)
	broker.Close()
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	broker := NewBroker(4, nil)
	sink := &collectSink{name: "a"}
	broker.AddSink(sink)
	broker.Close()

	broker.Publish(models.Event{Type: models.EventActionFailed})
	if sink.count() != 0 {
		t.Fatalf("event delivered after close: %d", sink.count())
	}
}
