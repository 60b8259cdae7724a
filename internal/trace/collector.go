package trace

import (
	"sync"

	"github.com/google/uuid"
)

// Collector accumulates proxy events into a bounded buffer and fans them
// out to subscribers (the debug terminal). Adding is cheap and never
// blocks the call path: full subscriber channels drop events.
type Collector struct {
	mu      sync.Mutex
	session string
	events  []*Event
	max     int
	subs    []chan *Event
}

// NewCollector creates a collector keeping at most max events.
func NewCollector(max int) *Collector {
	if max <= 0 {
		max = 4096
	}
	return &Collector{
		session: uuid.NewString(),
		max:     max,
	}
}

// Session returns the collector's process-unique session ID.
func (c *Collector) Session() string {
	return c.session
}

// Add records an event and offers it to every subscriber.
func (c *Collector) Add(e *Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	if len(c.events) > c.max {
		c.events = c.events[len(c.events)-c.max:]
	}
	subs := c.subs
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Snapshot returns a copy of the buffered events.
func (c *Collector) Snapshot() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of buffered events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Subscribe returns a channel receiving future events.
func (c *Collector) Subscribe() <-chan *Event {
	ch := make(chan *Event, 256)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}
