package stats

import (
	"sync"
	"time"

	"ixurl.local/internal/platform/metrics"
)

// BuildEvent records one URL handed out by the API.
type BuildEvent struct {
	Source  string    `json:"source"` // "" for the default builder
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Signed  bool      `json:"signed"`
	BuiltAt time.Time `json:"built_at"`
	IP      string    `json:"ip"`
}

// Collector accepts events without blocking the request path.
type Collector interface {
	Collect(event BuildEvent)
	Close()
}

// ChannelCollector buffers events in memory for a Consumer in the same process.
// Events arriving while the buffer is full are dropped.
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan BuildEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch: make(chan BuildEvent, bufferSize),
	}
}

func (c *ChannelCollector) Collect(event BuildEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		metrics.StatsEventsDropped.Inc()
	}
}

func (c *ChannelCollector) Events() <-chan BuildEvent {
	return c.ch
}

// Close is idempotent. Buffered events stay readable from Events.
func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Discard drops every event. Used when stats are not wired.
type Discard struct{}

func (Discard) Collect(BuildEvent) {}
func (Discard) Close() {}
