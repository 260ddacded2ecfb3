package spanz

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is a Sink that buffers finished spans for batch export.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	spans        []Span
	spansCh      chan Span
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	sendMu       sync.RWMutex // Held shared by senders, exclusively by Close.
	closeOnce    sync.Once
	closed       atomic.Bool
	syncMode     atomic.Bool // Bypass channel for synchronous collection.
}

// NewCollector creates a new collector with the specified name and buffer size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:    name,
		spans:   make([]Span, 0, 8),
		spansCh: make(chan Span, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.start()
	return c
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// start moves spans from the channel into the buffer until closed.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining spans before shutdown.
			for {
				select {
				case span := <-c.spansCh:
					c.buffer(span)
				default:
					return
				}
			}
		case span := <-c.spansCh:
			c.buffer(span)
		}
	}
}

// TrySend queues a span without blocking.
// If the channel is full or the collector is closed the span is dropped.
// In sync mode, spans are buffered directly for deterministic testing.
func (c *Collector) TrySend(span Span) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed.Load() {
		c.droppedCount.Add(1)
		return false
	}

	if c.syncMode.Load() {
		c.buffer(span)
		return true
	}

	select {
	case c.spansCh <- span:
		return true
	default:
		c.droppedCount.Add(1)
		return false
	}
}

func (c *Collector) buffer(span Span) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == cap(c.spans) {
		// Double small buffers, grow large ones by half.
		newCap := cap(c.spans) * 2
		if cap(c.spans) >= 1024 {
			newCap = cap(c.spans) + cap(c.spans)/2
		}
		if newCap < 32 {
			newCap = 32
		}
		grown := make([]Span, len(c.spans), newCap)
		copy(grown, c.spans)
		c.spans = grown
	}
	c.spans = append(c.spans, span)
}

// Export returns all buffered spans in arrival order and clears the buffer.
// The returned slice is safe to modify without affecting the collector.
func (c *Collector) Export() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]Span, len(c.spans))
	copy(result, c.spans)

	// Only shrink very oversized buffers to avoid allocation churn.
	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		c.spans = make([]Span, 0, cap(c.spans)/4)
	} else {
		c.spans = c.spans[:0]
	}

	return result
}

// Count returns the current number of buffered spans.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode enables synchronous collection for testing.
// When enabled, spans are buffered directly without using the channel.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode.Store(sync)
}

// Reset clears all buffered spans and resets the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spans = c.spans[:0]
	c.droppedCount.Store(0)
}

// Close stops accepting spans and drains what was already queued.
// Safe to call multiple times.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed.Store(true)
		c.sendMu.Unlock()

		close(c.stopCh)
		select {
		case <-c.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}
