package spanz

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// SpanHandler is called with every span a Dispatcher accepts.
type SpanHandler func(span Span)

type handlerEntry struct {
	handler SpanHandler
	id      uint64
}

// Dispatcher is a Sink that fans finished spans out to handlers on a
// bounded pool of workers. A full queue drops the span.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Dispatcher struct {
	handlers     []handlerEntry
	panicHook    atomic.Pointer[func(handlerID uint64, r any)]
	tasks        chan Span
	stop         chan struct{}
	logger       *zap.Logger
	wg           sync.WaitGroup
	handlersLock sync.RWMutex
	sendLock     sync.RWMutex
	closeOnce    sync.Once
	nextID       atomic.Uint64
	dropped      atomic.Uint64
	closed       atomic.Bool
}

// NewDispatcher starts workers goroutines serving a queue of queueSize spans.
func NewDispatcher(workers, queueSize int, logger *zap.Logger) (*Dispatcher, error) {
	if workers <= 0 {
		return nil, errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return nil, errors.New("queueSize must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		tasks:  make(chan Span, queueSize),
		stop:   make(chan struct{}),
		logger: logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d, nil
}

// OnSpan registers a handler and returns its id.
func (d *Dispatcher) OnSpan(handler SpanHandler) uint64 {
	if handler == nil {
		return 0
	}

	id := d.nextID.Add(1)

	d.handlersLock.Lock()
	defer d.handlersLock.Unlock()

	d.handlers = append(d.handlers, handlerEntry{id: id, handler: handler})
	return id
}

// RemoveHandler removes a handler by ID.
func (d *Dispatcher) RemoveHandler(id uint64) {
	d.handlersLock.Lock()
	defer d.handlersLock.Unlock()

	// Preserve order
	for i, h := range d.handlers {
		if h.id == id {
			copy(d.handlers[i:], d.handlers[i+1:])
			d.handlers = d.handlers[:len(d.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (d *Dispatcher) SetPanicHook(hook func(handlerID uint64, r any)) {
	d.panicHook.Store(&hook)
}

// TrySend queues span for the workers without blocking.
func (d *Dispatcher) TrySend(span Span) bool {
	d.sendLock.RLock()
	defer d.sendLock.RUnlock()

	if d.closed.Load() {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.tasks <- span:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of spans rejected by TrySend.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the workers after the queued spans have been handled.
// Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.sendLock.Lock()
		d.closed.Store(true)
		d.sendLock.Unlock()

		close(d.stop)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case span := <-d.tasks:
			d.dispatch(span)
		case <-d.stop:
			for {
				select {
				case span := <-d.tasks:
					d.dispatch(span)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(span Span) {
	d.handlersLock.RLock()
	if len(d.handlers) == 0 {
		d.handlersLock.RUnlock()
		return
	}
	handlers := make([]handlerEntry, len(d.handlers))
	copy(handlers, d.handlers)
	d.handlersLock.RUnlock()

	for _, h := range handlers {
		d.safeCall(h, span)
	}
}

func (d *Dispatcher) safeCall(entry handlerEntry, span Span) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("span handler panicked",
				zap.Uint64("handler.id", entry.id),
				zap.Uint64("span.id", uint64(span.ID)),
				zap.Any("panic", r),
			)
			if hook := d.panicHook.Load(); hook != nil && *hook != nil {
				(*hook)(entry.id, r)
			}
		}
	}()
	entry.handler(span)
}
