package spanz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Tracer creates spans, links them to their parents, and finalizes them.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	registry *Registry
	clock    clockz.Clock
	logger   *zap.Logger
	config   Config
	finished atomic.Uint64
	dropped  atomic.Uint64
}

// Stats is a point-in-time snapshot of a tracer's counters.
type Stats struct {
	Live     int    `json:"live"`
	Finished uint64 `json:"finished"`
	Dropped  uint64 `json:"dropped"`
}

// New creates a tracer.
// Uses the real clock, a no-op logger and DefaultConfig unless overridden.
func New(opts ...Option) (*Tracer, error) {
	t := &Tracer{
		clock:  clockz.RealClock,
		logger: zap.NewNop(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.config.Validate(); err != nil {
		return nil, err
	}
	t.registry = NewRegistry(t.config, t.logger)
	return t, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(opts ...Option) *Tracer {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	defaultOnce   sync.Once
	defaultTracer *Tracer
)

// Default returns the process-wide tracer, creating it on first use.
func Default() *Tracer {
	defaultOnce.Do(func() {
		defaultTracer = MustNew()
	})
	return defaultTracer
}

// Root starts a new trace on the process-wide tracer.
func Root(sink Sink, name Key) *Guard {
	return Default().Root(sink, name)
}

// Child starts a span under the top of stack on the process-wide tracer.
func Child(stack *Stack, name Key) *Guard {
	return Default().Child(stack, name)
}

// Root starts a new trace whose spans are all reported to sink.
// A nil sink discards them.
func (t *Tracer) Root(sink Sink, name Key) *Guard {
	if sink == nil {
		sink = Discard
	}
	rec := &record{
		sink:  sink,
		name:  name,
		start: t.clock.Now(),
	}
	rec.refs.Store(1)
	return &Guard{tracer: t, id: t.registry.insert(rec)}
}

// Child starts a span whose parent is the top of stack. The child holds
// a reference on its parent until the child is finalized, so the parent
// is always reported after it.
//
// Returns nil when stack is nil or empty: tracing is not engaged on this
// call path and the nil guard does nothing.
func (t *Tracer) Child(stack *Stack, name Key) *Guard {
	top := stack.top()
	if top == nil {
		return nil
	}
	parentID := top.id
	if top.tracer != t {
		t.logger.Error("child created on a stack entered with another tracer",
			zap.Uint64("span.id", uint64(parentID)),
			zap.String("span.name", name),
		)
		panic(fmt.Errorf("%w: parent %d", ErrForeignStack, parentID))
	}
	if top.released.Load() {
		t.logger.Error("child created under released span",
			zap.Uint64("span.id", uint64(parentID)),
			zap.String("span.name", name),
		)
		panic(fmt.Errorf("%w: parent %d released while active", ErrGuardReleased, parentID))
	}

	parent := t.registry.get(parentID)
	if parent.refs.Add(1) <= 1 {
		t.logger.Error("child created under finalized span",
			zap.Uint64("span.id", uint64(parentID)),
			zap.String("span.name", name),
		)
		panic(fmt.Errorf("%w: parent %d already finalized", ErrSpanNotFound, parentID))
	}

	rec := &record{
		sink:   parent.sink,
		name:   name,
		parent: parentID,
		start:  t.clock.Now(),
	}
	rec.refs.Store(1)
	return &Guard{tracer: t, id: t.registry.insert(rec)}
}

// ChildFromContext is Child on the stack carried by ctx.
func (t *Tracer) ChildFromContext(ctx context.Context, name Key) *Guard {
	return t.Child(StackFrom(ctx), name)
}

// Registry returns the tracer's span registry.
func (t *Tracer) Registry() *Registry {
	return t.registry
}

// Stats returns the tracer's counters.
func (t *Tracer) Stats() Stats {
	return Stats{
		Live:     t.registry.Len(),
		Finished: t.finished.Load(),
		Dropped:  t.dropped.Load(),
	}
}

// release drops one reference to id. The goroutine that takes the count
// to zero removes the span, reports it, and continues with the parent.
func (t *Tracer) release(id ID) {
	for id != NoParent {
		rec := t.registry.get(id)
		if rec.refs.Add(-1) != 0 {
			return
		}
		t.registry.remove(id)
		t.finish(id, rec)
		id = rec.parent
	}
}

// finish emits the finished span without blocking.
func (t *Tracer) finish(id ID, rec *record) {
	end := t.clock.Now()
	span := Span{
		ID:        id,
		ParentID:  rec.parent,
		Name:      rec.name,
		StartTime: rec.start,
		EndTime:   end,
		Duration:  end.Sub(rec.start),
	}
	t.finished.Add(1)

	if !rec.sink.TrySend(span) {
		t.dropped.Add(1)
		t.logger.Debug("finished span dropped",
			zap.Uint64("span.id", uint64(id)),
			zap.String("span.name", rec.name),
		)
	}
}
