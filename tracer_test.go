package spanz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewTracerValidatesConfig(t *testing.T) {
	_, err := New(WithConfig(Config{Shards: 0, SlotsPerShard: 1}))
	assert.ErrorIs(t, err, ErrInvalidShards)

	_, err = New(WithConfig(Config{Shards: 1, SlotsPerShard: 0}))
	assert.ErrorIs(t, err, ErrInvalidSlotsPerShard)

	assert.Panics(t, func() { MustNew(WithConfig(Config{})) })

	tracer, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), tracer.config)
}

func TestDefaultTracerIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())

	collector := newSyncCollector(t)
	stack := NewStack()

	root := Root(collector, "root")
	a := root.Enter(stack)
	child := Child(stack, "child")
	require.NotNil(t, child)
	child.Release()
	a.Exit()
	root.Release()

	spans := collector.Export()
	require.Len(t, spans, 2)
	assert.Equal(t, root.ID(), spans[1].ID)
	assert.Equal(t, root.ID(), spans[0].ParentID)
}

func TestChildWithoutActiveSpanIsNoOp(t *testing.T) {
	tracer := newTestTracer(t)

	assert.Nil(t, tracer.Child(nil, "orphan"))
	assert.Nil(t, tracer.Child(NewStack(), "orphan"))
	assert.Nil(t, tracer.ChildFromContext(context.Background(), "orphan"))

	stack := NewStack()
	g := tracer.Child(stack, "orphan")
	g.Enter(stack).Exit()
	g.Release()

	assert.Equal(t, 0, stack.Depth())
	assert.Equal(t, Stats{}, tracer.Stats())
}

func TestRootReleasedImmediately(t *testing.T) {
	clock := clockz.NewFakeClock()
	tracer := newTestTracer(t, WithClock(clock))
	collector := newSyncCollector(t)

	g := tracer.Root(collector, "root")
	clock.Advance(25 * time.Millisecond)
	g.Release()

	spans := collector.Export()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, g.ID(), span.ID)
	assert.True(t, span.IsRoot())
	assert.Equal(t, "root", span.Name)
	assert.False(t, span.EndTime.Before(span.StartTime))
	assert.Equal(t, 25*time.Millisecond, span.Duration)
	assert.False(t, tracer.Registry().Live(g.ID()), "finalized span must not resolve")
}

func TestRootWithNilSinkDiscards(t *testing.T) {
	tracer := newTestTracer(t)
	g := tracer.Root(nil, "root")
	g.Release()

	stats := tracer.Stats()
	assert.Equal(t, uint64(1), stats.Finished)
	assert.Equal(t, uint64(0), stats.Dropped)
}

func TestNestedScenarioReportsPostOrder(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)
	stack := NewStack()

	r := tracer.Root(collector, "r")
	ra := r.Enter(stack)
	c1 := tracer.Child(stack, "c1")
	c1a := c1.Enter(stack)
	c2 := tracer.Child(stack, "c2")

	c1a.Exit()
	ra.Exit()

	c2.Release()
	spans := collector.Export()
	require.Len(t, spans, 1, "only c2 is finished")
	assert.Equal(t, c2.ID(), spans[0].ID)
	assert.Equal(t, c1.ID(), spans[0].ParentID)

	c1.Release()
	spans = collector.Export()
	require.Len(t, spans, 1, "c1 finished, r still held")
	assert.Equal(t, c1.ID(), spans[0].ID)
	assert.Equal(t, r.ID(), spans[0].ParentID)

	r.Release()
	spans = collector.Export()
	require.Len(t, spans, 1)
	assert.Equal(t, r.ID(), spans[0].ID)
	assert.Equal(t, NoParent, spans[0].ParentID)

	assert.Equal(t, 0, tracer.Registry().Len())
}

func TestParentHeldOpenByChildren(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)
	stack := NewStack()

	p := tracer.Root(collector, "parent")
	pa := p.Enter(stack)
	child := tracer.Child(stack, "child")
	pa.Exit()

	// The parent's own guard goes first; the child keeps it alive.
	p.Release()
	assert.Equal(t, 0, collector.Count())
	assert.True(t, tracer.Registry().Live(p.ID()))

	child.Release()
	spans := collector.Export()
	require.Len(t, spans, 2)
	assert.Equal(t, child.ID(), spans[0].ID)
	assert.Equal(t, p.ID(), spans[1].ID)
	assert.False(t, tracer.Registry().Live(p.ID()))
}

func TestChildrenSharePostOrder(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)
	stack := NewStack()

	const n = 10
	p := tracer.Root(collector, "parent")
	pa := p.Enter(stack)

	children := make([]*Guard, 0, n)
	for i := 0; i < n; i++ {
		children = append(children, tracer.Child(stack, "child"))
	}
	// Release in an arbitrary interleaving.
	for _, i := range []int{3, 0, 9, 1, 8, 2, 7, 4, 6, 5} {
		children[i].Release()
	}
	pa.Exit()
	p.Release()

	spans := collector.Export()
	require.Len(t, spans, n+1)
	for _, span := range spans[:n] {
		assert.Equal(t, p.ID(), span.ParentID)
	}
	assert.Equal(t, p.ID(), spans[n].ID)
}

func TestConcurrentChildrenFinalizeParentOnce(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)

	const m = 64
	p := tracer.Root(collector, "parent")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stack := NewStack()
			<-start
			a := p.Enter(stack)
			c := tracer.Child(stack, "child")
			a.Exit()
			c.Release()
		}()
	}
	close(start)
	wg.Wait()
	p.Release()

	spans := collector.Export()
	require.Len(t, spans, m+1)

	parents := 0
	for i, span := range spans {
		if span.ID == p.ID() && span.IsRoot() {
			parents++
			assert.Equal(t, m, i, "parent reported after every child")
			continue
		}
		assert.Equal(t, p.ID(), span.ParentID)
	}
	assert.Equal(t, 1, parents)
	assert.Equal(t, 0, tracer.Registry().Len())
}

func TestLastChildFinalizesParentOnOtherGoroutine(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)
	stack := NewStack()

	p := tracer.Root(collector, "parent")
	pa := p.Enter(stack)
	child := tracer.Child(stack, "async-child")
	pa.Exit()
	p.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		child.Release()
	}()
	<-done

	spans := collector.Export()
	require.Len(t, spans, 2)
	assert.Equal(t, []ID{child.ID(), p.ID()}, []ID{spans[0].ID, spans[1].ID})
}

func TestChildFromContext(t *testing.T) {
	tracer := newTestTracer(t)
	collector := newSyncCollector(t)
	stack := NewStack()
	ctx := WithStack(context.Background(), stack)

	root := tracer.Root(collector, "root")
	defer root.Release()
	defer root.Enter(stack).Exit()

	child := tracer.ChildFromContext(ctx, "child")
	require.NotNil(t, child)
	child.Release()

	spans := collector.Export()
	require.Len(t, spans, 1)
	assert.Equal(t, root.ID(), spans[0].ParentID)
}

func TestChildInheritsSink(t *testing.T) {
	tracer := newTestTracer(t)
	first, second := newSyncCollector(t), newSyncCollector(t)

	for _, sink := range []*Collector{first, second} {
		stack := NewStack()
		root := tracer.Root(sink, "root")
		a := root.Enter(stack)
		tracer.Child(stack, "child").Release()
		a.Exit()
		root.Release()
	}

	assert.Equal(t, 2, first.Count())
	assert.Equal(t, 2, second.Count())
}

func TestChildUnderReleasedParentIsFatal(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	tracer := newTestTracer(t, WithLogger(zap.New(core)))
	stack := NewStack()

	root := tracer.Root(Discard, "root")
	root.Enter(stack)
	// Misuse: releasing while still active.
	root.Release()

	err := recovered(func() { tracer.Child(stack, "child") })
	assert.ErrorIs(t, err, ErrGuardReleased)
	assert.Equal(t, 1, logs.FilterMessage("child created under released span").Len())
}

func TestChildUnderReleasedParentWithReusedSlotIsFatal(t *testing.T) {
	tracer := newTestTracer(t, WithConfig(Config{Shards: 1, SlotsPerShard: 4}))
	collector := newSyncCollector(t)
	stack := NewStack()

	root := tracer.Root(collector, "root")
	root.Enter(stack)
	root.Release()

	unrelated := tracer.Root(collector, "unrelated")
	require.Equal(t, root.ID(), unrelated.ID(), "slot reused by an unrelated trace")

	err := recovered(func() { tracer.Child(stack, "child") })
	require.ErrorIs(t, err, ErrGuardReleased)

	unrelated.Release()
	spans := collector.Export()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.True(t, span.IsRoot(), "no span attached under %q", span.Name)
	}
	assert.Equal(t, 0, tracer.Registry().Len())
}

func TestChildOnStackOfAnotherTracerIsFatal(t *testing.T) {
	first, second := newTestTracer(t), newTestTracer(t)
	stack := NewStack()

	root := first.Root(Discard, "root")
	defer root.Release()
	defer root.Enter(stack).Exit()

	err := recovered(func() { second.Child(stack, "child") })
	require.ErrorIs(t, err, ErrForeignStack)
	assert.Equal(t, 0, second.Registry().Len())
	assert.Equal(t, 1, first.Registry().Len())
}

func TestExhaustionIsFatal(t *testing.T) {
	tracer := newTestTracer(t, WithConfig(Config{Shards: 1, SlotsPerShard: 2}))

	a := tracer.Root(Discard, "a")
	b := tracer.Root(Discard, "b")
	err := recovered(func() { tracer.Root(Discard, "c") })
	assert.ErrorIs(t, err, ErrSlotsExhausted)

	a.Release()
	b.Release()
	assert.NotPanics(t, func() { tracer.Root(Discard, "d").Release() })
}

func TestDroppedSpansAreCounted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := newTestTracer(t, WithLogger(zap.New(core)))

	ch := make(chan Span, 1)
	sink := ChanSink(ch)

	tracer.Root(sink, "kept").Release()
	tracer.Root(sink, "dropped").Release()

	stats := tracer.Stats()
	assert.Equal(t, uint64(2), stats.Finished)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 0, stats.Live)

	kept := <-ch
	assert.Equal(t, "kept", kept.Name)
	assert.Equal(t, 1, logs.FilterMessage("finished span dropped").Len())
}

func TestSlotReuseAfterFinalization(t *testing.T) {
	tracer := newTestTracer(t, WithConfig(Config{Shards: 1, SlotsPerShard: 4}))
	collector := newSyncCollector(t)

	first := tracer.Root(collector, "first")
	id := first.ID()
	first.Release()
	assert.False(t, tracer.Registry().Live(id))

	second := tracer.Root(collector, "second")
	defer second.Release()
	assert.Equal(t, id, second.ID(), "identity reused once its span is finished")
}

func BenchmarkRootRelease(b *testing.B) {
	tracer := MustNew()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tracer.Root(Discard, "op").Release()
	}
}

func BenchmarkChildNoOp(b *testing.B) {
	tracer := MustNew()
	stack := NewStack()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g := tracer.Child(stack, "op")
		g.Enter(stack).Exit()
		g.Release()
	}
}

func BenchmarkNestedChild(b *testing.B) {
	tracer := MustNew()
	stack := NewStack()
	root := tracer.Root(Discard, "root")
	defer root.Release()
	defer root.Enter(stack).Exit()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := tracer.Child(stack, "op")
		g.Enter(stack).Exit()
		g.Release()
	}
}
