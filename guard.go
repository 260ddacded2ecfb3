package spanz

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Guard owns one strong reference to an in-flight span.
// Release it exactly when the owner is done with the span, typically
// with defer. A nil *Guard is the no-op guard returned by Child when no
// span is active; every method accepts it.
//
// Guards may be handed between goroutines. Do not copy a Guard value.
type Guard struct {
	tracer   *Tracer
	id       ID
	released atomic.Bool
}

// ID returns the span identity, or NoParent for a nil guard.
func (g *Guard) ID() ID {
	if g == nil {
		return NoParent
	}
	return g.id
}

// Enter pushes the span onto stack and returns the activation that pops
// it. While active, the span is the parent of spans created by Child on
// the same stack. A guard may be entered any number of times, on any
// number of stacks.
func (g *Guard) Enter(stack *Stack) *Activation {
	if g == nil {
		return nil
	}
	if stack == nil {
		g.tracer.logger.Error("entering span without a stack", zap.Uint64("span.id", uint64(g.id)))
		panic(fmt.Errorf("%w: entering span %d", ErrNilStack, g.id))
	}
	if g.released.Load() {
		g.tracer.logger.Error("entering released span", zap.Uint64("span.id", uint64(g.id)))
		panic(fmt.Errorf("%w: entering span %d", ErrGuardReleased, g.id))
	}
	stack.push(g)
	return &Activation{guard: g, stack: stack}
}

// Release gives up the guard's reference. When it was the last one the
// span is finalized, and its parent is released in turn.
// Safe to call multiple times - subsequent calls are no-ops.
func (g *Guard) Release() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.tracer.release(g.id)
}

// Activation is one occurrence of a span on a Stack.
// It must be exited on the goroutine that owns the stack, before any
// activation entered after it is exited. It must not outlive its guard.
type Activation struct {
	guard  *Guard
	stack  *Stack
	exited bool
}

// ID returns the activated span identity, or NoParent for a nil activation.
func (a *Activation) ID() ID {
	if a == nil {
		return NoParent
	}
	return a.guard.id
}

// Exit pops the span from its stack. The popped entry must be this
// activation's guard; anything else means activations were exited out of
// order, which panics with ErrStackCorrupted.
// Safe to call multiple times - subsequent calls are no-ops.
func (a *Activation) Exit() {
	if a == nil || a.exited {
		return
	}
	a.exited = true

	top, ok := a.stack.pop()
	if !ok || top != a.guard {
		id := top.ID()
		a.guard.tracer.logger.Error("span stack corrupted",
			zap.Uint64("span.id", uint64(a.guard.id)),
			zap.Uint64("stack.top", uint64(id)),
			zap.Bool("stack.empty", !ok),
		)
		if !ok {
			panic(fmt.Errorf("%w: exiting span %d on empty stack", ErrStackCorrupted, a.guard.id))
		}
		panic(fmt.Errorf("%w: exiting span %d, found %d", ErrStackCorrupted, a.guard.id, id))
	}
}
