// Package spanz is the runtime core of a low-overhead tracing library.
//
// It keeps every in-flight span in a sharded slot registry, resolves
// implicit parents from a per-goroutine Stack, and finalizes spans with a
// reference-counted protocol: a span is reported only after every child
// created under it has been reported and every guard holding it has been
// released. Export order is therefore a post-order walk of each trace tree.
//
// Core Components:
//   - Tracer: owns the registry, clock and logger.
//   - Guard: one strong reference to a span. Release it to end the span.
//   - Activation: the span's presence on a Stack. Exit it in LIFO order.
//   - Stack: the nesting of active spans for one goroutine.
//   - Sink: receives finished Span values without blocking.
//
// Basic Usage:
//
//	collector := spanz.NewCollector("export", 1024)
//	defer collector.Close()
//
//	stack := spanz.NewStack()
//	root := spanz.Root(collector, "request")
//	defer root.Release()
//	defer root.Enter(stack).Exit()
//
//	// Anywhere below, with the same stack.
//	child := spanz.Child(stack, "db.query")
//	defer child.Release()
//	defer child.Enter(stack).Exit()
//
// Child returns nil when nothing is active on the stack. A nil Guard and
// a nil Activation are valid no-ops, so call sites never branch on whether
// tracing is engaged.
//
// Goroutines:
//
// A Stack belongs to exactly one goroutine at a time. Guards may move
// freely: hand a guard to another goroutine and Enter it there on that
// goroutine's own stack. Carry stacks through call chains with WithStack
// and StackFrom.
//
// Fatal Conditions:
//
// Exiting activations out of order, exhausting the slot store, and using a
// guard after release are programming errors. They panic with errors that
// wrap ErrStackCorrupted, ErrSlotsExhausted, ErrSpanNotFound and
// ErrGuardReleased. A full or closed sink is not an error: the span is
// dropped and counted.
package spanz

// ID identifies an in-flight span. Identities are reused once a span has
// been finalized.
type ID uint64

// NoParent is the parent identity of root spans.
const NoParent ID = 0

// Key represents a span operation name.
type Key = string
