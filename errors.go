package spanz

import "errors"

// Fatal conditions. The tracer panics with an error wrapping one of these,
// so code that recovers can still match them with errors.Is.
var (
	// ErrSlotsExhausted means every shard of the slot store is full.
	ErrSlotsExhausted = errors.New("spanz: slot store exhausted")

	// ErrSpanNotFound means an identity that must be live did not resolve.
	// It indicates a span released twice or a guard used after release.
	ErrSpanNotFound = errors.New("spanz: span not found in registry")

	// ErrStackCorrupted means activations were exited out of LIFO order,
	// or exited on a stack that does not hold them.
	ErrStackCorrupted = errors.New("spanz: corrupted span stack")

	// ErrGuardReleased means a released guard was entered, or a child was
	// created under a span whose guard was released while still active.
	ErrGuardReleased = errors.New("spanz: guard already released")

	// ErrForeignStack means Child was called on a stack whose top was
	// entered with a guard from a different tracer.
	ErrForeignStack = errors.New("spanz: stack top belongs to another tracer")

	// ErrNilStack means a guard was entered without a stack.
	ErrNilStack = errors.New("spanz: nil stack")
)

// Configuration errors.
var (
	ErrInvalidShards        = errors.New("spanz: shards must be > 0")
	ErrInvalidSlotsPerShard = errors.New("spanz: slots per shard must be > 0 and fit in 32 bits")
)
