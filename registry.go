package spanz

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// record is the mutable state of an in-flight span.
type record struct {
	start  time.Time
	sink   Sink
	name   Key
	parent ID
	refs   atomic.Int64
}

// Registry holds every in-flight span of a tracer.
// Safe for concurrent use by multiple goroutines.
type Registry struct {
	slab   *Slab[record]
	logger *zap.Logger
}

// NewRegistry creates a registry sized by cfg. cfg must be valid.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		slab:   NewSlab[record](cfg),
		logger: logger,
	}
}

// Live reports whether id resolves to an in-flight span.
func (r *Registry) Live(id ID) bool {
	_, ok := r.slab.Get(id)
	return ok
}

// Len returns the number of in-flight spans.
func (r *Registry) Len() int {
	return r.slab.Len()
}

func (r *Registry) insert(rec *record) ID {
	id, err := r.slab.Insert(rec)
	if err != nil {
		r.logger.Error("cannot allocate span slot",
			zap.Error(err),
			zap.String("span.name", rec.name),
			zap.Int("spans.live", r.slab.Len()),
		)
		panic(fmt.Errorf("%w: inserting %q", err, rec.name))
	}
	return id
}

func (r *Registry) get(id ID) *record {
	rec, ok := r.slab.Get(id)
	if !ok {
		r.fail("lookup", id)
	}
	return rec
}

func (r *Registry) remove(id ID) *record {
	rec, ok := r.slab.Remove(id)
	if !ok {
		r.fail("remove", id)
	}
	return rec
}

func (r *Registry) fail(op string, id ID) {
	r.logger.Error("span registry invariant broken",
		zap.String("op", op),
		zap.Uint64("span.id", uint64(id)),
	)
	panic(fmt.Errorf("%w: %s of span %d", ErrSpanNotFound, op, id))
}
