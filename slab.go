package spanz

import (
	"sync"
	"sync/atomic"
)

// pageSize is the number of slots allocated together when a shard grows.
const pageSize = 64

type page[T any] struct {
	slots [pageSize]atomic.Pointer[T]
}

// shard is one partition of a Slab. Lookups and removals never lock;
// the mutex only serializes page allocation.
//
//nolint:govet // Field order optimized for readability over memory
type shard[T any] struct {
	pages    []atomic.Pointer[page[T]]
	free     *slotPool
	next     atomic.Uint32
	capacity uint32
	mu       sync.Mutex
}

func newShard[T any](capacity int) *shard[T] {
	s := &shard[T]{
		pages:    make([]atomic.Pointer[page[T]], (capacity+pageSize-1)/pageSize),
		capacity: uint32(capacity),
	}
	s.free = newSlotPool(capacity, s.claim)
	return s
}

// claim bumps the high-water mark. Only used when no freed index is waiting.
func (s *shard[T]) claim() (uint32, bool) {
	for {
		n := s.next.Load()
		if n >= s.capacity {
			return 0, false
		}
		if s.next.CompareAndSwap(n, n+1) {
			return n, true
		}
	}
}

// slot returns the cell for idx, allocating its page when grow is set.
func (s *shard[T]) slot(idx uint32, grow bool) *atomic.Pointer[T] {
	if idx >= s.capacity {
		return nil
	}
	cell := &s.pages[idx/pageSize]
	p := cell.Load()
	if p == nil {
		if !grow {
			return nil
		}
		s.mu.Lock()
		if p = cell.Load(); p == nil {
			p = new(page[T])
			cell.Store(p)
		}
		s.mu.Unlock()
	}
	return &p.slots[idx%pageSize]
}

// Slab is a sharded arena handing out small integer identities for
// stored values. Insert, Get and Remove are safe for concurrent use and
// linearizable per identity. Identities are reused after removal; there
// is no generation counter, so callers must not look up an identity they
// do not know to be live.
type Slab[T any] struct {
	shards []*shard[T]
	cursor atomic.Uint64
	live   atomic.Int64
}

// NewSlab creates a slab sized by cfg. cfg must be valid.
func NewSlab[T any](cfg Config) *Slab[T] {
	s := &Slab[T]{
		shards: make([]*shard[T], cfg.Shards),
	}
	for i := range s.shards {
		s.shards[i] = newShard[T](cfg.SlotsPerShard)
	}
	return s
}

// Insert stores v and returns its identity.
// Returns ErrSlotsExhausted when no shard has a free slot.
func (s *Slab[T]) Insert(v *T) (ID, error) {
	n := uint64(len(s.shards))
	start := s.cursor.Add(1)
	for i := uint64(0); i < n; i++ {
		si := (start + i) % n
		sh := s.shards[si]
		idx, ok := sh.free.Get()
		if !ok {
			continue
		}
		sh.slot(idx, true).Store(v)
		s.live.Add(1)
		return s.encode(si, idx), nil
	}
	return 0, ErrSlotsExhausted
}

// Get returns the value stored under id.
func (s *Slab[T]) Get(id ID) (*T, bool) {
	sh, idx, ok := s.decode(id)
	if !ok {
		return nil, false
	}
	cell := sh.slot(idx, false)
	if cell == nil {
		return nil, false
	}
	v := cell.Load()
	return v, v != nil
}

// Remove takes the value stored under id and frees the slot.
// A second removal of the same identity reports false.
func (s *Slab[T]) Remove(id ID) (*T, bool) {
	sh, idx, ok := s.decode(id)
	if !ok {
		return nil, false
	}
	cell := sh.slot(idx, false)
	if cell == nil {
		return nil, false
	}
	v := cell.Swap(nil)
	if v == nil {
		return nil, false
	}
	s.live.Add(-1)
	sh.free.Put(idx)
	return v, true
}

// Len returns the number of occupied slots.
func (s *Slab[T]) Len() int {
	return int(s.live.Load())
}

// Identities start at 1 so the zero ID can mean "no span".
func (s *Slab[T]) encode(shardIdx uint64, idx uint32) ID {
	return ID(uint64(idx)*uint64(len(s.shards)) + shardIdx + 1)
}

func (s *Slab[T]) decode(id ID) (*shard[T], uint32, bool) {
	if id == NoParent {
		return nil, 0, false
	}
	v := uint64(id) - 1
	n := uint64(len(s.shards))
	idx := v / n
	sh := s.shards[v%n]
	if idx >= uint64(sh.capacity) {
		return nil, 0, false
	}
	return sh, uint32(idx), true
}
