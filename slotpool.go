package spanz

// slotPool recycles freed slot indices for one shard.
// Freed indices are handed out first; when none are waiting the factory
// claims a fresh one.
type slotPool struct {
	factory func() (uint32, bool)
	free    chan uint32
}

// newSlotPool creates a pool able to hold every index below capacity.
func newSlotPool(capacity int, factory func() (uint32, bool)) *slotPool {
	return &slotPool{
		free:    make(chan uint32, capacity),
		factory: factory,
	}
}

// Get returns a recycled index, or a fresh one from the factory.
// Reports false once the factory is exhausted and nothing was recycled.
func (p *slotPool) Get() (uint32, bool) {
	select {
	case idx := <-p.free:
		return idx, true
	default:
		return p.factory()
	}
}

// Put returns an index for reuse. Never blocks: the channel is sized for
// every index the factory can produce.
func (p *slotPool) Put(idx uint32) {
	select {
	case p.free <- idx:
	default:
	}
}

// Len returns the number of recycled indices waiting for reuse.
func (p *slotPool) Len() int {
	return len(p.free)
}
