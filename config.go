package spanz

import (
	"math"
	"runtime"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// DefaultSlotsPerShard is the per-shard capacity used by DefaultConfig.
const DefaultSlotsPerShard = 1 << 14

// Config sizes the slot store backing a tracer's registry.
type Config struct {
	// Shards is the number of independent partitions of the slot store.
	// Inserts are spread across shards round-robin.
	Shards int

	// SlotsPerShard bounds the number of in-flight spans each shard holds.
	// Total capacity is Shards * SlotsPerShard.
	SlotsPerShard int
}

// DefaultConfig returns one shard per CPU with DefaultSlotsPerShard slots each.
func DefaultConfig() Config {
	return Config{
		Shards:        runtime.NumCPU(),
		SlotsPerShard: DefaultSlotsPerShard,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Shards <= 0 {
		return ErrInvalidShards
	}
	if c.SlotsPerShard <= 0 || uint64(c.SlotsPerShard) > math.MaxUint32 {
		return ErrInvalidSlotsPerShard
	}
	return nil
}

// Capacity returns the total number of slots.
func (c Config) Capacity() int {
	return c.Shards * c.SlotsPerShard
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithConfig sets the slot store configuration.
func WithConfig(cfg Config) Option {
	return func(t *Tracer) {
		t.config = cfg
	}
}

// WithClock sets the timestamp source.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger sets the logger used for invariant breaches and dropped spans.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}
