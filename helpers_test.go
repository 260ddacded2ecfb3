package spanz

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// recovered runs fn and returns the error it panicked with, if any.
func recovered(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}

func newTestTracer(t *testing.T, opts ...Option) *Tracer {
	t.Helper()
	tracer, err := New(opts...)
	require.NoError(t, err)
	return tracer
}

// newSyncCollector returns a collector that buffers spans on the calling
// goroutine, so export order equals finalization order.
func newSyncCollector(t *testing.T) *Collector {
	t.Helper()
	c := NewCollector("test", 1024)
	c.SetSyncMode(true)
	t.Cleanup(c.Close)
	return c
}
