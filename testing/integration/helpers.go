package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/spanz"
)

// Harness pairs a private tracer with a synchronous collector, so the
// exported order is exactly the finalization order.
type Harness struct {
	*spanz.Tracer
	Collector *spanz.Collector
	t         *testing.T
}

// NewHarness creates a tracer sized by cfg and a sync-mode collector.
func NewHarness(t *testing.T, cfg spanz.Config) *Harness {
	t.Helper()
	tracer, err := spanz.New(spanz.WithConfig(cfg))
	require.NoError(t, err)

	collector := spanz.NewCollector("integration", 1024)
	collector.SetSyncMode(true)
	t.Cleanup(collector.Close)

	return &Harness{Tracer: tracer, Collector: collector, t: t}
}

// Root starts a trace reporting to the harness collector.
func (h *Harness) Root(name spanz.Key) *spanz.Guard {
	return h.Tracer.Root(h.Collector, name)
}

// RequireDrained fails unless every span has been finalized.
func (h *Harness) RequireDrained() {
	h.t.Helper()
	require.Equal(h.t, 0, h.Registry().Len(), "spans still in flight")
}

// RequirePostOrder fails if a span is reported after its parent.
// Only meaningful when no identity was reused within spans.
func RequirePostOrder(t *testing.T, spans []spanz.Span) {
	t.Helper()

	reported := make(map[spanz.ID]int, len(spans))
	for i, span := range spans {
		if !span.IsRoot() {
			at, done := reported[span.ParentID]
			require.Falsef(t, done, "span %d (%s) at %d reported after its parent at %d",
				span.ID, span.Name, i, at)
		}
		require.Falsef(t, span.EndTime.Before(span.StartTime), "span %d ends before it starts", span.ID)
		reported[span.ID] = i
	}
}

// ByParent groups spans by parent identity.
func ByParent(spans []spanz.Span) map[spanz.ID][]spanz.Span {
	children := make(map[spanz.ID][]spanz.Span)
	for _, span := range spans {
		children[span.ParentID] = append(children[span.ParentID], span)
	}
	return children
}
