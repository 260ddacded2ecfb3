package spanz

// Sink receives finished spans. Every span of a trace tree goes to the
// sink given to its Root.
//
// TrySend is called from whichever goroutine finalizes a span, possibly
// many at once. It must never block; it reports false when the span was
// not accepted, and the tracer counts it as dropped.
type Sink interface {
	TrySend(span Span) bool
}

// Discard accepts and ignores every span.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) TrySend(Span) bool { return true }

// ChanSink sends finished spans into ch. A full channel drops the span.
// So does a closed one: the consumer going away must not crash the
// traced program.
func ChanSink(ch chan<- Span) Sink {
	return chanSink{ch: ch}
}

type chanSink struct {
	ch chan<- Span
}

func (c chanSink) TrySend(span Span) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.ch <- span:
		return true
	default:
		return false
	}
}
