package spanz

import "time"

// Span is the finished form of a span, emitted once when its last
// reference is released. Spans are plain values and safe to share.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Span struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Name      string        `json:"name"`
	ID        ID            `json:"span_id"`
	ParentID  ID            `json:"parent_id,omitempty"`
}

// IsRoot reports whether the span was created without a parent.
func (s Span) IsRoot() bool {
	return s.ParentID == NoParent
}
