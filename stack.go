package spanz

import "context"

// stackKeyType is a private type for context keys to avoid collisions.
type stackKeyType string

const (
	stackKey stackKeyType = "spanz.stack"
)

// Stack records which spans are active on one goroutine, innermost last.
// The top of the stack is the implicit parent of spans created by Child.
//
// Stacks are NOT safe for concurrent use. Give every goroutine its own.
type Stack struct {
	guards []*Guard
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{guards: make([]*Guard, 0, 8)}
}

// Top returns the innermost active span.
func (s *Stack) Top() (ID, bool) {
	g := s.top()
	if g == nil {
		return NoParent, false
	}
	return g.id, true
}

// Depth returns the number of active entries.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.guards)
}

// top returns the guard of the innermost entry, or nil.
func (s *Stack) top() *Guard {
	if s == nil || len(s.guards) == 0 {
		return nil
	}
	return s.guards[len(s.guards)-1]
}

func (s *Stack) push(g *Guard) {
	s.guards = append(s.guards, g)
}

func (s *Stack) pop() (*Guard, bool) {
	if len(s.guards) == 0 {
		return nil, false
	}
	g := s.guards[len(s.guards)-1]
	s.guards[len(s.guards)-1] = nil
	s.guards = s.guards[:len(s.guards)-1]
	return g, true
}

// WithStack returns a context carrying s.
func WithStack(ctx context.Context, s *Stack) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stackKey, s)
}

// StackFrom extracts the stack carried by ctx.
// Returns nil if no stack is present.
func StackFrom(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(stackKey).(*Stack); ok {
		return s
	}
	return nil
}
