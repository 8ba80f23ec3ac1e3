// Package history provides the bounded stack of played song ids.
package history

// DefaultCapacity is the default number of ids kept.
const DefaultCapacity = 100

// Stack is a LIFO of played ids.
// Once full, pushes are dropped until a pop frees a slot.
type Stack struct {
	ids      []string
	capacity int
}

// New creates an empty stack. A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{
		ids:      make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Push appends id. Returns false if the stack is full and id was dropped.
func (s *Stack) Push(id string) bool {
	if len(s.ids) >= s.capacity {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Pop removes ids from the top until one satisfies resolves.
// Ids that do not resolve are discarded. A nil resolves accepts any id.
func (s *Stack) Pop(resolves func(id string) bool) (string, bool) {
	for len(s.ids) > 0 {
		last := len(s.ids) - 1
		id := s.ids[last]
		s.ids = s.ids[:last]
		if resolves == nil || resolves(id) {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of stored ids.
func (s *Stack) Len() int {
	return len(s.ids)
}

// Cap returns the capacity.
func (s *Stack) Cap() int {
	return s.capacity
}

// Full reports whether further pushes will be dropped.
func (s *Stack) Full() bool {
	return len(s.ids) >= s.capacity
}

// Snapshot returns a copy of the ids, most recent last.
func (s *Stack) Snapshot() []string {
	result := make([]string, len(s.ids))
	copy(result, s.ids)
	return result
}
