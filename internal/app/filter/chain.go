package filter

import "github.com/osa030/rhythmical/internal/domain/song"

// Chain combines predicates; a song must pass all of them.
type Chain struct {
	predicates []song.Predicate
}

// NewChain creates a new, empty chain.
func NewChain() *Chain {
	return &Chain{
		predicates: make([]song.Predicate, 0),
	}
}

// Add appends a predicate. Nil predicates are ignored.
func (c *Chain) Add(p song.Predicate) {
	if p == nil {
		return
	}
	c.predicates = append(c.predicates, p)
}

// Len returns the number of predicates in the chain.
func (c *Chain) Len() int {
	return len(c.predicates)
}

// Predicate returns a predicate that short-circuits on the first rejection.
func (c *Chain) Predicate() song.Predicate {
	predicates := make([]song.Predicate, len(c.predicates))
	copy(predicates, c.predicates)
	return func(s song.Song) bool {
		for _, p := range predicates {
			if !p(s) {
				return false
			}
		}
		return true
	}
}
