// Package queue provides the bounded look-ahead queue of upcoming songs.
//
// A Queue is an immutable value: every transition returns a new Queue and
// leaves the receiver untouched, so a snapshot handed out for display can
// never observe a later transition.
package queue

import "math/rand/v2"

// DefaultLength is the default look-ahead target length.
const DefaultLength = 50

// Sampler draws a uniform random integer in [0, n).
type Sampler interface {
	IntN(n int) int
}

type globalSampler struct{}

func (globalSampler) IntN(n int) int {
	return rand.IntN(n)
}

// Queue is an ordered sequence of song ids drawn from the available set.
type Queue struct {
	ids     []string
	target  int
	sampler Sampler
}

// Option configures a Queue.
type Option func(*Queue)

// WithSampler sets the random source used for refilling.
func WithSampler(s Sampler) Option {
	return func(q *Queue) {
		if s != nil {
			q.sampler = s
		}
	}
}

// New creates an empty queue with the given target length.
// A non-positive target falls back to DefaultLength.
func New(target int, opts ...Option) Queue {
	if target <= 0 {
		target = DefaultLength
	}
	q := Queue{
		target:  target,
		sampler: globalSampler{},
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Next prunes ids that are no longer available, refills from the
// available set and pops the head. ok is false when nothing is available.
func (q Queue) Next(available []string) (id string, ok bool, next Queue) {
	next = q.Reseed(available)
	if len(next.ids) == 0 {
		return "", false, next
	}
	id = next.ids[0]
	next.ids = next.ids[1:]
	return id, true, next
}

// Reseed prunes and refills without popping.
func (q Queue) Reseed(available []string) Queue {
	allowed := make(map[string]struct{}, len(available))
	for _, id := range available {
		allowed[id] = struct{}{}
	}

	target := q.Target()
	ids := make([]string, 0, target+1)
	queued := make(map[string]struct{}, target+1)
	for _, id := range q.ids {
		if _, ok := allowed[id]; ok {
			ids = append(ids, id)
			queued[id] = struct{}{}
		}
	}

	// Refill while len <= target, so a full queue holds target+1 entries.
	if want := target + 1 - len(ids); want > 0 {
		candidates := make([]string, 0, len(available))
		for _, id := range available {
			if _, ok := queued[id]; ok {
				continue
			}
			queued[id] = struct{}{}
			candidates = append(candidates, id)
		}
		ids = append(ids, q.sample(candidates, want)...)
	}

	return Queue{ids: ids, target: target, sampler: q.samplerOrDefault()}
}

// sample picks up to n distinct entries with a partial Fisher-Yates shuffle.
// candidates is reordered in place.
func (q Queue) sample(candidates []string, n int) []string {
	n = min(n, len(candidates))
	s := q.samplerOrDefault()
	for i := 0; i < n; i++ {
		j := i + s.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:n]
}

func (q Queue) samplerOrDefault() Sampler {
	if q.sampler == nil {
		return globalSampler{}
	}
	return q.sampler
}

// Peek returns a copy of the first n ids.
func (q Queue) Peek(n int) []string {
	n = min(max(n, 0), len(q.ids))
	result := make([]string, n)
	copy(result, q.ids[:n])
	return result
}

// Len returns the number of queued ids.
func (q Queue) Len() int {
	return len(q.ids)
}

// Target returns the target length.
func (q Queue) Target() int {
	if q.target <= 0 {
		return DefaultLength
	}
	return q.target
}
