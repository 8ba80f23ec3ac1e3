package queue

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) Option {
	return WithSampler(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func ids(n int) []string {
	result := make([]string, n)
	for i := range result {
		result[i] = fmt.Sprintf("%d", i+1)
	}
	return result
}

func assertDistinct(t *testing.T, values []string) {
	t.Helper()
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		assert.False(t, seen[v], "duplicate id %q", v)
		seen[v] = true
	}
}

func TestNew_DefaultTarget(t *testing.T) {
	tests := []struct {
		name     string
		target   int
		expected int
	}{
		{name: "explicit", target: 10, expected: 10},
		{name: "zero falls back", target: 0, expected: DefaultLength},
		{name: "negative falls back", target: -3, expected: DefaultLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(tt.target)
			assert.Equal(t, tt.expected, q.Target())
			assert.Equal(t, 0, q.Len())
		})
	}
}

func TestQueue_NextThreeIDsCapacityTwo(t *testing.T) {
	q := New(2, seeded(1))

	id, ok, next := q.Next([]string{"1", "2", "3"})
	require.True(t, ok)
	assert.Contains(t, []string{"1", "2", "3"}, id)
	assert.Equal(t, 2, next.Len())

	remaining := next.Peek(2)
	assert.NotContains(t, remaining, id)
	assert.ElementsMatch(t, remaining, without([]string{"1", "2", "3"}, id))
	assert.Equal(t, 0, q.Len(), "receiver must not change")
}

func TestQueue_NextDrawsEveryID(t *testing.T) {
	seen := make(map[string]int)
	for seed := uint64(0); seed < 200; seed++ {
		id, ok, _ := New(2, seeded(seed)).Next([]string{"1", "2", "3"})
		require.True(t, ok)
		seen[id]++
	}
	assert.Len(t, seen, 3)
	for id, count := range seen {
		assert.Greater(t, count, 20, "id %s drawn too rarely", id)
	}
}

func TestQueue_NextEmptyAvailable(t *testing.T) {
	q := New(5, seeded(7))
	_, _, q = q.Next(ids(10))
	require.Greater(t, q.Len(), 0)

	for i := 0; i < 3; i++ {
		id, ok, next := q.Next(nil)
		assert.False(t, ok)
		assert.Empty(t, id)
		assert.Equal(t, 0, next.Len())
		q = next
	}
}

func TestQueue_NextStaysWithinAvailable(t *testing.T) {
	tests := []struct {
		name      string
		target    int
		available []string
	}{
		{name: "fewer than target", target: 50, available: ids(7)},
		{name: "exactly target", target: 5, available: ids(5)},
		{name: "more than target", target: 5, available: ids(100)},
		{name: "single", target: 3, available: []string{"only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := make(map[string]bool)
			for _, id := range tt.available {
				allowed[id] = true
			}

			q := New(tt.target, seeded(42))
			for i := 0; i < 20; i++ {
				id, ok, next := q.Next(tt.available)
				require.True(t, ok)
				assert.True(t, allowed[id])
				for _, queued := range next.Peek(next.Len()) {
					assert.True(t, allowed[queued])
				}
				assertDistinct(t, next.Peek(next.Len()))
				assert.LessOrEqual(t, next.Len(), tt.target)
				q = next
			}
		})
	}
}

func TestQueue_RefillHasNoDuplicates(t *testing.T) {
	q := New(50, seeded(3)).Reseed(ids(200))
	assert.Equal(t, 51, q.Len())
	assertDistinct(t, q.Peek(q.Len()))
}

func TestQueue_FilterChangePrunesBeforeRefill(t *testing.T) {
	q := New(4, seeded(11)).Reseed(ids(20))
	require.Equal(t, 5, q.Len())
	before := q.Peek(q.Len())

	// Keep only two of the queued ids plus new candidates.
	kept := before[1:3]
	available := append([]string{"x", "y", "z", "w"}, kept...)

	id, ok, next := q.Next(available)
	require.True(t, ok)
	assert.Equal(t, kept[0], id, "surviving entries keep their order ahead of refill")
	upcoming := next.Peek(next.Len())
	assert.Equal(t, kept[1], upcoming[0])
	for _, removed := range []string{before[0], before[3], before[4]} {
		assert.NotContains(t, upcoming, removed)
	}
	assert.Equal(t, 4, next.Len())
	assertDistinct(t, upcoming)
}

func TestQueue_IgnoresDuplicateAvailableIDs(t *testing.T) {
	q := New(10, seeded(5)).Reseed([]string{"a", "a", "b", "b", "a"})
	assert.ElementsMatch(t, []string{"a", "b"}, q.Peek(10))
}

func TestQueue_PeekReturnsCopy(t *testing.T) {
	q := New(3, seeded(9)).Reseed(ids(3))
	peeked := q.Peek(2)
	peeked[0] = "mutated"
	assert.NotEqual(t, "mutated", q.Peek(1)[0])

	assert.Len(t, q.Peek(10), 3)
	assert.Empty(t, q.Peek(-1))
}

func TestQueue_ZeroValueIsUsable(t *testing.T) {
	var q Queue
	id, ok, next := q.Next([]string{"1"})
	assert.True(t, ok)
	assert.Equal(t, "1", id)
	assert.Equal(t, DefaultLength, next.Target())
}

func without(values []string, drop string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != drop {
			result = append(result, v)
		}
	}
	return result
}
