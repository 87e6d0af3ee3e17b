package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityHeap_PopOrder(t *testing.T) {
	h := New()
	h.Push(Item{ID: "low", Priority: 10})
	h.Push(Item{ID: "live", Priority: 100})
	h.Push(Item{ID: "patch", Priority: 50})

	it, ok := h.PopMax()
	require.True(t, ok)
	assert.Equal(t, "live", it.ID)

	it, ok = h.PopMax()
	require.True(t, ok)
	assert.Equal(t, "patch", it.ID)

	it, ok = h.PopMax()
	require.True(t, ok)
	assert.Equal(t, "low", it.ID)

	_, ok = h.PopMax()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

func TestPriorityHeap_Peek(t *testing.T) {
	h := New()

	_, ok := h.Peek()
	assert.False(t, ok)

	h.Push(Item{ID: "a", Priority: 1})
	h.Push(Item{ID: "b", Priority: 2})

	it, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", it.ID)
	assert.Equal(t, 2, h.Len(), "peek must not remove")
}

func TestPriorityHeap_RemoveFunc(t *testing.T) {
	h := New()
	for _, it := range []Item{
		{ID: "a", Priority: 5},
		{ID: "b", Priority: 50},
		{ID: "c", Priority: 20},
		{ID: "d", Priority: 80},
	} {
		h.Push(it)
	}

	removed := h.RemoveFunc(func(it Item) bool { return it.ID == "c" })
	assert.True(t, removed)
	assert.Equal(t, 3, h.Len())

	removed = h.RemoveFunc(func(it Item) bool { return it.ID == "c" })
	assert.False(t, removed, "second removal of the same id must fail")

	// Remaining items still come out in priority order.
	var order []string
	for h.Len() > 0 {
		it, _ := h.PopMax()
		order = append(order, it.ID)
	}
	assert.Equal(t, []string{"d", "b", "a"}, order)
}

func TestPriorityHeap_RandomizedHeapOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New()
	n := 200
	for i := 0; i < n; i++ {
		h.Push(Item{ID: string(rune('a' + i%26)), Priority: rng.Intn(1000)})
	}

	prev := int(^uint(0) >> 1)
	for i := 0; i < n; i++ {
		it, ok := h.PopMax()
		require.True(t, ok)
		require.LessOrEqual(t, it.Priority, prev, "pop %d out of order", i)
		prev = it.Priority
	}
}
