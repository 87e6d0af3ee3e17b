package heap

// Item is a schedulable entry. The heap knows nothing about job semantics,
// only the (id, priority) pair.
type Item struct {
	ID       string
	Priority int
}

// PriorityHeap is a binary max-heap over Items. Ordering between equal
// priorities is heap-order dependent, not FIFO; callers must not rely on
// stable ordering among ties.
type PriorityHeap struct {
	items []Item
}

func New() *PriorityHeap {
	return &PriorityHeap{}
}

func (h *PriorityHeap) Len() int {
	return len(h.items)
}

func (h *PriorityHeap) Push(it Item) {
	h.items = append(h.items, it)
	h.siftUp(len(h.items) - 1)
}

// Peek returns the highest-priority item without removing it.
func (h *PriorityHeap) Peek() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[0], true
}

// PopMax removes and returns the highest-priority item.
func (h *PriorityHeap) PopMax() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return top, true
}

// RemoveFunc excises the first item matching pred, swapping it with the last
// element and sifting in whichever direction restores heap order. O(n) scan;
// used to pull a cancelled job out of the middle of the heap.
func (h *PriorityHeap) RemoveFunc(pred func(Item) bool) bool {
	for i, it := range h.items {
		if !pred(it) {
			continue
		}
		last := len(h.items) - 1
		h.items[i] = h.items[last]
		h.items = h.items[:last]
		if i < len(h.items) {
			h.siftDown(i)
			h.siftUp(i)
		}
		return true
	}
	return false
}

func (h *PriorityHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Priority <= h.items[parent].Priority {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *PriorityHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		right := 2*i + 2
		largest := i
		if left < n && h.items[left].Priority > h.items[largest].Priority {
			largest = left
		}
		if right < n && h.items[right].Priority > h.items[largest].Priority {
			largest = right
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
