package dispatch

import "sync"

// Queue is an unbounded FIFO. Push never fails.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// PopFront removes and returns the head, or reports false when empty.
func (q *Queue) PopFront() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	head := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return head, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// List returns a copy of the waiting items, head first.
func (q *Queue) List() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}
