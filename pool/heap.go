package pool

import "time"

// delayedTask is one entry on the delayed-task min-heap, ordered by
// deadline so the timer goroutine can always look at index 0 to find the
// next task to promote into the ready queue.
type delayedTask struct {
	deadline time.Time
	fn       func() error
	handle   *Handle
	index    int
}

// delayedHeap implements container/heap.Interface over delayedTask,
// keyed by deadline.
type delayedHeap []*delayedTask

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x interface{}) {
	dt := x.(*delayedTask)
	dt.index = len(*h)
	*h = append(*h, dt)
}

func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	dt := old[n-1]
	old[n-1] = nil
	dt.index = -1
	*h = old[:n-1]
	return dt
}
