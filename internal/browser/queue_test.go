package browser

import "testing"

func TestAdmissionQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := newAdmissionQueue()

	low1 := &ticket{priority: 0, seq: 1, admitted: make(chan struct{})}
	low2 := &ticket{priority: 0, seq: 2, admitted: make(chan struct{})}
	high := &ticket{priority: 10, seq: 3, admitted: make(chan struct{})}

	q.push(low1)
	q.push(low2)
	q.push(high)

	if got := q.pop(); got != high {
		t.Fatalf("expected high priority ticket first")
	}
	if got := q.pop(); got != low1 {
		t.Fatalf("expected FIFO among equal priority tickets")
	}
	if got := q.pop(); got != low2 {
		t.Fatalf("expected remaining low priority ticket last")
	}
	if q.pop() != nil {
		t.Fatalf("expected empty queue to return nil")
	}
}

func TestAdmissionQueueRemove(t *testing.T) {
	q := newAdmissionQueue()
	a := &ticket{priority: 0, seq: 1, admitted: make(chan struct{})}
	b := &ticket{priority: 0, seq: 2, admitted: make(chan struct{})}
	q.push(a)
	q.push(b)

	q.remove(a)
	if q.len() != 1 {
		t.Fatalf("expected 1 ticket remaining after remove, got %d", q.len())
	}
	if got := q.pop(); got != b {
		t.Fatalf("expected remaining ticket to be b")
	}
}
