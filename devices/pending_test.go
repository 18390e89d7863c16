package devices

import "testing"

func TestPendingQueueFIFO(t *testing.T) {
	var q PendingQueue
	costs := []int{5, 7, 9, 11}
	for _, c := range costs {
		q.Push(c)
	}
	if q.Sum() != 32 || q.Len() != 4 {
		t.Fatalf("sum=%d len=%d, want 32 4", q.Sum(), q.Len())
	}

	for i, want := range costs {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got != want {
			t.Errorf("pop %d = %d, want %d", i, got, want)
		}
	}
	if q.Sum() != 0 || q.Len() != 0 {
		t.Errorf("queue not empty after draining: sum=%d len=%d", q.Sum(), q.Len())
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue succeeded")
	}
}

func TestPendingQueueInterleaved(t *testing.T) {
	var q PendingQueue
	q.Push(1)
	q.Push(2)
	q.Pop()
	q.Push(3)

	want := []int{2, 3}
	for _, w := range want {
		got, _ := q.Pop()
		if got != w {
			t.Errorf("got %d, want %d", got, w)
		}
	}
}

func TestCommandCost(t *testing.T) {
	if CommandCost("G1 X10 Y10") != 11 {
		t.Errorf("cost = %d, want 11", CommandCost("G1 X10 Y10"))
	}
	if CommandCost("") != 1 {
		t.Error("empty command still costs its terminator")
	}
}
