package virtualizer

import (
	"testing"
	"time"
)

func TestQueueAtMostOneJobPerPage(t *testing.T) {
	q := newRenderQueue()
	q.enqueue(5, 3)
	q.enqueue(5, 0) // reprioritize, not duplicate

	if q.length() != 1 {
		t.Fatalf("queue holds %d jobs for one page", q.length())
	}
	j := q.pop()
	if j.page != 5 || j.priority != 0 {
		t.Errorf("job = %+v, want page 5 at priority 0", j)
	}
}

func TestQueuePopOrder(t *testing.T) {
	q := newRenderQueue()
	q.enqueue(10, 2)
	q.enqueue(11, 1)
	q.enqueue(12, 0)
	q.enqueue(13, 1)

	var got []int
	for {
		j := q.pop()
		if j == nil {
			break
		}
		got = append(got, j.page)
	}

	// Priority first; FIFO within priority 1 (11 enqueued before 13).
	want := []int{12, 11, 13, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}

func TestQueueReplaceKeepsTimestamp(t *testing.T) {
	q := newRenderQueue()
	q.enqueue(1, 1)
	time.Sleep(2 * time.Millisecond)
	q.enqueue(2, 1)
	// Reprioritizing page 1 must not push it behind page 2.
	q.enqueue(1, 1)

	if j := q.pop(); j.page != 1 {
		t.Errorf("first pop = page %d, want 1 (FIFO preserved across replace)", j.page)
	}
}

func TestQueueRetain(t *testing.T) {
	q := newRenderQueue()
	for page, prio := range map[int]int{1: 0, 2: 1, 3: 2, 4: 5} {
		q.enqueue(page, prio)
	}
	q.retain(1)

	if q.length() != 2 {
		t.Errorf("retained %d jobs, want 2", q.length())
	}
	if !q.contains(1) || !q.contains(2) {
		t.Error("retain dropped a priority-0/1 job")
	}
}

func TestQueueNextUnblocksOnClose(t *testing.T) {
	q := newRenderQueue()
	done := make(chan struct{})

	got := make(chan *renderJob, 1)
	go func() { got <- q.next(done) }()

	close(done)
	select {
	case j := <-got:
		if j != nil {
			t.Errorf("next returned %+v on shutdown, want nil", j)
		}
	case <-time.After(time.Second):
		t.Fatal("next did not unblock on shutdown")
	}
}

func TestQueueClosedDropsEnqueues(t *testing.T) {
	q := newRenderQueue()
	q.close()
	q.enqueue(1, 0)
	if q.length() != 0 {
		t.Error("closed queue accepted a job")
	}
}
