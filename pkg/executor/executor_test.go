package executor

import (
	"context"
	"testing"
	"time"
)

func TestRunPendingOrder(t *testing.T) {
	e := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		e.Post(func() { got = append(got, i) })
	}
	if n := e.RunPending(); n != 5 {
		t.Fatalf("RunPending ran %d tasks, want 5", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("Tasks ran out of order: %v", got)
		}
	}
	if n := e.RunPending(); n != 0 {
		t.Errorf("Empty queue ran %d tasks", n)
	}
}

func TestTryPost(t *testing.T) {
	e := &Executor{tasks: make(chan func(), 1)}
	if !e.TryPost(func() {}) {
		t.Fatal("TryPost failed on empty queue")
	}
	if e.TryPost(func() {}) {
		t.Fatal("TryPost succeeded on full queue")
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan int, 10)
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Post(func() { ran <- 1 })
	e.Post(func() { ran <- 2 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	close(ran)
	var got []int
	for v := range ran {
		got = append(got, v)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 tasks to run, got %v", got)
	}

	// Posting after shutdown must not block or panic.
	e.Post(func() { t.Error("task ran after shutdown") })
}
