package connector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFOOrder(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 1, 7, 100} {
		q := NewQueue[ChatEvent](nil)
		for i := 0; i < n; i++ {
			q.Enqueue(ChatEvent{Message: fmt.Sprintf("msg-%d", i)})
		}
		if q.Len() != n {
			t.Fatalf("len = %d, want %d", q.Len(), n)
		}
		for i := 0; i < n; i++ {
			got, err := q.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue %d: %v", i, err)
			}
			if want := fmt.Sprintf("msg-%d", i); got.Message != want {
				t.Fatalf("item %d = %q, want %q", i, got.Message, want)
			}
		}
		if q.Len() != 0 {
			t.Fatalf("len after drain = %d", q.Len())
		}
	}
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue[int](nil)
	done := make(chan int, 1)
	go func() {
		v, err := q.Dequeue(context.Background())
		if err != nil {
			return
		}
		done <- v
	}()

	select {
	case v := <-done:
		t.Fatalf("dequeue returned %d before enqueue", v)
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(42)
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake after enqueue")
	}
}

func TestQueueDequeueCancellation(t *testing.T) {
	q := NewQueue[int](nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestQueueConcurrentDrain(t *testing.T) {
	const items = 500
	q := NewQueue[int](nil)
	for i := 0; i < items; i++ {
		q.Enqueue(i)
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				full := len(seen) == items
				mu.Unlock()
				if full || q.Len() == 0 {
					return
				}
				v, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("item %d dequeued twice", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != items {
		t.Fatalf("drained %d items, want %d", len(seen), items)
	}
}
