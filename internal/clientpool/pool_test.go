package clientpool

import (
	"errors"
	"sync"
	"testing"
)

func TestPool_RoundRobin(t *testing.T) {
	const size = 3
	pool, err := New(size, func(i int) (int, error) { return i, nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The acquisition sequence must be periodic with period = pool size.
	for round := 0; round < 4; round++ {
		for want := 0; want < size; want++ {
			if got := pool.Acquire(); got != want {
				t.Fatalf("round %d: got handle %d, want %d", round, got, want)
			}
		}
	}
}

func TestPool_SizeOne(t *testing.T) {
	pool, err := New(1, func(i int) (string, error) { return "only", nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if got := pool.Acquire(); got != "only" {
			t.Fatalf("got %q, want %q", got, "only")
		}
	}
}

func TestPool_FactoryErrorAbortsConstruction(t *testing.T) {
	built := 0
	_, err := New(4, func(i int) (int, error) {
		if i == 2 {
			return 0, errors.New("boom")
		}
		built++
		return i, nil
	})
	if err == nil {
		t.Fatal("expected construction error")
	}
	if built != 2 {
		t.Errorf("factory ran %d times after failure, want 2", built)
	}
}

func TestPool_RejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size, func(i int) (int, error) { return i, nil }); err == nil {
			t.Errorf("size %d: expected error", size)
		}
	}
}

func TestPool_ConcurrentAcquire(t *testing.T) {
	const size = 4
	const goroutines = 8
	const perGoroutine = 1000

	pool, err := New(size, func(i int) (int, error) { return i, nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	counts := make([]int64, size)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, size)
			for i := 0; i < perGoroutine; i++ {
				local[pool.Acquire()]++
			}
			mu.Lock()
			for i, n := range local {
				counts[i] += n
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Round-robin distributes evenly across handles.
	want := int64(goroutines * perGoroutine / size)
	for i, n := range counts {
		if n != want {
			t.Errorf("handle %d acquired %d times, want %d", i, n, want)
		}
	}
}
