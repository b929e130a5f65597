package keylock

import (
	"sync"
	"testing"
)

func TestStriped_SerializesSameKey(t *testing.T) {
	locks := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same-key")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 200 {
		t.Fatalf("counter = %d, want 200", counter)
	}
}

func TestStriped_DifferentKeysDoNotBlock(t *testing.T) {
	// With enough stripes, two distinct keys should usually map to distinct
	// mutexes. Holding one must not block the other.
	locks := NewWithStripes(1024)

	unlockA := locks.Lock("alpha")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		// Find a key on a different stripe than "alpha"
		for _, key := range []string{"beta", "gamma", "delta", "epsilon"} {
			if locks.index(key) != locks.index("alpha") {
				unlock := locks.Lock(key)
				unlock()
				break
			}
		}
		close(done)
	}()

	<-done
}

func TestStriped_UnlockAllowsReacquire(t *testing.T) {
	locks := New()

	unlock := locks.Lock("k")
	unlock()

	unlock = locks.Lock("k")
	unlock()
}
