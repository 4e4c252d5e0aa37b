package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFlightAcquireRelease(t *testing.T) {
	var f Flight

	if !f.TryAcquire() {
		t.Fatal("first TryAcquire = false, want true")
	}
	if f.TryAcquire() {
		t.Error("second TryAcquire while held = true, want false")
	}
	if !f.Busy() {
		t.Error("Busy() = false while held, want true")
	}

	f.Release()

	if f.Busy() {
		t.Error("Busy() = true after Release, want false")
	}
	if !f.TryAcquire() {
		t.Error("TryAcquire after Release = false, want true")
	}
}

func TestFlightSingleWinner(t *testing.T) {
	var f Flight
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.TryAcquire() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("winners = %d, want 1", got)
	}
}
