package syncutil

import (
	"testing"
	"time"
)

func TestDecoderWakeWakesWaiter(t *testing.T) {
	h := NewHub()
	woke := make(chan struct{})

	h.Lock()
	go func() {
		h.Lock()
		h.DecoderWake.Wait()
		h.Unlock()
		close(woke)
	}()
	h.Unlock()

	// Give the goroutine a chance to reach Wait before signalling.
	time.Sleep(10 * time.Millisecond)

	h.Lock()
	h.DecoderWake.Signal()
	h.Unlock()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("DecoderWake.Signal did not wake the waiter in time")
	}
}

func TestConditionsShareOneMutex(t *testing.T) {
	h := NewHub()
	if h.PlayerWake.L != &h.Mu || h.DecoderWake.L != &h.Mu || h.ClientWake.L != &h.Mu {
		t.Fatalf("expected all three Conds to share Hub's mutex")
	}
}
