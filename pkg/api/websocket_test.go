package api

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

// Slow subscribers are removed while other goroutines read the client count;
// run with -race.
func TestBroadcastDropsSlowClients(t *testing.T) {
	h := NewHub(zap.NewNop())
	go h.Run()

	// Unbuffered send channels with no reader: every broadcast hits the
	// slow-consumer branch.
	for i := 0; i < 4; i++ {
		h.register <- &client{hub: h, send: make(chan []byte)}
	}
	if got := h.count(); got != 4 {
		t.Fatalf("count = %d, want 4", got)
	}

	counted := make(chan struct{})
	go func() {
		defer close(counted)
		for i := 0; i < 200; i++ {
			h.count()
		}
	}()
	h.Broadcast([]byte(`{"type":"trade"}`))
	<-counted

	deadline := time.Now().Add(2 * time.Second)
	for h.count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slow clients still registered: %d", h.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
