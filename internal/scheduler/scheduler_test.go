package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) Prune() int {
	p.calls.Add(1)
	return 1
}

func TestSchedulerRunsPrune(t *testing.T) {
	p := &countingPruner{}
	s := New(p, 50*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prune job never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
