package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestThreadRunsJobsOnTick(t *testing.T) {
	th := New(5 * time.Millisecond)
	var count int64
	th.PushJob(func(n int) { atomic.AddInt64(&count, 1) })

	th.Start(context.Background())
	defer th.Stop()

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&count) < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 ticks, got %d", atomic.LoadInt64(&count))
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStopJoinsLoop(t *testing.T) {
	th := New(5 * time.Millisecond)
	th.Start(context.Background())
	done := make(chan struct{})
	go func() {
		th.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

type fakeCache struct {
	pruned int
}

func (f *fakeCache) PruneRemembered(now, ttl int64) int {
	f.pruned++
	return 0
}

func TestForgetPruneJobCalledEachTick(t *testing.T) {
	fc := &fakeCache{}
	base := time.Now()
	job := ForgetPruneJob(fc, time.Minute, func() time.Time { return base })
	job(0)
	job(1)
	if fc.pruned != 2 {
		t.Fatalf("expected PruneRemembered called twice, got %d", fc.pruned)
	}
}
