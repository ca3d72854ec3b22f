package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kernelfs/fusekernel/msgbuf"
)

func TestPoolSynchronousProcessesReads(t *testing.T) {
	bufPool := msgbuf.NewPool(4096, 1)
	var processed int64
	var reads int64

	reader := func(ctx context.Context, buf *msgbuf.Buffer) (int, error) {
		n := atomic.AddInt64(&reads, 1)
		if n > 3 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 1, nil
	}
	proc := func(ctx context.Context, tsk Task) {
		if tsk.Err == nil {
			atomic.AddInt64(&processed, 1)
		}
	}

	cfg := Config{ReadThreads: 1, Mode: Synchronous}
	p := New(cfg, bufPool, reader, proc, 0)
	p.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&processed) < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for synchronous processing")
		case <-time.After(time.Millisecond):
		}
	}
	p.Stop()
}

func TestPoolAsynchronousProcessesReads(t *testing.T) {
	bufPool := msgbuf.NewPool(4096, 1)
	var processed int64
	var reads int64

	reader := func(ctx context.Context, buf *msgbuf.Buffer) (int, error) {
		n := atomic.AddInt64(&reads, 1)
		if n > 5 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 1, nil
	}
	proc := func(ctx context.Context, tsk Task) {
		if tsk.Err == nil {
			atomic.AddInt64(&processed, 1)
		}
	}

	cfg := Config{ReadThreads: 2, ProcessThreads: 2, Mode: Asynchronous}
	p := New(cfg, bufPool, reader, proc, 2)
	p.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&processed) < 5 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for asynchronous processing")
		case <-time.After(time.Millisecond):
		}
	}
	p.Stop()
}
