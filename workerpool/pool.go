package workerpool

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/iobuf"
	"golang.org/x/sync/errgroup"

	"github.com/kernelfs/fusekernel/msgbuf"
)

// Task is one decoded request in flight between the read pool and the
// process pool in asynchronous mode.
type Task struct {
	Buf *msgbuf.Buffer
	N   int // bytes actually read into Buf
	Err error
}

// Reader performs the blocking device read; Processor handles a decoded
// Task. Both are supplied by the caller (the dispatch/session layer) so
// this package stays ignorant of wire-protocol details.
type Reader func(ctx context.Context, buf *msgbuf.Buffer) (n int, err error)
type Processor func(ctx context.Context, t Task)

// Pool runs the read and (optionally) process thread pools for one
// session. In Synchronous mode each read goroutine calls Processor
// itself; in Asynchronous mode read goroutines hand Tasks to a bounded
// slot pool that process goroutines drain.
type Pool struct {
	cfg    Config
	pool   *msgbuf.Pool
	reader Reader
	proc   Processor

	slots *iobuf.BoundedPool[*Task]
	ready chan int

	cancel context.CancelFunc
	// group joins every read/process worker goroutine; Stop cancels the
	// group's context and waits on it instead of a bare sync.WaitGroup,
	// matching the teacher's errgroup-based pool lifecycle.
	group *errgroup.Group
	// exited fires once, the instant any single worker goroutine
	// returns, so a supervising caller can notice an unexpected crash
	// and trigger a full Stop rather than silently running short-handed.
	exited chan struct{}
}

// Exited returns a channel closed the moment any single worker goroutine
// returns, for a caller that wants to notice an unexpected worker death
// and initiate shutdown. It is unrelated to an orderly Stop, which always
// joins every worker regardless of this signal.
func (p *Pool) Exited() <-chan struct{} { return p.exited }

// New creates a Pool. queueDepthPerProc sets the bounded handoff queue's
// capacity as cfg.ProcessThreads * queueDepthPerProc (default 2 per
// spec.md §4.3); it is ignored in Synchronous mode.
func New(cfg Config, bufPool *msgbuf.Pool, reader Reader, proc Processor, queueDepthPerProc int) *Pool {
	if queueDepthPerProc <= 0 {
		queueDepthPerProc = 2
	}
	p := &Pool{cfg: cfg, pool: bufPool, reader: reader, proc: proc}

	if cfg.Mode == Asynchronous {
		capacity := cfg.ProcessThreads * queueDepthPerProc
		if capacity < 1 {
			capacity = 1
		}
		p.slots = iobuf.NewBoundedPool[*Task](capacity)
		p.slots.Fill(func() *Task { return &Task{} })
		p.ready = make(chan int, capacity)
	}
	return p
}

// Start launches the read pool (and process pool, in asynchronous mode)
// and returns immediately; call Stop to cancel and join them.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.exited = make(chan struct{})
	var exitOnce sync.Once

	signalExit := func() { exitOnce.Do(func() { close(p.exited) }) }

	group, gctx := errgroup.WithContext(ctx)
	p.group = group

	logicalCPUs := runtime.NumCPU()
	readPlan := ResolvePin(p.cfg.Affinity, p.cfg.ReadThreads, logicalCPUs, false)

	for i := 0; i < p.cfg.ReadThreads; i++ {
		id := i
		group.Go(func() error {
			defer signalExit()
			pinSelf(readPlan.CPUs[id])
			p.readLoop(gctx, id)
			return nil
		})
	}

	if p.cfg.Mode == Asynchronous {
		procPlan := ResolvePin(p.cfg.Affinity, p.cfg.ProcessThreads, logicalCPUs, true)
		for i := 0; i < p.cfg.ProcessThreads; i++ {
			id := i
			group.Go(func() error {
				defer signalExit()
				pinSelf(procPlan.CPUs[id])
				p.processLoop(gctx, id)
				return nil
			})
		}
	}
}

// pinSelf locks the calling goroutine to its OS thread and pins that
// thread to cpu, a no-op when cpu is -1 (StrategyNone or an unknown
// strategy name).
func pinSelf(cpu int) {
	if cpu < 0 {
		return
	}
	runtime.LockOSThread()
	Pin(cpu)
}

// Stop cancels all workers and blocks until every one has returned.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		_ = p.group.Wait()
	}
}

func (p *Pool) readLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		// AllocWriteAligned, not Alloc, because the opcode isn't known
		// until after the read: every incoming request shares one
		// buffer shape, aligned so a WRITE's payload lands on a page
		// boundary without the kernel needing to shift it, and that
		// alignment costs nothing for the other opcodes sharing it.
		buf, err := p.pool.AllocWriteAligned()
		if err != nil {
			log.Printf("workerpool: read[%d]: alloc failed: %v", id, err)
			sleepBackoff(ctx)
			continue
		}

		n, rerr := p.reader(ctx, buf)
		if ctx.Err() != nil {
			p.pool.Free(buf)
			return
		}

		if p.cfg.Mode == Synchronous {
			p.proc(ctx, Task{Buf: buf, N: n, Err: rerr})
			p.pool.Free(buf)
			continue
		}

		idx, gerr := p.slots.Get()
		if gerr != nil {
			// Pool exhausted and nonblocking (never set here) or a
			// terminal error; drop the read rather than deadlock.
			p.pool.Free(buf)
			continue
		}
		p.slots.SetValue(idx, &Task{Buf: buf, N: n, Err: rerr})
		select {
		case p.ready <- idx:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) processLoop(ctx context.Context, id int) {
	for {
		select {
		case idx := <-p.ready:
			t := p.slots.Value(idx)
			p.proc(ctx, *t)
			p.pool.Free(t.Buf)
			_ = p.slots.Put(idx)
		case <-ctx.Done():
			return
		}
	}
}

func sleepBackoff(ctx context.Context) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
	}
}
