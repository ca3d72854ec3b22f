// Package dispatch turns decoded wire messages into Provider calls and
// encodes their results back into reply bytes. The opcode space is
// represented as a single closed switch rather than a sparse function
// pointer array, per the union-of-behaviors decision recorded in
// DESIGN.md's Open Questions section: there is one dispatch table, not a
// choice between competing event-loop styles.
package dispatch

import (
	"context"
	"sync"
	"syscall"

	"github.com/kernelfs/fusekernel/wire"
)

// Request is one decoded in-flight kernel message. Its Context is
// canceled when an OP_INTERRUPT names its Unique id, so a cooperative
// Provider can observe cancellation; nothing forcibly aborts a Provider
// callback that ignores ctx (documented limitation, see
// provider.Provider).
type Request struct {
	Header *wire.InHeader
	Opcode wire.Opcode
	Arg    []byte // opcode-specific payload, past InHeader

	ctx    context.Context
	cancel context.CancelFunc
}

func newRequest(parent context.Context, hdr *wire.InHeader, arg []byte) *Request {
	ctx, cancel := context.WithCancel(parent)
	return &Request{
		Header: hdr,
		Opcode: wire.Opcode(hdr.Opcode),
		Arg:    arg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the request's cancelable context.
func (r *Request) Context() context.Context { return r.ctx }

// Table tracks in-flight requests by unique id so OP_INTERRUPT can cancel
// them, and suppresses that cancellation once a request has already
// completed. Grounded on protocolServer's reqInflight/interruptMu and
// interruptRequest/cancelAll pair in the teacher.
type Table struct {
	mu       sync.Mutex
	inflight map[uint64]*Request
	dead     bool
}

// NewTable returns an empty in-flight request table.
func NewTable() *Table {
	return &Table{inflight: make(map[uint64]*Request)}
}

// Begin registers a new in-flight request derived from ctx and returns it.
// Callers must call End when the request completes.
func (t *Table) Begin(ctx context.Context, hdr *wire.InHeader, arg []byte) *Request {
	req := newRequest(ctx, hdr, arg)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[hdr.Unique] = req
	return req
}

// End removes req from the in-flight table and releases its context.
func (t *Table) End(req *Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, req.Header.Unique)
	req.cancel()
}

// Interrupt cancels the in-flight request with the given unique id, if
// any. It reports wire.OK if a request was found and canceled, or
// syscall-style EAGAIN-as-Status if the request already finished or was
// never seen — matching the kernel's retry-on-EAGAIN convention for
// OP_INTERRUPT.
func (t *Table) Interrupt(unique uint64) wire.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.inflight[unique]
	if !ok {
		return wire.ToStatus(syscall.EAGAIN)
	}
	req.cancel()
	return wire.OK
}

// CancelAll cancels every currently in-flight request, used on channel
// teardown so blocked Provider callbacks relying on ctx unwind.
func (t *Table) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dead = true
	for _, req := range t.inflight {
		req.cancel()
	}
}
