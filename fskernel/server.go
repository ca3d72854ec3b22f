// Package fskernel wires channel, msgbuf, workerpool, session, inode,
// dispatch, and maintenance into the one Server spec.md §2's data-flow
// diagram describes: kernel device -> Channel -> MessageBuffer ->
// ReadPool worker -> ProcessPool worker -> Dispatcher -> Filesystem
// Provider callback -> Reply codec -> Channel -> kernel device, with the
// Maintenance thread running out of band. DESIGN.md's Open Questions
// record that the two competing event-loop variants the original
// implements are unified here into this single loop, not exposed as a
// choice.
package fskernel

import (
	"context"
	"log"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kernelfs/fusekernel/channel"
	"github.com/kernelfs/fusekernel/dispatch"
	"github.com/kernelfs/fusekernel/inode"
	"github.com/kernelfs/fusekernel/maintenance"
	"github.com/kernelfs/fusekernel/msgbuf"
	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/session"
	"github.com/kernelfs/fusekernel/wire"
	"github.com/kernelfs/fusekernel/workerpool"
)

var headerSize = int(unsafe.Sizeof(wire.InHeader{}))
var initInSize = int(unsafe.Sizeof(wire.InitIn{}))

// Server owns every per-mount resource: the channel to the kernel device,
// the negotiated session, the inode cache, the recycled message buffers,
// the read/process worker pools, and the maintenance tick. One Server
// serves exactly one mount, per DESIGN.md's "one session per mount is the
// sole lifecycle boundary" decision.
type Server struct {
	ch       *channel.Channel
	bufPool  *msgbuf.Pool
	sess     *session.Session
	cache    *inode.Cache
	provider provider.Provider
	table    *dispatch.Table
	workers  *workerpool.Pool
	maint    *maintenance.Thread

	opts session.Options
	// initHook lets an embedding Provider restrict capabilities during
	// INIT negotiation (spec.md §4.5 step 4); nil if the Provider doesn't
	// care.
	initHook session.InitHook
}

// New creates a Server over an already-open device fd (handed in by a
// mount helper; this core never calls mount(2) itself per spec.md §6) and
// the Filesystem Provider that will service requests once INIT completes.
func New(fd int, p provider.Provider, opts session.Options) (*Server, error) {
	ch, err := channel.Open(fd, channel.Options{TrySplice: true})
	if err != nil {
		return nil, err
	}

	bufPool := msgbuf.NewPool(0, 32)
	cfg := workerpool.Resolve(opts.ReadThreads, opts.ProcessThreads, 0)
	cfg.Affinity = workerpool.Strategy(opts.AffinityStrategy)

	s := &Server{
		ch:       ch,
		bufPool:  bufPool,
		sess:     session.New(),
		cache:    inode.NewCache(opts.RememberInodes),
		provider: p,
		table:    dispatch.NewTable(),
		opts:     opts,
		maint:    maintenance.New(maintenance.DefaultInterval),
	}

	s.maint.PushJob(maintenance.ForgetPruneJob(s.cache, opts.RememberTTL, timeNowFunc))
	s.maint.PushJob(maintenance.BufferGcJob(s.bufPool))

	s.workers = workerpool.New(cfg, bufPool, s.read, s.process, 2)

	return s, nil
}

var timeNowFunc = time.Now

// Serve starts the worker pools and the maintenance thread; it returns
// immediately. Call Wait or watch Exited to learn when the session ends.
func (s *Server) Serve(ctx context.Context) {
	s.maint.Start(ctx)
	s.workers.Start(ctx)
}

// Exited reports the same signal workerpool.Pool.Exited does: closed the
// instant any worker goroutine returns, for a supervisor that wants to
// notice an unexpected crash.
func (s *Server) Exited() <-chan struct{} { return s.workers.Exited() }

// Stop cancels every worker and the maintenance thread, joins them, runs
// the DESTROY safeguard if the kernel never sent one, and closes the
// channel.
func (s *Server) Stop() {
	s.workers.Stop()
	s.maint.Stop()
	s.table.CancelAll()
	s.sess.Destroy(destroyAdapter{s.provider})
	s.ch.Close()
}

// destroyAdapter satisfies session.Session.Destroy's provider parameter,
// which only needs the no-argument shutdown hook, not the full
// provider.Provider surface.
type destroyAdapter struct{ p provider.Provider }

func (d destroyAdapter) Destroy() { d.p.Destroy(context.Background()) }

// read is the workerpool.Reader: a single blocking Channel.Recv call.
// Retryable errnos (bare unix.Errno values per channel.Recv's contract)
// are folded into (0, nil) so the read loop just spins around for
// another attempt instead of treating them as fatal.
func (s *Server) read(ctx context.Context, buf *msgbuf.Buffer) (int, error) {
	n, err := s.ch.Recv(buf)
	if err == nil || err == channel.ErrClosed {
		return n, err
	}
	if _, ok := err.(unix.Errno); ok {
		return 0, nil
	}
	return n, err
}

// process is the workerpool.Processor: decode the in-header, dispatch (or
// run INIT negotiation), and send exactly one reply unless the opcode is
// reply-suppressing.
func (s *Server) process(ctx context.Context, t workerpool.Task) {
	if t.Err != nil || t.N < headerSize {
		return
	}

	raw := t.Buf.Bytes()[:t.N]
	hdr := (*wire.InHeader)(unsafe.Pointer(&raw[0]))
	arg := raw[headerSize:]

	if !s.sess.GotInit {
		s.handlePreInit(hdr, arg)
		return
	}

	req := s.table.Begin(ctx, hdr, arg)
	defer s.table.End(req)

	if wire.Opcode(hdr.Opcode) == wire.OpInit {
		// A second INIT after negotiation already completed is a
		// protocol violation; reply -EIO and otherwise ignore it.
		s.sendErr(hdr.Unique, wire.Status(-5)) // -EIO
		return
	}

	reply := dispatch.Dispatch(s.provider, s.table, req)
	if wire.Opcode(hdr.Opcode) == wire.OpDestroy {
		s.sess.GotDestroy = true
	}
	if reply.Suppress {
		return
	}
	s.sendReply(hdr.Unique, reply)
}

// handlePreInit implements spec.md §4.4 point 3: before negotiation
// completes only FUSE_INIT is dispatched, everything else replies -EIO.
func (s *Server) handlePreInit(hdr *wire.InHeader, arg []byte) {
	if wire.Opcode(hdr.Opcode) != wire.OpInit || len(arg) < initInSize {
		s.sendErr(hdr.Unique, wire.Status(-5)) // -EIO
		return
	}

	in := (*wire.InitIn)(unsafe.Pointer(&arg[0]))
	result, out, err := s.sess.Negotiate(in, s.initHook, s.bufPool)
	if err != nil {
		log.Printf("fskernel: INIT negotiation failed: %v", err)
	}

	switch result {
	case session.ResultReject:
		s.sendErr(hdr.Unique, wire.Status(-71)) // -EPROTO
	case session.ResultAwaitRetry, session.ResultReply:
		s.sendInitReply(hdr.Unique, out)
	}
}

func (s *Server) sendInitReply(unique uint64, out *wire.InitOut) {
	payload := bytesOf(out)
	s.sendRaw(unique, wire.OK, payload)
}

func (s *Server) sendReply(unique uint64, r dispatch.Reply) {
	s.sendRaw(unique, r.Status, r.Payload)
}

func (s *Server) sendErr(unique uint64, status wire.Status) {
	s.sendRaw(unique, status, nil)
}

func (s *Server) sendRaw(unique uint64, status wire.Status, payload []byte) {
	out := wire.OutHeader{
		Len:    uint32(int(unsafe.Sizeof(wire.OutHeader{})) + len(payload)),
		Error:  int32(status),
		Unique: unique,
	}
	hdrBytes := bytesOf(&out)
	var iov [][]byte
	if len(payload) > 0 {
		iov = [][]byte{hdrBytes, payload}
	} else {
		iov = [][]byte{hdrBytes}
	}
	if err := s.ch.Send(iov); err != nil {
		log.Printf("fskernel: send reply unique=%d: %v", unique, err)
	}
}

func bytesOf[T any](v *T) []byte {
	var zero T
	n := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), n)
}
