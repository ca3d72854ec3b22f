// Package session implements the INIT negotiation state machine and the
// session-wide configuration that results from it: protocol version,
// negotiated capability bits, and the tunables (max_write, max_background,
// congestion_threshold, max_pages) every other package reads once
// negotiation completes.
package session

import (
	"fmt"
	"log"

	"github.com/kernelfs/fusekernel/msgbuf"
	"github.com/kernelfs/fusekernel/wire"
)

const (
	kernelVersion    = wire.FUSE_KERNEL_VERSION
	minMinorSupported = wire.MinimumMinorVersion
	ourMinorVersion  = wire.OurMinorVersion
)

// WantedCapabilities is the set of capability bits the server is willing
// to advertise if the kernel also supports them. A Provider's Init hook
// may further restrict this set before negotiation completes.
var WantedCapabilities uint32 = wire.CAP_ASYNC_READ |
	wire.CAP_BIG_WRITES |
	wire.CAP_FILE_OPS |
	wire.CAP_ATOMIC_O_TRUNC |
	wire.CAP_AUTO_INVAL_DATA |
	wire.CAP_PARALLEL_DIROPS |
	wire.CAP_MAX_PAGES

// ErrProtocolTooOld is returned when the kernel's major version predates
// what this server can speak at all.
var ErrProtocolTooOld = fmt.Errorf("session: kernel major version below %d", kernelVersion)

// Session holds the negotiated state of one mount.
type Session struct {
	Major, Minor        uint32
	Capable             uint32
	MaxReadahead        uint32
	MaxWrite            uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxPages            uint16

	GotInit    bool
	GotDestroy bool
}

// InitHook lets a provider inspect and further restrict capabilities
// before negotiation replies to the kernel.
type InitHook func(s *Session)

// New creates a Session with defaults used until INIT completes.
func New() *Session {
	return &Session{MaxWrite: 128 * 1024, MaxBackground: 12}
}

// pageSize is a fixed 4096 used by the bounding arithmetic below; it is
// not read from the OS.
const pageSize = 4096

// NegotiateResult distinguishes the three outcomes spec.md §4.5 step 2-3
// names: reject outright, ask the kernel to retry with a compatible
// version, or proceed to a normal reply.
type NegotiateResult int

const (
	ResultReply NegotiateResult = iota
	ResultAwaitRetry
	ResultReject
)

// Negotiate runs one INIT round. On ResultReply, out is populated and
// ready to send; on ResultAwaitRetry the caller sends out once (computed
// the same way) and waits for the kernel's compatible re-INIT without
// marking GotInit; on ResultReject the caller should reply -EPROTO and
// tear the channel down.
func (s *Session) Negotiate(in *wire.InitIn, hook InitHook, pool *msgbuf.Pool) (NegotiateResult, *wire.InitOut, error) {
	if in.Major < kernelVersion {
		return ResultReject, nil, ErrProtocolTooOld
	}

	out := &wire.InitOut{Major: kernelVersion, Minor: ourMinorVersion}

	if in.Major > kernelVersion {
		// Reply once at our version; the kernel re-INITs at a version
		// we both understand. Do not mark GotInit yet.
		log.Printf("session: kernel major %d newer than ours, waiting for compatible re-INIT", in.Major)
		return ResultAwaitRetry, out, nil
	}

	s.Major = in.Major
	s.Minor = in.Minor
	if s.Minor > ourMinorVersion {
		s.Minor = ourMinorVersion
	}

	s.Capable = in.Flags & WantedCapabilities
	s.MaxReadahead = in.MaxReadahead

	if hook != nil {
		hook(s)
	}

	s.boundTunables(pool)

	out.Minor = s.Minor
	out.MaxReadahead = s.MaxReadahead
	out.Flags = s.Capable
	out.MaxWrite = s.MaxWrite
	out.MaxBackground = s.MaxBackground
	out.CongestionThreshold = s.CongestionThreshold
	if s.Capable&wire.CAP_MAX_PAGES != 0 {
		out.MaxPages = s.MaxPages
	}

	s.GotInit = true
	return ResultReply, out, nil
}

func (s *Session) boundTunables(pool *msgbuf.Pool) {
	if s.MaxBackground == 0 {
		s.MaxBackground = 12
	}
	if s.MaxBackground > 65535 {
		s.MaxBackground = 65535
	}
	if s.CongestionThreshold == 0 {
		s.CongestionThreshold = s.MaxBackground * 3 / 4
	}

	if s.MaxWrite == 0 {
		s.MaxWrite = 128 * 1024
	}
	if pool != nil {
		if limit := uint32(pool.BufSize() - pool.PageSize()); s.MaxWrite > limit {
			s.MaxWrite = limit
		}
	}

	if s.Capable&wire.CAP_MAX_PAGES != 0 {
		pages := (s.MaxWrite + pageSize - 1) / pageSize
		if pages > wire.FuseMaxMaxPages {
			pages = wire.FuseMaxMaxPages
			s.MaxWrite = pages * pageSize
		}
		s.MaxPages = uint16(pages)
		if pool != nil {
			pool.SetBufSize(int(pages))
		}
	}
}

// Destroy marks the session torn down. It is idempotent and safe to call
// as a safeguard even if DESTROY was never seen on the wire, the same
// guard spec.md §4.5 describes to prevent provider-resource leaks on an
// abrupt exit.
func (s *Session) Destroy(provider interface{ Destroy() }) {
	if s.GotDestroy {
		return
	}
	s.GotDestroy = true
	if s.GotInit && provider != nil {
		provider.Destroy()
	}
}
