// Package channel implements the OS handle backing one session: the
// kernel device fd, an optional cloned multiplexing fd, and the
// splice/vmsplice fast path with a plain read/writev fallback.
package channel

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kernelfs/fusekernel/msgbuf"
	"github.com/kernelfs/fusekernel/wire"
)

// ErrClosed is returned by Recv when the device end has been closed
// (recv returning 0 bytes read).
var ErrClosed = errors.New("channel: device closed")

// Retryable errnos recv surfaces as retry signals rather than fatal
// failures, per spec.md §4.1.
var retryableErrno = map[unix.Errno]bool{
	unix.EINTR:  true,
	unix.EAGAIN: true,
	unix.ENOENT: true,
}

var headerSize = int(unsafe.Sizeof(wire.InHeader{}))

// Channel wraps one open connection to the kernel device. It has no state
// beyond the handle, optional splice pipe, and flags; concurrent Recv
// calls from multiple threads are safe (the kernel serializes per-fd) but
// each Buffer passed in must be thread-local.
type Channel struct {
	fd        int
	useSplice bool
	pipe      *pipePair
}

// Options configures how a Channel is opened.
type Options struct {
	// TrySplice requests the splice/vmsplice fast path. It is silently
	// downgraded to false on platforms/kernels that don't support it —
	// the negotiated capability bits must never advertise splice support
	// when it isn't actually available.
	TrySplice bool
}

// Open takes ownership of an already-opened device fd (typically
// /dev/fuse, handed in by the mount helper) and attempts to clone it via
// the kernel's session-multiplexing ioctl so multiple Channels can read
// the same session concurrently.
func Open(fd int, opts Options) (*Channel, error) {
	cloned, err := cloneDeviceFd(fd)
	if err != nil {
		cloned = fd
	}

	c := &Channel{fd: cloned}
	if opts.TrySplice && spliceSupported() {
		p, perr := newPipePair()
		if perr == nil {
			c.pipe = p
			c.useSplice = true
		}
	}
	return c, nil
}

// UsesSplice reports whether this Channel negotiated the splice fast
// path; session negotiation must not advertise CAP_SPLICE_* if this is
// false.
func (c *Channel) UsesSplice() bool { return c.useSplice }

// Close releases the channel's fd and pipe, if any.
func (c *Channel) Close() error {
	if c.pipe != nil {
		c.pipe.Close()
	}
	return unix.Close(c.fd)
}

// Recv pulls exactly one request message into buf. It returns the number
// of bytes read, ErrClosed if the device end closed, or an error. Errnos
// in retryableErrno should be treated as a no-op retry by the caller
// rather than a fatal channel failure.
func (c *Channel) Recv(buf *msgbuf.Buffer) (int, error) {
	var n int
	var err error
	if c.useSplice {
		n, err = c.recvSplice(buf)
	} else {
		n, err = unix.Read(c.fd, buf.Bytes())
	}
	if err != nil {
		if errno, ok := err.(unix.Errno); ok && retryableErrno[errno] {
			return 0, errno
		}
		return 0, fmt.Errorf("channel: recv: %w", err)
	}
	if n == 0 {
		return 0, ErrClosed
	}
	if n < headerSize {
		return 0, fmt.Errorf("channel: recv: short read %d bytes, want at least %d: %w", n, headerSize, unix.EIO)
	}
	return n, nil
}

// Send writes one reply built from iov. In splice mode it vmsplices into
// the pipe then splices out to the device; otherwise it uses writev.
func (c *Channel) Send(iov [][]byte) error {
	if c.useSplice {
		return c.sendSplice(iov)
	}
	return writev(c.fd, iov)
}
