//go:build linux

package channel

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kernelfs/fusekernel/msgbuf"
)

// pipePair is one kernel pipe used as the splice/vmsplice relay between
// the device fd and a Buffer. Adapted from the pairPool/Pair shape in
// hanwen-go-fuse's splice package, trimmed to what one Channel needs: a
// Channel already owns its pipe for its whole lifetime rather than
// borrowing one from a shared pool per request, since buffers here are
// already thread-local per spec.md §4.1.
type pipePair struct {
	r, w int
}

func newPipePair() (*pipePair, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("channel: pipe2: %w", err)
	}
	return &pipePair{r: fds[0], w: fds[1]}, nil
}

func (p *pipePair) Close() error {
	err1 := unix.Close(p.r)
	err2 := unix.Close(p.w)
	if err1 != nil {
		return err1
	}
	return err2
}

func spliceSupported() bool { return true }

func cloneDeviceFd(fd int) (int, error) {
	newFd, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), fuseDevIOCClone, uintptr(0))
	if errno != 0 {
		return 0, errno
	}
	return int(newFd), nil
}

// fuseDevIOCClone is FUSE_DEV_IOC_CLONE, _IOR(229, 0, uint32).
const fuseDevIOCClone = 0x8004e500

// recvSplice moves pages from the device into the pipe, then vmsplices
// the pipe's contents into buf.
func (c *Channel) recvSplice(buf *msgbuf.Buffer) (int, error) {
	moved, err := unix.Splice(c.fd, nil, c.pipe.w, nil, len(buf.Bytes()), unix.SPLICE_F_MOVE)
	if err != nil {
		return 0, err
	}
	if moved == 0 {
		return 0, nil
	}
	iov := []unix.Iovec{{Base: &buf.Bytes()[0], Len: uint64(moved)}}
	got, err := unix.Vmsplice(c.pipe.r, iov, 0)
	if err != nil {
		return 0, err
	}
	return got, nil
}

// sendSplice vmsplices iov into the pipe, then splices the pipe out to
// the device.
func (c *Channel) sendSplice(iov [][]byte) error {
	total := 0
	vecs := make([]unix.Iovec, 0, len(iov))
	for i := range iov {
		if len(iov[i]) == 0 {
			continue
		}
		vecs = append(vecs, unix.Iovec{Base: &iov[i][0], Len: uint64(len(iov[i]))})
		total += len(iov[i])
	}
	if total == 0 {
		return nil
	}
	n, err := unix.Vmsplice(c.pipe.w, vecs, 0)
	if err != nil {
		return fmt.Errorf("channel: vmsplice: %w", err)
	}
	remaining := n
	for remaining > 0 {
		wrote, err := unix.Splice(c.pipe.r, nil, c.fd, nil, remaining, unix.SPLICE_F_MOVE)
		if err != nil {
			return fmt.Errorf("channel: splice out: %w", err)
		}
		remaining -= int(wrote)
	}
	return nil
}
