//go:build !linux

package channel

import (
	"errors"

	"github.com/kernelfs/fusekernel/msgbuf"
)

// pipePair is unused outside Linux; splice/vmsplice are Linux-only
// syscalls, so non-Linux builds always fall back to plain read/writev.
type pipePair struct{}

func newPipePair() (*pipePair, error) {
	return nil, errors.New("channel: splice unsupported on this platform")
}

func (p *pipePair) Close() error { return nil }

func spliceSupported() bool { return false }

// cloneDeviceFd is a no-op outside Linux: there is no session-cloning
// ioctl to call, so callers keep using fd directly.
func cloneDeviceFd(fd int) (int, error) { return fd, nil }

func (c *Channel) recvSplice(buf *msgbuf.Buffer) (int, error) {
	return 0, errors.New("channel: splice unsupported on this platform")
}

func (c *Channel) sendSplice(iov [][]byte) error {
	return errors.New("channel: splice unsupported on this platform")
}
