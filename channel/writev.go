package channel

import "golang.org/x/sys/unix"

// writev writes iov to fd in one syscall, retrying on a partial write by
// advancing past the bytes already written.
func writev(fd int, iov [][]byte) error {
	bufs := make([][]byte, 0, len(iov))
	for _, b := range iov {
		if len(b) > 0 {
			bufs = append(bufs, b)
		}
	}
	for len(bufs) > 0 {
		written, err := unix.Writev(fd, bufs)
		if err != nil {
			return err
		}
		n := int(written)
		if n <= 0 {
			break
		}
		for n > 0 && len(bufs) > 0 {
			if n < len(bufs[0]) {
				bufs[0] = bufs[0][n:]
				n = 0
			} else {
				n -= len(bufs[0])
				bufs = bufs[1:]
			}
		}
	}
	return nil
}
