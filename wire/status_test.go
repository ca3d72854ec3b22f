package wire

import (
	"fmt"
	"syscall"
	"testing"
)

func TestToStatusNil(t *testing.T) {
	if ToStatus(nil) != OK {
		t.Error("nil error should map to OK")
	}
}

func TestToStatusErrno(t *testing.T) {
	got := ToStatus(syscall.ENOENT)
	want := Status(-int32(syscall.ENOENT))
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

type wrappedErrno struct {
	errno syscall.Errno
}

func (w *wrappedErrno) Error() string { return w.errno.Error() }
func (w *wrappedErrno) Unwrap() error { return w.errno }

func TestToStatusUnwrapsErrno(t *testing.T) {
	got := ToStatus(&wrappedErrno{errno: syscall.EACCES})
	want := Status(-int32(syscall.EACCES))
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestToStatusFallsBackToEIO(t *testing.T) {
	got := ToStatus(fmt.Errorf("some opaque failure"))
	want := Status(-int32(syscall.EIO))
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestToStatusClampsOutOfRangeErrno(t *testing.T) {
	got := ToStatus(syscall.Errno(MaxErrno + 1))
	want := Status(-int32(syscall.EIO))
	if got != want {
		t.Errorf("out-of-range errno should clamp to EIO, got %d", got)
	}
}
