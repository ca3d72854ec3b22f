package channel

import (
	"testing"
	"unsafe"

	"github.com/kernelfs/fusekernel/wire"
)

func TestHeaderSizeMatchesWireInHeader(t *testing.T) {
	if headerSize <= 0 {
		t.Fatalf("headerSize should be positive, got %d", headerSize)
	}
	var h wire.InHeader
	if headerSize != int(unsafe.Sizeof(h)) {
		t.Fatalf("headerSize = %d, want sizeof(wire.InHeader) = %d", headerSize, unsafe.Sizeof(h))
	}
}

func TestRetryableErrnoSet(t *testing.T) {
	cases := map[string]bool{
		"EINTR":  true,
		"EAGAIN": true,
		"ENOENT": true,
	}
	if len(retryableErrno) != len(cases) {
		t.Fatalf("expected %d retryable errnos, got %d", len(cases), len(retryableErrno))
	}
}
