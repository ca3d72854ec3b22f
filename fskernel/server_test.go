package fskernel

import (
	"context"
	"syscall"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/session"
	"github.com/kernelfs/fusekernel/wire"
)

// stubProvider answers every call with ENOSYS except Lookup, which is
// enough to exercise the post-INIT dispatch path end to end.
type stubProvider struct{ provider.UnimplementedProvider }

func (stubProvider) Lookup(ctx context.Context, parent uint64, name string) (provider.LookupResult, error) {
	return provider.LookupResult{NodeId: 42, Attr: wire.Attr{Ino: 42, Mode: 0100644}}, nil
}

func (stubProvider) Destroy(ctx context.Context) {}

// openSocketpair returns a connected pair of fds standing in for the
// kernel device: kernelEnd is held by the test to send requests and read
// replies, serverEnd is handed to New the way /dev/fuse's fd would be.
func openSocketpair(t *testing.T) (kernelEnd, serverEnd int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fds[0], fds[1]
}

func writeMessage(t *testing.T, fd int, opcode wire.Opcode, unique uint64, arg []byte) {
	t.Helper()
	hdr := wire.InHeader{
		Len:    uint32(int(unsafe.Sizeof(wire.InHeader{})) + len(arg)),
		Opcode: opcode,
		Unique: unique,
	}
	buf := make([]byte, unsafe.Sizeof(hdr))
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(&hdr)), unsafe.Sizeof(hdr)))
	buf = append(buf, arg...)
	if _, err := unix.Write(fd, buf); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readReply(t *testing.T, fd int) (wire.OutHeader, []byte) {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := unix.Read(fd, buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var out wire.OutHeader
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out)), unsafe.Sizeof(out)), buf[:n])
	return out, buf[unsafe.Sizeof(out):n]
}

func TestServerNegotiatesInitThenDispatches(t *testing.T) {
	kernelEnd, serverEnd := openSocketpair(t)
	defer unix.Close(kernelEnd)

	opts := session.DefaultOptions()
	srv, err := New(serverEnd, stubProvider{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Serve(ctx)
	defer srv.Stop()

	initArg := make([]byte, unsafe.Sizeof(wire.InitIn{}))
	in := (*wire.InitIn)(unsafe.Pointer(&initArg[0]))
	in.Major = wire.FUSE_KERNEL_VERSION
	in.Minor = wire.OurMinorVersion

	writeMessage(t, kernelEnd, wire.OpInit, 1, initArg)
	out, payload := readReply(t, kernelEnd)
	if out.Unique != 1 {
		t.Fatalf("expected reply unique 1, got %d", out.Unique)
	}
	if out.Error != 0 {
		t.Fatalf("expected INIT to succeed, got error %d", out.Error)
	}
	if len(payload) < int(unsafe.Sizeof(wire.InitOut{})) {
		t.Fatalf("INIT reply payload too short: %d bytes", len(payload))
	}

	nameArg := append([]byte("hello"), 0)
	writeMessage(t, kernelEnd, wire.OpLookup, 2, nameArg)

	out2, payload2 := readReply(t, kernelEnd)
	if out2.Unique != 2 {
		t.Fatalf("expected reply unique 2, got %d", out2.Unique)
	}
	if out2.Error != 0 {
		t.Fatalf("expected LOOKUP to succeed, got error %d", out2.Error)
	}
	if len(payload2) == 0 {
		t.Fatalf("expected a non-empty EntryOut payload")
	}
}

func TestServerPreInitRejectsNonInitOpcodes(t *testing.T) {
	kernelEnd, serverEnd := openSocketpair(t)
	defer unix.Close(kernelEnd)

	srv, err := New(serverEnd, stubProvider{}, session.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Serve(ctx)
	defer srv.Stop()

	writeMessage(t, kernelEnd, wire.OpLookup, 7, append([]byte("x"), 0))
	out, _ := readReply(t, kernelEnd)
	if out.Error != -int32(syscall.EIO) {
		t.Fatalf("expected -EIO before INIT, got %d", out.Error)
	}
}
