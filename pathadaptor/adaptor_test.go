package pathadaptor

import (
	"context"
	"sync"
	"syscall"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/kernelfs/fusekernel/inode"
	"github.com/kernelfs/fusekernel/session"
	"github.com/kernelfs/fusekernel/wire"
)

// memBackend is a minimal in-memory Backend for exercising the adaptor's
// path resolution and cache-interning behavior without a real kernel.
type memBackend struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{dirs: map[string]bool{"/": true}, files: map[string][]byte{}}
}

func (m *memBackend) GetAttr(ctx context.Context, path string) (wire.Attr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[path] {
		return wire.Attr{Ino: 1, Mode: 040755}, nil
	}
	if data, ok := m.files[path]; ok {
		return wire.Attr{Ino: 2, Mode: 0100644, Size: uint64(len(data))}, nil
	}
	return wire.Attr{}, syscall.ENOENT
}

func (m *memBackend) SetAttr(ctx context.Context, path string, in *wire.SetAttrIn) (wire.Attr, error) {
	return m.GetAttr(ctx, path)
}
func (m *memBackend) Readlink(ctx context.Context, path string) (string, error) { return "", syscall.ENOSYS }
func (m *memBackend) Symlink(ctx context.Context, target, path string) (wire.Attr, error) {
	return wire.Attr{}, syscall.ENOSYS
}
func (m *memBackend) Mknod(ctx context.Context, path string, mode, rdev uint32) (wire.Attr, error) {
	return wire.Attr{}, syscall.ENOSYS
}
func (m *memBackend) Mkdir(ctx context.Context, path string, mode uint32) (wire.Attr, error) {
	m.mu.Lock()
	m.dirs[path] = true
	m.mu.Unlock()
	return wire.Attr{Ino: 1, Mode: 040755}, nil
}
func (m *memBackend) Unlink(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}
func (m *memBackend) Rmdir(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dirs, path)
	return nil
}
func (m *memBackend) Rename(ctx context.Context, oldPath, newPath string, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[oldPath]; ok {
		delete(m.files, oldPath)
		m.files[newPath] = data
		return nil
	}
	if m.dirs[oldPath] {
		delete(m.dirs, oldPath)
		m.dirs[newPath] = true
		return nil
	}
	return syscall.ENOENT
}
func (m *memBackend) Link(ctx context.Context, targetPath, newPath string) (wire.Attr, error) {
	return wire.Attr{}, syscall.ENOSYS
}
func (m *memBackend) Access(ctx context.Context, path string, mask uint32) error { return nil }
func (m *memBackend) Statfs(ctx context.Context, path string) (wire.Kstatfs, error) {
	return wire.Kstatfs{}, nil
}
func (m *memBackend) SetXAttr(ctx context.Context, path, name string, value []byte, flags uint32) error {
	return syscall.ENOSYS
}
func (m *memBackend) GetXAttr(ctx context.Context, path, name string, size uint32) ([]byte, error) {
	return nil, syscall.ENOSYS
}
func (m *memBackend) ListXAttr(ctx context.Context, path string, size uint32) ([]byte, error) {
	return nil, syscall.ENOSYS
}
func (m *memBackend) RemoveXAttr(ctx context.Context, path, name string) error { return syscall.ENOSYS }

func (m *memBackend) Open(ctx context.Context, path string, flags uint32) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return nil, syscall.ENOENT
	}
	return &memFile{backend: m, path: path}, nil
}

func (m *memBackend) Create(ctx context.Context, path string, flags, mode uint32) (wire.Attr, File, error) {
	m.mu.Lock()
	m.files[path] = nil
	m.mu.Unlock()
	return wire.Attr{Ino: 2, Mode: 0100644}, &memFile{backend: m, path: path}, nil
}

func (m *memBackend) OpenDir(ctx context.Context, path string, flags uint32) (Dir, error) {
	return nil, syscall.ENOSYS
}

func (m *memBackend) Destroy(ctx context.Context) {}

type memFile struct {
	backend *memBackend
	path    string
}

func (f *memFile) Read(ctx context.Context, offset int64, size uint32) ([]byte, error) {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	data := f.backend.files[f.path]
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

func (f *memFile) Write(ctx context.Context, offset int64, data []byte) (uint32, error) {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	cur := f.backend.files[f.path]
	need := offset + int64(len(data))
	if int64(len(cur)) < need {
		grown := make([]byte, need)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], data)
	f.backend.files[f.path] = cur
	return uint32(len(data)), nil
}

func (f *memFile) Flush(ctx context.Context) error        { return nil }
func (f *memFile) Release(ctx context.Context, flags uint32) {}
func (f *memFile) Fsync(ctx context.Context, dataSyncOnly bool) error { return nil }
func (f *memFile) GetLk(ctx context.Context, lock wire.FileLock, owner uint64) (wire.FileLock, error) {
	return lock, nil
}
func (f *memFile) SetLk(ctx context.Context, lock wire.FileLock, owner uint64, wait bool) error {
	return nil
}
func (f *memFile) Bmap(ctx context.Context, blockSize uint32, block uint64) (uint64, error) {
	return 0, syscall.ENOSYS
}
func (f *memFile) Ioctl(ctx context.Context, cmd uint32, arg uint64, in []byte) ([]byte, int32, error) {
	return nil, 0, syscall.ENOSYS
}

func newTestAdaptor() (*Adaptor, *inode.Cache) {
	cache := inode.NewCache(false)
	backend := newMemBackend()
	return New(cache, backend, session.DefaultOptions()), cache
}

func TestLookupMissingIsNegativeCached(t *testing.T) {
	a, _ := newTestAdaptor()
	res, err := a.Lookup(context.Background(), wire.FUSE_ROOT_ID, "missing")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.NodeId != 0 {
		t.Fatalf("negative lookup should have NodeId 0, got %d", res.NodeId)
	}
	if res.EntryValid == 0 {
		t.Fatalf("negative lookup should carry the configured negative-entry TTL")
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	a, _ := newTestAdaptor()
	ctx := context.Background()

	lookup, open, err := a.Create(ctx, wire.FUSE_ROOT_ID, "f", 0, 0644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if lookup.NodeId == 0 {
		t.Fatalf("Create should intern a live node")
	}

	n, err := a.Write(ctx, lookup.NodeId, open.Fh, 0, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	data, err := a.Read(ctx, lookup.NodeId, open.Fh, 0, 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("Read: data=%q err=%v", data, err)
	}

	a.Release(ctx, lookup.NodeId, open.Fh, 0)
	if _, err := a.fileFor(open.Fh); err == nil {
		t.Fatalf("fh should be released after Release")
	}
}

func TestMkdirLookupRoundTrip(t *testing.T) {
	a, _ := newTestAdaptor()
	ctx := context.Background()

	res, err := a.Mkdir(ctx, wire.FUSE_ROOT_ID, "d", 0755)
	if err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	again, err := a.Lookup(ctx, wire.FUSE_ROOT_ID, "d")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if again.NodeId != res.NodeId {
		t.Fatalf("Lookup after Mkdir should return the same nodeid: got %d want %d", again.NodeId, res.NodeId)
	}
}

func TestRenamePreservesIdentity(t *testing.T) {
	a, _ := newTestAdaptor()
	ctx := context.Background()

	dirA, err := a.Mkdir(ctx, wire.FUSE_ROOT_ID, "a", 0755)
	if err != nil {
		t.Fatalf("Mkdir a: %v", err)
	}
	before, _, err := a.Create(ctx, dirA.NodeId, "b", 0, 0644)
	if err != nil {
		t.Fatalf("Create a/b: %v", err)
	}

	if err := a.Rename(ctx, dirA.NodeId, "b", wire.FUSE_ROOT_ID, "b", 0); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	after, err := a.Lookup(ctx, wire.FUSE_ROOT_ID, "b")
	if err != nil {
		t.Fatalf("Lookup after rename: %v", err)
	}
	if after.NodeId != before.NodeId {
		t.Fatalf("rename should preserve nodeid identity: got %d want %d", after.NodeId, before.NodeId)
	}
	if diff := pretty.Compare(before.Attr, after.Attr); diff != "" {
		t.Fatalf("rename changed reported attrs (-before +after):\n%s", diff)
	}
}
