package provider

import (
	"context"
	"syscall"

	"github.com/kernelfs/fusekernel/wire"
)

// UnimplementedProvider implements every Provider method by returning
// ENOSYS (or doing nothing, for the void callbacks). Embed it in a
// backend struct to get default behavior for operations it doesn't
// support, overriding only the methods it does.
type UnimplementedProvider struct{}

var errNosys = syscall.ENOSYS

func (UnimplementedProvider) Lookup(ctx context.Context, parent uint64, name string) (LookupResult, error) {
	return LookupResult{}, errNosys
}
func (UnimplementedProvider) Forget(ctx context.Context, nodeId uint64, count uint64) {}
func (UnimplementedProvider) GetAttr(ctx context.Context, nodeId, fh uint64, fhValid bool) (Attr, error) {
	return Attr{}, errNosys
}
func (UnimplementedProvider) SetAttr(ctx context.Context, nodeId uint64, in *wire.SetAttrIn) (Attr, error) {
	return Attr{}, errNosys
}
func (UnimplementedProvider) Readlink(ctx context.Context, nodeId uint64) (string, error) {
	return "", errNosys
}
func (UnimplementedProvider) Symlink(ctx context.Context, parent uint64, name, target string) (LookupResult, error) {
	return LookupResult{}, errNosys
}
func (UnimplementedProvider) Mknod(ctx context.Context, parent uint64, name string, mode, rdev uint32) (LookupResult, error) {
	return LookupResult{}, errNosys
}
func (UnimplementedProvider) Mkdir(ctx context.Context, parent uint64, name string, mode uint32) (LookupResult, error) {
	return LookupResult{}, errNosys
}
func (UnimplementedProvider) Unlink(ctx context.Context, parent uint64, name string) error {
	return errNosys
}
func (UnimplementedProvider) Rmdir(ctx context.Context, parent uint64, name string) error {
	return errNosys
}
func (UnimplementedProvider) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error {
	return errNosys
}
func (UnimplementedProvider) Link(ctx context.Context, nodeId, newParent uint64, newName string) (LookupResult, error) {
	return LookupResult{}, errNosys
}
func (UnimplementedProvider) Open(ctx context.Context, nodeId uint64, flags uint32) (OpenResult, error) {
	return OpenResult{}, errNosys
}
func (UnimplementedProvider) Read(ctx context.Context, nodeId, fh uint64, offset int64, size uint32) ([]byte, error) {
	return nil, errNosys
}
func (UnimplementedProvider) Write(ctx context.Context, nodeId, fh uint64, offset int64, data []byte) (uint32, error) {
	return 0, errNosys
}
func (UnimplementedProvider) Statfs(ctx context.Context, nodeId uint64) (wire.Kstatfs, error) {
	return wire.Kstatfs{}, errNosys
}
func (UnimplementedProvider) Release(ctx context.Context, nodeId, fh uint64, flags uint32) {}
func (UnimplementedProvider) Fsync(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error {
	return errNosys
}
func (UnimplementedProvider) SetXAttr(ctx context.Context, nodeId uint64, name string, value []byte, flags uint32) error {
	return errNosys
}
func (UnimplementedProvider) GetXAttr(ctx context.Context, nodeId uint64, name string, size uint32) ([]byte, error) {
	return nil, errNosys
}
func (UnimplementedProvider) ListXAttr(ctx context.Context, nodeId uint64, size uint32) ([]byte, error) {
	return nil, errNosys
}
func (UnimplementedProvider) RemoveXAttr(ctx context.Context, nodeId uint64, name string) error {
	return errNosys
}
func (UnimplementedProvider) Flush(ctx context.Context, nodeId, fh uint64) error { return errNosys }
func (UnimplementedProvider) OpenDir(ctx context.Context, nodeId uint64, flags uint32) (OpenResult, error) {
	return OpenResult{}, errNosys
}
func (UnimplementedProvider) ReadDir(ctx context.Context, nodeId, fh uint64, offset int64) ([]DirEntry, error) {
	return nil, errNosys
}
func (UnimplementedProvider) ReleaseDir(ctx context.Context, nodeId, fh uint64) {}
func (UnimplementedProvider) FsyncDir(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error {
	return errNosys
}
func (UnimplementedProvider) GetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64) (wire.FileLock, error) {
	return wire.FileLock{}, errNosys
}
func (UnimplementedProvider) SetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64, wait bool) error {
	return errNosys
}
func (UnimplementedProvider) Access(ctx context.Context, nodeId uint64, mask uint32) error {
	return errNosys
}
func (UnimplementedProvider) Create(ctx context.Context, parent uint64, name string, flags, mode uint32) (LookupResult, OpenResult, error) {
	return LookupResult{}, OpenResult{}, errNosys
}
func (UnimplementedProvider) Bmap(ctx context.Context, nodeId uint64, blockSize uint32, block uint64) (uint64, error) {
	return 0, errNosys
}
func (UnimplementedProvider) Ioctl(ctx context.Context, nodeId, fh uint64, cmd uint32, arg uint64, in []byte, outSize uint32) (IoctlResult, error) {
	return IoctlResult{}, errNosys
}
func (UnimplementedProvider) Poll(ctx context.Context, nodeId, fh, kh uint64, flags uint32) (PollResult, error) {
	return PollResult{}, errNosys
}
func (UnimplementedProvider) Statx(ctx context.Context, nodeId uint64, fh uint64, fhValid bool, sxFlags, sxMask uint32) (wire.Statx, error) {
	return wire.Statx{}, errNosys
}
func (UnimplementedProvider) Destroy(ctx context.Context) {}
