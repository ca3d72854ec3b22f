// Package provider declares the filesystem backend interface that
// dispatch calls into. Its callback shape is the one deliberate idiom
// borrowed from a non-teacher example: jacobsa-fuse's
// context.Context-based (ctx, *Req) (*Resp, error) FileSystem interface,
// chosen because the wire protocol's operations are request/response
// pairs with cancellation (OP_INTERRUPT), which that shape fits better
// than the teacher's node-method style.
package provider

import (
	"context"

	"github.com/kernelfs/fusekernel/wire"
)

// Attr is wire.Attr itself, the attribute block a Provider fills in;
// nodeid, timestamps of the surrounding reply, and generation are added by
// the caller.
type Attr = wire.Attr

// LookupResult is returned by Lookup and the lookup-producing half of
// Create.
type LookupResult struct {
	NodeId     uint64
	Generation uint64
	Attr       Attr
	EntryValid uint64 // nanoseconds
	AttrValid  uint64 // nanoseconds
}

// OpenResult carries a file handle and FOPEN_* flags back from Open/Create.
type OpenResult struct {
	Fh        uint64
	OpenFlags uint32
}

// IoctlResult carries an ioctl reply. Most calls complete and set Out
// (and Result) for an ordinary reply. A Provider that cannot service the
// ioctl with the buffers already attached to the request (the generic
// arg pointer is too small to hold the real argument structure) instead
// sets Retry with the byte counts it needs copied in/out; dispatch
// replies with FUSE_IOCTL_RETRY and the kernel resubmits the request
// with a larger buffer, mirroring fuse_reply_ioctl_retry.
type IoctlResult struct {
	Result  int32
	Out     []byte
	Retry   bool
	InSize  uint32
	OutSize uint32
}

// PollResult carries the ready-events mask back from Poll. If Kh is
// nonzero the kernel was asked to notify nodeId/fh on future readiness
// via NOTIFY_POLL using that handle, mirroring fuse_reply_poll's
// pairing with fuse_lowlevel_notify_poll.
type PollResult struct {
	Revents uint32
}

// Provider is implemented by a filesystem backend. Every method receives
// a context canceled when the kernel sends OP_INTERRUPT for that
// request's unique id (see dispatch.Request.Context); a Provider that
// wants prompt cancellation must check ctx itself; nothing forcibly
// aborts a callback that doesn't. Methods a backend does not implement
// should be embedded from UnimplementedProvider, which returns ENOSYS.
type Provider interface {
	Lookup(ctx context.Context, parent uint64, name string) (LookupResult, error)
	Forget(ctx context.Context, nodeId uint64, count uint64)
	GetAttr(ctx context.Context, nodeId uint64, fh uint64, fhValid bool) (Attr, error)
	SetAttr(ctx context.Context, nodeId uint64, in *wire.SetAttrIn) (Attr, error)
	Readlink(ctx context.Context, nodeId uint64) (string, error)
	Symlink(ctx context.Context, parent uint64, name, target string) (LookupResult, error)
	Mknod(ctx context.Context, parent uint64, name string, mode, rdev uint32) (LookupResult, error)
	Mkdir(ctx context.Context, parent uint64, name string, mode uint32) (LookupResult, error)
	Unlink(ctx context.Context, parent uint64, name string) error
	Rmdir(ctx context.Context, parent uint64, name string) error
	Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error
	Link(ctx context.Context, nodeId, newParent uint64, newName string) (LookupResult, error)
	Open(ctx context.Context, nodeId uint64, flags uint32) (OpenResult, error)
	Read(ctx context.Context, nodeId, fh uint64, offset int64, size uint32) ([]byte, error)
	Write(ctx context.Context, nodeId, fh uint64, offset int64, data []byte) (uint32, error)
	Statfs(ctx context.Context, nodeId uint64) (wire.Kstatfs, error)
	Release(ctx context.Context, nodeId, fh uint64, flags uint32)
	Fsync(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error
	SetXAttr(ctx context.Context, nodeId uint64, name string, value []byte, flags uint32) error
	GetXAttr(ctx context.Context, nodeId uint64, name string, size uint32) ([]byte, error)
	ListXAttr(ctx context.Context, nodeId uint64, size uint32) ([]byte, error)
	RemoveXAttr(ctx context.Context, nodeId uint64, name string) error
	Flush(ctx context.Context, nodeId, fh uint64) error
	OpenDir(ctx context.Context, nodeId uint64, flags uint32) (OpenResult, error)
	ReadDir(ctx context.Context, nodeId, fh uint64, offset int64) ([]DirEntry, error)
	ReleaseDir(ctx context.Context, nodeId, fh uint64)
	FsyncDir(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error
	GetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64) (wire.FileLock, error)
	SetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64, wait bool) error
	Access(ctx context.Context, nodeId uint64, mask uint32) error
	Create(ctx context.Context, parent uint64, name string, flags, mode uint32) (LookupResult, OpenResult, error)
	Bmap(ctx context.Context, nodeId uint64, blockSize uint32, block uint64) (uint64, error)
	Ioctl(ctx context.Context, nodeId, fh uint64, cmd uint32, arg uint64, in []byte, outSize uint32) (IoctlResult, error)
	// Poll reports the ready-events mask for nodeId/fh, optionally
	// registering kh for a future NOTIFY_POLL wakeup when flags carries
	// FUSE_POLL_SCHEDULE_NOTIFY.
	Poll(ctx context.Context, nodeId, fh, kh uint64, flags uint32) (PollResult, error)
	// Statx returns the extended stat(2)-style attributes OP_STATX asks
	// for, honoring fhValid/fh the same way GetAttr does and sxFlags/
	// sxMask the way statx(2) itself does.
	Statx(ctx context.Context, nodeId uint64, fh uint64, fhValid bool, sxFlags, sxMask uint32) (wire.Statx, error)
	Destroy(ctx context.Context)
}

// DirEntry is one entry returned from ReadDir.
type DirEntry struct {
	NodeId uint64
	Name   string
	Mode   uint32
	Offset int64
}
