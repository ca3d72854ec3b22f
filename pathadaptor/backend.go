// Package pathadaptor implements spec.md §4.8's high-level adaptor: a thin
// layer that lets a Filesystem Provider implement everything in terms of
// absolute paths instead of managing nodeids directly. It resolves
// (parent, name) to a path for lookup-producing opcodes, reconstructs a
// path from a bare nodeid via the inode cache for everything else, and
// layers negative-lookup caching, attribute post-processing, and a
// stat-CRC auto_cache invalidator on top.
//
// Grounded on hanwen-go-fuse/fuse/pathfs.FileSystem (the path-string
// callback shape) and fuse/fsconnector.go's internalLookup/GetAttr
// (negative-entry and use_ino handling).
package pathadaptor

import (
	"context"

	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/wire"
)

// Backend is the path-based filesystem callback surface a Provider
// implements when it doesn't want to manage nodeids itself. It mirrors
// hanwen-go-fuse/fuse/pathfs.FileSystem method-for-method where the
// operation is node-addressed, and uses Go's (value, error) idiom +
// jacobsa-fuse's context.Context in place of the teacher's Status return.
type Backend interface {
	GetAttr(ctx context.Context, path string) (wire.Attr, error)
	SetAttr(ctx context.Context, path string, in *wire.SetAttrIn) (wire.Attr, error)
	Readlink(ctx context.Context, path string) (string, error)
	Symlink(ctx context.Context, target, path string) (wire.Attr, error)
	Mknod(ctx context.Context, path string, mode, rdev uint32) (wire.Attr, error)
	Mkdir(ctx context.Context, path string, mode uint32) (wire.Attr, error)
	Unlink(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string, flags uint32) error
	Link(ctx context.Context, targetPath, newPath string) (wire.Attr, error)
	Access(ctx context.Context, path string, mask uint32) error
	Statfs(ctx context.Context, path string) (wire.Kstatfs, error)
	SetXAttr(ctx context.Context, path, name string, value []byte, flags uint32) error
	GetXAttr(ctx context.Context, path, name string, size uint32) ([]byte, error)
	ListXAttr(ctx context.Context, path string, size uint32) ([]byte, error)
	RemoveXAttr(ctx context.Context, path, name string) error

	// Open returns a File for an existing path; Create additionally makes
	// the path, reporting its fresh attributes for the entry half of the
	// CREATE reply.
	Open(ctx context.Context, path string, flags uint32) (File, error)
	Create(ctx context.Context, path string, flags, mode uint32) (wire.Attr, File, error)
	OpenDir(ctx context.Context, path string, flags uint32) (Dir, error)

	Destroy(ctx context.Context)
}

// File is the per-open-file handle Backend.Open/Create returns; it takes
// over every fh-addressed opcode so the adaptor never needs to re-resolve
// a path for reads and writes against an already-open descriptor. Mirrors
// hanwen-go-fuse/fuse/nodefs.File.
type File interface {
	Read(ctx context.Context, offset int64, size uint32) ([]byte, error)
	Write(ctx context.Context, offset int64, data []byte) (uint32, error)
	Flush(ctx context.Context) error
	Release(ctx context.Context, flags uint32)
	Fsync(ctx context.Context, dataSyncOnly bool) error
	GetLk(ctx context.Context, lock wire.FileLock, owner uint64) (wire.FileLock, error)
	SetLk(ctx context.Context, lock wire.FileLock, owner uint64, wait bool) error
	Bmap(ctx context.Context, blockSize uint32, block uint64) (uint64, error)
	Ioctl(ctx context.Context, cmd uint32, arg uint64, in []byte) ([]byte, int32, error)
}

// Dir is the per-open-directory handle Backend.OpenDir returns.
type Dir interface {
	ReadDir(ctx context.Context, offset int64) ([]provider.DirEntry, error)
	ReleaseDir(ctx context.Context)
	FsyncDir(ctx context.Context, dataSyncOnly bool) error
}
