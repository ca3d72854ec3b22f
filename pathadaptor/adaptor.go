package pathadaptor

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"path"
	"syscall"
	"time"

	"github.com/kernelfs/fusekernel/inode"
	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/session"
	"github.com/kernelfs/fusekernel/wire"
)

func monotonicNow() int64 { return time.Now().Unix() }

var _ provider.Provider = (*Adaptor)(nil)

// Adaptor implements provider.Provider over a path-based Backend, using an
// inode.Cache to translate nodeids to/from paths. It is the concrete
// instance of spec.md §4.8.
type Adaptor struct {
	cache   *inode.Cache
	backend Backend
	opts    session.Options
	files   *handleTable
	dirs    *handleTable
}

// New creates an Adaptor over backend, using cache for nodeid<->path
// translation and opts for negative-entry TTL, attr overrides, and
// use_ino behavior.
func New(cache *inode.Cache, backend Backend, opts session.Options) *Adaptor {
	return &Adaptor{cache: cache, backend: backend, opts: opts, files: newHandleTable(), dirs: newHandleTable()}
}

func (a *Adaptor) nodePath(nodeId uint64) (*inode.Node, string, error) {
	n := a.cache.ById(nodeId)
	if n == nil {
		return nil, "", syscall.ENOENT
	}
	if n == a.cache.Root() {
		return n, "/", nil
	}
	p, err := a.cache.PathOf(n, false)
	if err != nil {
		return nil, "", translatePathErr(err)
	}
	return n, p, nil
}

func translatePathErr(err error) error {
	switch err {
	case inode.ErrStale:
		return syscall.ESTALE
	case inode.ErrAgain:
		return syscall.EAGAIN
	default:
		return err
	}
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}

// applyAttrOverrides overlays configured uid/gid/mode defaults and the
// use_ino=false nodeid overlay, the attribute post-processing step spec.md
// §4.8 names. Grounded on fuse/fsconnector.go's use_ino handling.
func (a *Adaptor) applyAttrOverrides(node *inode.Node, attr wire.Attr) wire.Attr {
	if a.opts.DefaultUid != nil {
		attr.Uid = *a.opts.DefaultUid
	}
	if a.opts.DefaultGid != nil {
		attr.Gid = *a.opts.DefaultGid
	}
	if a.opts.DefaultMode != nil {
		attr.Mode = (attr.Mode &^ 0777) | (*a.opts.DefaultMode & 0777)
	}
	if !a.opts.UseIno {
		attr.Ino = node.NodeId
	}
	return attr
}

// statCRC computes the cache-validation CRC spec.md §3 describes over
// (ino, size, mtime).
func statCRC(attr wire.Attr) uint32 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], attr.Ino)
	binary.LittleEndian.PutUint64(buf[8:16], attr.Size)
	binary.LittleEndian.PutUint64(buf[16:24], attr.Mtime)
	return crc32.ChecksumIEEE(buf[:])
}

func (a *Adaptor) lookupResult(node *inode.Node, attr wire.Attr) provider.LookupResult {
	attr = a.applyAttrOverrides(node, attr)
	crc := statCRC(attr)
	node.RecordStatCRC(crc)
	return provider.LookupResult{
		NodeId:     node.NodeId,
		Generation: node.Generation,
		Attr:       attr,
		EntryValid: uint64(a.opts.EntryTTL()),
		AttrValid:  uint64(a.opts.AttrTTL()),
	}
}

func (a *Adaptor) negativeResult() provider.LookupResult {
	return provider.LookupResult{EntryValid: uint64(a.opts.NegativeEntryTTL)}
}

// Lookup resolves (parent, name) to a path, calls the Backend, and interns
// the result into the cache on success. A Backend ENOENT becomes a
// negative cache entry per spec.md §4.8 rather than a wire error.
func (a *Adaptor) Lookup(ctx context.Context, parent uint64, name string) (provider.LookupResult, error) {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return provider.LookupResult{}, err
	}
	attr, err := a.backend.GetAttr(ctx, joinPath(parentPath, name))
	if err == syscall.ENOENT {
		return a.negativeResult(), nil
	}
	if err != nil {
		return provider.LookupResult{}, err
	}
	parentNode := a.cache.ById(parent)
	child := a.cache.LookupOrCreate(parentNode, name)
	return a.lookupResult(child, attr), nil
}

func (a *Adaptor) Forget(ctx context.Context, nodeId uint64, count uint64) {
	a.cache.Forget(nodeId, count, monotonicNow())
}

func (a *Adaptor) GetAttr(ctx context.Context, nodeId uint64, fh uint64, fhValid bool) (wire.Attr, error) {
	node, p, err := a.nodePath(nodeId)
	if err != nil {
		return wire.Attr{}, err
	}
	attr, err := a.backend.GetAttr(ctx, p)
	if err != nil {
		return wire.Attr{}, err
	}
	attr = a.applyAttrOverrides(node, attr)
	// RecordStatCRC latches auto_cache invalidation internally; callers
	// needing it check node.AutoCacheEnabled() after this returns.
	node.RecordStatCRC(statCRC(attr))
	return attr, nil
}

func (a *Adaptor) SetAttr(ctx context.Context, nodeId uint64, in *wire.SetAttrIn) (wire.Attr, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return wire.Attr{}, err
	}
	attr, err := a.backend.SetAttr(ctx, p, in)
	if err != nil {
		return wire.Attr{}, err
	}
	node := a.cache.ById(nodeId)
	return a.applyAttrOverrides(node, attr), nil
}

func (a *Adaptor) Readlink(ctx context.Context, nodeId uint64) (string, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return "", err
	}
	return a.backend.Readlink(ctx, p)
}

func (a *Adaptor) Symlink(ctx context.Context, parent uint64, name, target string) (provider.LookupResult, error) {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return provider.LookupResult{}, err
	}
	childPath := joinPath(parentPath, name)
	attr, err := a.backend.Symlink(ctx, target, childPath)
	if err != nil {
		return provider.LookupResult{}, err
	}
	parentNode := a.cache.ById(parent)
	child := a.cache.LookupOrCreate(parentNode, name)
	return a.lookupResult(child, attr), nil
}

func (a *Adaptor) Mknod(ctx context.Context, parent uint64, name string, mode, rdev uint32) (provider.LookupResult, error) {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return provider.LookupResult{}, err
	}
	attr, err := a.backend.Mknod(ctx, joinPath(parentPath, name), mode, rdev)
	if err != nil {
		return provider.LookupResult{}, err
	}
	parentNode := a.cache.ById(parent)
	child := a.cache.LookupOrCreate(parentNode, name)
	return a.lookupResult(child, attr), nil
}

func (a *Adaptor) Mkdir(ctx context.Context, parent uint64, name string, mode uint32) (provider.LookupResult, error) {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return provider.LookupResult{}, err
	}
	attr, err := a.backend.Mkdir(ctx, joinPath(parentPath, name), mode)
	if err != nil {
		return provider.LookupResult{}, err
	}
	parentNode := a.cache.ById(parent)
	child := a.cache.LookupOrCreate(parentNode, name)
	return a.lookupResult(child, attr), nil
}

func (a *Adaptor) Unlink(ctx context.Context, parent uint64, name string) error {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return err
	}
	return a.backend.Unlink(ctx, joinPath(parentPath, name))
}

func (a *Adaptor) Rmdir(ctx context.Context, parent uint64, name string) error {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return err
	}
	return a.backend.Rmdir(ctx, joinPath(parentPath, name))
}

// Rename resolves both parent paths together via AcquirePath2 (spec.md
// §4.6's two-path deadlock avoidance) and keeps both tree-locks held
// across the Backend call and the cache update, so no concurrent path_of
// walk can observe or act on a half-renamed tree.
func (a *Adaptor) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error {
	oldParentNode := a.cache.ById(oldParent)
	newParentNode := a.cache.ById(newParent)
	if oldParentNode == nil || newParentNode == nil {
		return syscall.ENOENT
	}

	var oldParentPath, newParentPath string
	var release func()
	err := a.cache.WaitAndRetry(func() error {
		var err error
		oldParentPath, newParentPath, release, err = a.cache.AcquirePath2(oldParentNode, newParentNode, true)
		return err
	})
	if err != nil {
		return translatePathErr(err)
	}
	defer release()

	oldPath := joinPath(oldParentPath, oldName)
	newPath := joinPath(newParentPath, newName)
	if err := a.backend.Rename(ctx, oldPath, newPath, flags); err != nil {
		return err
	}
	return a.cache.Rename(oldParentNode, oldName, newParentNode, newName)
}

// Link keeps the tree-lock on the link target and the destination parent
// held across the Backend call and the cache update, for the same reason
// Rename does: spec.md §4.6's two-path deadlock avoidance only protects
// the operation if the lock outlives the path lookup.
func (a *Adaptor) Link(ctx context.Context, nodeId, newParent uint64, newName string) (provider.LookupResult, error) {
	targetNode := a.cache.ById(nodeId)
	newParentNode := a.cache.ById(newParent)
	if targetNode == nil || newParentNode == nil {
		return provider.LookupResult{}, syscall.ENOENT
	}

	var targetPath, newParentPath string
	var release func()
	err := a.cache.WaitAndRetry(func() error {
		var err error
		targetPath, newParentPath, release, err = a.cache.AcquirePath2(targetNode, newParentNode, true)
		return err
	})
	if err != nil {
		return provider.LookupResult{}, translatePathErr(err)
	}
	defer release()

	newPath := joinPath(newParentPath, newName)
	attr, err := a.backend.Link(ctx, targetPath, newPath)
	if err != nil {
		return provider.LookupResult{}, err
	}
	child := a.cache.LookupOrCreate(newParentNode, newName)
	return a.lookupResult(child, attr), nil
}

func (a *Adaptor) Open(ctx context.Context, nodeId uint64, flags uint32) (provider.OpenResult, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return provider.OpenResult{}, err
	}
	f, err := a.backend.Open(ctx, p, flags)
	if err != nil {
		return provider.OpenResult{}, err
	}
	return provider.OpenResult{Fh: a.files.Register(f)}, nil
}

func (a *Adaptor) fileFor(fh uint64) (File, error) {
	v := a.files.Lookup(fh)
	f, ok := v.(File)
	if !ok {
		return nil, syscall.EBADF
	}
	return f, nil
}

func (a *Adaptor) dirFor(fh uint64) (Dir, error) {
	v := a.dirs.Lookup(fh)
	d, ok := v.(Dir)
	if !ok {
		return nil, syscall.EBADF
	}
	return d, nil
}

func (a *Adaptor) Read(ctx context.Context, nodeId, fh uint64, offset int64, size uint32) ([]byte, error) {
	f, err := a.fileFor(fh)
	if err != nil {
		return nil, err
	}
	return f.Read(ctx, offset, size)
}

func (a *Adaptor) Write(ctx context.Context, nodeId, fh uint64, offset int64, data []byte) (uint32, error) {
	f, err := a.fileFor(fh)
	if err != nil {
		return 0, err
	}
	return f.Write(ctx, offset, data)
}

func (a *Adaptor) Statfs(ctx context.Context, nodeId uint64) (wire.Kstatfs, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return wire.Kstatfs{}, err
	}
	return a.backend.Statfs(ctx, p)
}

func (a *Adaptor) Release(ctx context.Context, nodeId, fh uint64, flags uint32) {
	v := a.files.Release(fh)
	if f, ok := v.(File); ok {
		f.Release(ctx, flags)
	}
}

func (a *Adaptor) Fsync(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error {
	f, err := a.fileFor(fh)
	if err != nil {
		return err
	}
	return f.Fsync(ctx, dataSyncOnly)
}

func (a *Adaptor) SetXAttr(ctx context.Context, nodeId uint64, name string, value []byte, flags uint32) error {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return err
	}
	return a.backend.SetXAttr(ctx, p, name, value, flags)
}

func (a *Adaptor) GetXAttr(ctx context.Context, nodeId uint64, name string, size uint32) ([]byte, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return nil, err
	}
	return a.backend.GetXAttr(ctx, p, name, size)
}

func (a *Adaptor) ListXAttr(ctx context.Context, nodeId uint64, size uint32) ([]byte, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return nil, err
	}
	return a.backend.ListXAttr(ctx, p, size)
}

func (a *Adaptor) RemoveXAttr(ctx context.Context, nodeId uint64, name string) error {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return err
	}
	return a.backend.RemoveXAttr(ctx, p, name)
}

func (a *Adaptor) Flush(ctx context.Context, nodeId, fh uint64) error {
	f, err := a.fileFor(fh)
	if err != nil {
		return err
	}
	return f.Flush(ctx)
}

func (a *Adaptor) OpenDir(ctx context.Context, nodeId uint64, flags uint32) (provider.OpenResult, error) {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return provider.OpenResult{}, err
	}
	d, err := a.backend.OpenDir(ctx, p, flags)
	if err != nil {
		return provider.OpenResult{}, err
	}
	return provider.OpenResult{Fh: a.dirs.Register(d)}, nil
}

func (a *Adaptor) ReadDir(ctx context.Context, nodeId, fh uint64, offset int64) ([]provider.DirEntry, error) {
	d, err := a.dirFor(fh)
	if err != nil {
		return nil, err
	}
	return d.ReadDir(ctx, offset)
}

func (a *Adaptor) ReleaseDir(ctx context.Context, nodeId, fh uint64) {
	v := a.dirs.Release(fh)
	if d, ok := v.(Dir); ok {
		d.ReleaseDir(ctx)
	}
}

func (a *Adaptor) FsyncDir(ctx context.Context, nodeId, fh uint64, dataSyncOnly bool) error {
	d, err := a.dirFor(fh)
	if err != nil {
		return err
	}
	return d.FsyncDir(ctx, dataSyncOnly)
}

func (a *Adaptor) GetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64) (wire.FileLock, error) {
	f, err := a.fileFor(fh)
	if err != nil {
		return wire.FileLock{}, err
	}
	return f.GetLk(ctx, lock, owner)
}

func (a *Adaptor) SetLk(ctx context.Context, nodeId, fh uint64, lock wire.FileLock, owner uint64, wait bool) error {
	f, err := a.fileFor(fh)
	if err != nil {
		return err
	}
	return f.SetLk(ctx, lock, owner, wait)
}

func (a *Adaptor) Access(ctx context.Context, nodeId uint64, mask uint32) error {
	_, p, err := a.nodePath(nodeId)
	if err != nil {
		return err
	}
	return a.backend.Access(ctx, p, mask)
}

func (a *Adaptor) Create(ctx context.Context, parent uint64, name string, flags, mode uint32) (provider.LookupResult, provider.OpenResult, error) {
	_, parentPath, err := a.nodePath(parent)
	if err != nil {
		return provider.LookupResult{}, provider.OpenResult{}, err
	}
	attr, f, err := a.backend.Create(ctx, joinPath(parentPath, name), flags, mode)
	if err != nil {
		return provider.LookupResult{}, provider.OpenResult{}, err
	}
	parentNode := a.cache.ById(parent)
	child := a.cache.LookupOrCreate(parentNode, name)
	return a.lookupResult(child, attr), provider.OpenResult{Fh: a.files.Register(f)}, nil
}

// Bmap addresses a bare nodeid rather than an open fh, unlike every other
// file-data opcode; path-based Backends have no open File to dispatch it
// to without a second nodeid->File table, so it is reported unsupported
// here (negligible real-world use outside block-device-backed
// filesystems). A Provider wanting Bmap support should implement
// provider.Provider directly instead of going through this adaptor.
func (a *Adaptor) Bmap(ctx context.Context, nodeId uint64, blockSize uint32, block uint64) (uint64, error) {
	return 0, syscall.ENOSYS
}

// Ioctl never asks the kernel to retry with a larger buffer: File.Ioctl
// takes the whole request body up front, so there is nothing a
// path-based backend could do with FUSE_IOCTL_RETRY's scatter/gather
// description that it couldn't already do with in/arg directly.
func (a *Adaptor) Ioctl(ctx context.Context, nodeId, fh uint64, cmd uint32, arg uint64, in []byte, outSize uint32) (provider.IoctlResult, error) {
	f, err := a.fileFor(fh)
	if err != nil {
		return provider.IoctlResult{}, err
	}
	out, result, err := f.Ioctl(ctx, cmd, arg, in)
	if err != nil {
		return provider.IoctlResult{}, err
	}
	return provider.IoctlResult{Result: result, Out: out}, nil
}

// Poll is unsupported over a path-based Backend: readiness notification
// needs a persistent per-handle channel File never exposes (the same gap
// Bmap documents for block-device addressing). A Provider wanting POLL
// support should implement provider.Provider directly instead of going
// through this adaptor.
func (a *Adaptor) Poll(ctx context.Context, nodeId, fh, kh uint64, flags uint32) (provider.PollResult, error) {
	return provider.PollResult{}, syscall.ENOSYS
}

// Statx reuses GetAttr's path resolution and attribute pipeline (override
// application, auto_cache CRC latching) and reshapes the result into the
// richer statx(2) layout; sxFlags/sxMask are accepted for interface
// compatibility but not filtered against, since the Backend contract only
// ever returns the full attribute set GetAttr does.
func (a *Adaptor) Statx(ctx context.Context, nodeId uint64, fh uint64, fhValid bool, sxFlags, sxMask uint32) (wire.Statx, error) {
	node, p, err := a.nodePath(nodeId)
	if err != nil {
		return wire.Statx{}, err
	}
	attr, err := a.backend.GetAttr(ctx, p)
	if err != nil {
		return wire.Statx{}, err
	}
	attr = a.applyAttrOverrides(node, attr)
	node.RecordStatCRC(statCRC(attr))
	return attrToStatx(attr), nil
}

// attrToStatx reshapes the attribute set every Backend call already
// returns into the wider statx(2) struct, filling the basic-stats fields
// and Blksize and reporting wire.StatxBasicStats in Mask. Attr's Rdev is
// not carried over: RdevMajor/RdevMinor stay zero.
func attrToStatx(attr wire.Attr) wire.Statx {
	return wire.Statx{
		Mask:    wire.StatxBasicStats,
		Blksize: attr.Blksize,
		Nlink:   attr.Nlink,
		Uid:     attr.Uid,
		Gid:     attr.Gid,
		Mode:    uint16(attr.Mode),
		Ino:     attr.Ino,
		Size:    attr.Size,
		Blocks:  attr.Blocks,
		Atime:   wire.StatxTimestamp{Sec: int64(attr.Atime), Nsec: attr.Atimensec},
		Ctime:   wire.StatxTimestamp{Sec: int64(attr.Ctime), Nsec: attr.Ctimensec},
		Mtime:   wire.StatxTimestamp{Sec: int64(attr.Mtime), Nsec: attr.Mtimensec},
	}
}

func (a *Adaptor) Destroy(ctx context.Context) {
	a.backend.Destroy(ctx)
}
