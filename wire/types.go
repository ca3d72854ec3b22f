// Package wire holds the fixed wire-format types and constants of the
// kernel<->userspace filesystem protocol (FUSE protocol v7.x). Every type
// here is laid out to match the kernel ABI exactly; callers must not add or
// reorder fields. The kernel's public header is the source of truth for this
// file, not this package.
package wire

// InHeader is the 40-byte preamble of every request coming from the kernel.
type InHeader struct {
	Len     uint32
	Opcode  Opcode
	Unique  uint64
	NodeId  uint64
	Uid     uint32
	Gid     uint32
	Pid     uint32
	Padding uint32
}

// OutHeader is the 16-byte preamble of every reply sent to the kernel.
type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

// Owner identifies a uid/gid pair, embedded in several arg structs.
type Owner struct {
	Uid uint32
	Gid uint32
}

// Attr mirrors struct fuse_attr: the stat(2) fields the kernel cares about.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	Atimensec uint32
	Mtimensec uint32
	Ctimensec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	Padding   uint32
}

type EntryOut struct {
	NodeId         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Padding       uint32
	Attr          Attr
}

// StatxOut mirrors the extended-attributes statx reply; an addition over
// the teacher (which predates STATX) taken from the kernel ABI the spec
// references in §6.
type StatxOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Flags         uint32
	Spare         [2]uint64
	Stat          Statx
}

type Statx struct {
	Mask           uint32
	Blksize        uint32
	Attributes     uint64
	Nlink          uint32
	Uid            uint32
	Gid            uint32
	Mode           uint16
	Spare0         uint16
	Ino            uint64
	Size           uint64
	Blocks         uint64
	AttributesMask uint64
	Atime          StatxTimestamp
	Btime          StatxTimestamp
	Ctime          StatxTimestamp
	Mtime          StatxTimestamp
	RdevMajor      uint32
	RdevMinor      uint32
	DevMajor       uint32
	DevMinor       uint32
	Spare2         [14]uint64
}

// StatxBasicStats is STATX_BASIC_STATS: every field other than the
// btime/attributes extensions, the set attrToStatx-style conversions from
// a plain Attr can always fill in.
const StatxBasicStats = 0x7ff

type StatxTimestamp struct {
	Sec  int64
	Nsec uint32
	_    int32
}

type ForgetIn struct {
	Nlookup uint64
}

type ForgetOne struct {
	NodeId  uint64
	Nlookup uint64
}

type BatchForgetIn struct {
	Count uint32
	Dummy uint32
}

type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

type MknodIn struct {
	Mode    uint32
	Rdev    uint32
	Umask   uint32
	Padding uint32
}

type RenameIn struct {
	Newdir uint64
}

// RenameSwapIn is used when the kernel negotiated RENAME2/RENAME_EXCHANGE;
// it extends RenameIn with a flags word. Present in original_source's
// fuse_kernel.h-derived ABI, absent from the teacher (which predates it).
type RenameSwapIn struct {
	Newdir uint64
	Flags  uint32
	Padding uint32
}

type LinkIn struct {
	Oldnodeid uint64
}

const (
	FATTR_MODE      = 1 << 0
	FATTR_UID       = 1 << 1
	FATTR_GID       = 1 << 2
	FATTR_SIZE      = 1 << 3
	FATTR_ATIME     = 1 << 4
	FATTR_MTIME     = 1 << 5
	FATTR_FH        = 1 << 6
	FATTR_ATIME_NOW = 1 << 7
	FATTR_MTIME_NOW = 1 << 8
	FATTR_LOCKOWNER = 1 << 9
)

type SetAttrIn struct {
	Valid     uint32
	Padding   uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Unused2   uint64
	Atimensec uint32
	Mtimensec uint32
	Unused3   uint32
	Mode      uint32
	Unused4   uint32
	Owner
	Unused5 uint32
}

type GetAttrIn struct {
	Flags   uint32
	Padding uint32
	Fh      uint64
}

// StatxIn mirrors struct fuse_statx_in, OP_STATX's argument. SxFlags
// carries the AT_* lookup flags and SxMask the STATX_* field mask the
// caller asked for, the same pairing statx(2) itself takes.
type StatxIn struct {
	GetattrFlags uint32
	Reserved     uint32
	Fh           uint64
	SxFlags      uint32
	SxMask       uint32
}

const FUSE_GETATTR_FH = 1 << 0

const (
	FOPEN_DIRECT_IO   = 1 << 0
	FOPEN_KEEP_CACHE  = 1 << 1
	FOPEN_NONSEEKABLE = 1 << 2
)

type OpenIn struct {
	Flags  uint32
	Unused uint32
}

type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	Padding   uint32
}

type CreateIn struct {
	Flags   uint32
	Mode    uint32
	Umask   uint32
	Padding uint32
}

type CreateOut struct {
	EntryOut
	OpenOut
}

const RELEASE_FLUSH = 1 << 0

type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

type FlushIn struct {
	Fh        uint64
	Unused    uint32
	Padding   uint32
	LockOwner uint64
}

type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	Padding   uint32
}

type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	Padding    uint32
}

type WriteOut struct {
	Size    uint32
	Padding uint32
}

type Kstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	Padding uint32
	Spare   [6]uint32
}

type StatfsOut struct {
	St Kstatfs
}

type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	Padding    uint32
}

type SetXAttrIn struct {
	Size  uint32
	Flags uint32
}

type GetXAttrIn struct {
	Size    uint32
	Padding uint32
}

type GetXAttrOut struct {
	Size    uint32
	Padding uint32
}

// FileLock mirrors struct fuse_file_lock: a POSIX byte-range lock on the
// wire. End == OffMax means "to end of file".
type FileLock struct {
	Start uint64
	End   uint64
	Typ   uint32
	Pid   uint32
}

const OffMax = ^uint64(0) >> 1

const FUSE_LK_FLOCK = 1 << 0

type LkIn struct {
	Fh      uint64
	Owner   uint64
	Lk      FileLock
	LkFlags uint32
	Padding uint32
}

type LkOut struct {
	Lk FileLock
}

const (
	X_OK = 1
	W_OK = 2
	R_OK = 4
	F_OK = 0
)

type AccessIn struct {
	Mask    uint32
	Padding uint32
}

type InterruptIn struct {
	Unique uint64
}

type BmapIn struct {
	Block     uint64
	Blocksize uint32
	Padding   uint32
}

type BmapOut struct {
	Block uint64
}

const (
	FUSE_IOCTL_COMPAT       = 1 << 0
	FUSE_IOCTL_UNRESTRICTED = 1 << 1
	FUSE_IOCTL_RETRY        = 1 << 2
)

type IoctlIn struct {
	Fh      uint64
	Flags   uint32
	Cmd     uint32
	Arg     uint64
	InSize  uint32
	OutSize uint32
}

type IoctlOut struct {
	Result  int32
	Flags   uint32
	InIovs  uint32
	OutIovs uint32
}

// IoctlIovec mirrors struct fuse_ioctl_iovec: one scatter/gather segment
// sent back after an IoctlOut with FUSE_IOCTL_RETRY set, describing a
// region the kernel should resubmit the ioctl with.
type IoctlIovec struct {
	Base uint64
	Len  uint64
}

type PollIn struct {
	Fh      uint64
	Kh      uint64
	Flags   uint32
	Padding uint32
}

type PollOut struct {
	Revents uint32
	Padding uint32
}

type NotifyPollWakeupOut struct {
	Kh uint64
}

type NotifyInvalInodeOut struct {
	Ino uint64
	Off int64
	Len int64
}

type NotifyInvalEntryOut struct {
	Parent  uint64
	NameLen uint32
	Padding uint32
}

type NotifyInvalDeleteOut struct {
	Parent  uint64
	Child   uint64
	NameLen uint32
	Padding uint32
}

// InitIn/InitOut — see §4.5. Flags2 and MaxPages are additions over the
// teacher's InitIn (which predates FUSE_MAX_PAGES and the Flags2 word);
// grounded in original_source's implied kernel ABI since spec.md §4.5 step 6
// names MAX_PAGES negotiation explicitly.
type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
	Flags2       uint32
	Unused       [11]uint32
}

type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	MapAlignment        uint16
	Flags2              uint32
	Unused              [7]uint32
}

// Capability bits, shared by InitIn.Flags/InitOut.Flags.
const (
	CAP_ASYNC_READ       = 1 << 0
	CAP_POSIX_LOCKS      = 1 << 1
	CAP_FILE_OPS         = 1 << 2
	CAP_ATOMIC_O_TRUNC   = 1 << 3
	CAP_EXPORT_SUPPORT   = 1 << 4
	CAP_BIG_WRITES       = 1 << 5
	CAP_DONT_MASK        = 1 << 6
	CAP_SPLICE_WRITE     = 1 << 7
	CAP_SPLICE_MOVE      = 1 << 8
	CAP_SPLICE_READ      = 1 << 9
	CAP_FLOCK_LOCKS      = 1 << 10
	CAP_IOCTL_DIR        = 1 << 11
	CAP_AUTO_INVAL_DATA  = 1 << 12
	CAP_READDIRPLUS      = 1 << 13
	CAP_READDIRPLUS_AUTO = 1 << 14
	CAP_ASYNC_DIO        = 1 << 15
	CAP_WRITEBACK_CACHE  = 1 << 16
	CAP_NO_OPEN_SUPPORT  = 1 << 17
	CAP_PARALLEL_DIROPS  = 1 << 18
	CAP_HANDLE_KILLPRIV  = 1 << 19
	CAP_POSIX_ACL        = 1 << 20
	CAP_ABORT_ERROR      = 1 << 21
	CAP_MAX_PAGES        = 1 << 22
	CAP_CACHE_SYMLINKS   = 1 << 23
	CAP_NO_OPENDIR_SUPPORT = 1 << 24
	CAP_EXPLICIT_INVAL_DATA = 1 << 25
)

const (
	FUSE_ROOT_ID          = 1
	FUSE_KERNEL_VERSION   = 7
	MinimumMinorVersion   = 13
	OurMinorVersion       = 38
	FuseMaxMaxPages       = 256
	FUSE_UNKNOWN_INO      = 0xffffffff
)

// Dirent is the fixed-size header preceding each name in a READDIR reply
// buffer; the name follows immediately, NUL-padded to an 8-byte boundary.
type Dirent struct {
	Ino     uint64
	Off     uint64
	NameLen uint32
	Typ     uint32
}

// DT_* are the dirent type codes used in Dirent.Typ, matching the
// low bits of a FileMode's type field shifted down by 12.
const (
	DT_UNKNOWN = 0
	DT_FIFO    = 1
	DT_CHR     = 2
	DT_DIR     = 4
	DT_BLK     = 6
	DT_REG     = 8
	DT_LNK     = 10
	DT_SOCK    = 12
)
