package dispatch

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/wire"
)

var errNosys = syscall.ENOSYS

// Dispatch decodes req's opcode-specific argument, calls the matching
// Provider method, and encodes the result. OP_INIT is handled by the
// session package before a request ever reaches here (version
// negotiation owns the reply shape); seeing it here is a caller bug and
// is reported as ENOSYS rather than panicking.
func Dispatch(p provider.Provider, table *Table, req *Request) Reply {
	ctx := req.Context()
	switch req.Opcode {
	case wire.OpLookup:
		name := filename(req.Arg, 0)
		res, err := p.Lookup(ctx, req.Header.NodeId, name)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(entryOut(res)))

	case wire.OpForget:
		in := cast[wire.ForgetIn](req.Arg)
		p.Forget(ctx, req.Header.NodeId, in.Nlookup)
		return Reply{Status: wire.OK, Suppress: true}

	case wire.OpBatchForget:
		in := cast[wire.BatchForgetIn](req.Arg)
		items := decodeForgetOnes(req.Arg, int(unsafe.Sizeof(*in)), int(in.Count))
		for _, it := range items {
			p.Forget(ctx, it.NodeId, it.Nlookup)
		}
		return Reply{Status: wire.OK, Suppress: true}

	case wire.OpNotifyReply:
		return Reply{Status: wire.OK, Suppress: true}

	case wire.OpGetattr:
		in := cast[wire.GetAttrIn](req.Arg)
		fhValid := in.Flags&wire.FUSE_GETATTR_FH != 0
		attr, err := p.GetAttr(ctx, req.Header.NodeId, in.Fh, fhValid)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(attrOut(attr)))

	case wire.OpSetattr:
		in := cast[wire.SetAttrIn](req.Arg)
		attr, err := p.SetAttr(ctx, req.Header.NodeId, in)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(attrOut(attr)))

	case wire.OpReadlink:
		target, err := p.Readlink(ctx, req.Header.NodeId)
		if err != nil {
			return status(err)
		}
		return ok(append([]byte(target), 0))

	case wire.OpSymlink:
		name, target := twoFilenames(req.Arg, 0)
		res, err := p.Symlink(ctx, req.Header.NodeId, name, target)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(entryOut(res)))

	case wire.OpMknod:
		in := cast[wire.MknodIn](req.Arg)
		name := filename(req.Arg, int(unsafe.Sizeof(*in)))
		res, err := p.Mknod(ctx, req.Header.NodeId, name, in.Mode, in.Rdev)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(entryOut(res)))

	case wire.OpMkdir:
		in := cast[wire.MkdirIn](req.Arg)
		name := filename(req.Arg, int(unsafe.Sizeof(*in)))
		res, err := p.Mkdir(ctx, req.Header.NodeId, name, in.Mode)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(entryOut(res)))

	case wire.OpUnlink:
		name := filename(req.Arg, 0)
		return status(p.Unlink(ctx, req.Header.NodeId, name))

	case wire.OpRmdir:
		name := filename(req.Arg, 0)
		return status(p.Rmdir(ctx, req.Header.NodeId, name))

	case wire.OpRename:
		in := cast[wire.RenameIn](req.Arg)
		oldName, newName := twoFilenames(req.Arg, int(unsafe.Sizeof(*in)))
		return status(p.Rename(ctx, req.Header.NodeId, oldName, in.Newdir, newName, 0))

	case wire.OpRename2:
		in := cast[wire.RenameSwapIn](req.Arg)
		oldName, newName := twoFilenames(req.Arg, int(unsafe.Sizeof(*in)))
		return status(p.Rename(ctx, req.Header.NodeId, oldName, in.Newdir, newName, in.Flags))

	case wire.OpLink:
		in := cast[wire.LinkIn](req.Arg)
		name := filename(req.Arg, int(unsafe.Sizeof(*in)))
		res, err := p.Link(ctx, in.Oldnodeid, req.Header.NodeId, name)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(entryOut(res)))

	case wire.OpOpen:
		in := cast[wire.OpenIn](req.Arg)
		res, err := p.Open(ctx, req.Header.NodeId, in.Flags)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(openOut(res)))

	case wire.OpRead:
		in := cast[wire.ReadIn](req.Arg)
		data, err := p.Read(ctx, req.Header.NodeId, in.Fh, int64(in.Offset), in.Size)
		if err != nil {
			return status(err)
		}
		return ok(data)

	case wire.OpWrite:
		in := cast[wire.WriteIn](req.Arg)
		data := req.Arg[unsafe.Sizeof(*in):]
		if uint32(len(data)) > in.Size {
			data = data[:in.Size]
		}
		n, err := p.Write(ctx, req.Header.NodeId, in.Fh, int64(in.Offset), data)
		if err != nil {
			return status(err)
		}
		out := &wire.WriteOut{Size: n}
		return ok(bytesOf(out))

	case wire.OpStatfs:
		st, err := p.Statfs(ctx, req.Header.NodeId)
		if err != nil {
			return status(err)
		}
		out := &wire.StatfsOut{St: st}
		return ok(bytesOf(out))

	case wire.OpRelease:
		in := cast[wire.ReleaseIn](req.Arg)
		p.Release(ctx, req.Header.NodeId, in.Fh, in.Flags)
		return Reply{Status: wire.OK}

	case wire.OpFsync:
		in := cast[wire.FsyncIn](req.Arg)
		return status(p.Fsync(ctx, req.Header.NodeId, in.Fh, in.FsyncFlags&1 != 0))

	case wire.OpSetxattr:
		in := cast[wire.SetXAttrIn](req.Arg)
		off := int(unsafe.Sizeof(*in))
		name := filename(req.Arg, off)
		value := req.Arg[off+len(name)+1:]
		if uint32(len(value)) > in.Size {
			value = value[:in.Size]
		}
		return status(p.SetXAttr(ctx, req.Header.NodeId, name, value, in.Flags))

	case wire.OpGetxattr:
		in := cast[wire.GetXAttrIn](req.Arg)
		name := filename(req.Arg, int(unsafe.Sizeof(*in)))
		value, err := p.GetXAttr(ctx, req.Header.NodeId, name, in.Size)
		if err != nil {
			return status(err)
		}
		if in.Size == 0 {
			out := &wire.GetXAttrOut{Size: uint32(len(value))}
			return ok(bytesOf(out))
		}
		return ok(value)

	case wire.OpListxattr:
		in := cast[wire.GetXAttrIn](req.Arg)
		value, err := p.ListXAttr(ctx, req.Header.NodeId, in.Size)
		if err != nil {
			return status(err)
		}
		if in.Size == 0 {
			out := &wire.GetXAttrOut{Size: uint32(len(value))}
			return ok(bytesOf(out))
		}
		return ok(value)

	case wire.OpRemovexattr:
		name := filename(req.Arg, 0)
		return status(p.RemoveXAttr(ctx, req.Header.NodeId, name))

	case wire.OpFlush:
		in := cast[wire.FlushIn](req.Arg)
		return status(p.Flush(ctx, req.Header.NodeId, in.Fh))

	case wire.OpOpendir:
		in := cast[wire.OpenIn](req.Arg)
		res, err := p.OpenDir(ctx, req.Header.NodeId, in.Flags)
		if err != nil {
			return status(err)
		}
		return ok(bytesOf(openOut(res)))

	case wire.OpReaddir:
		in := cast[wire.ReadIn](req.Arg)
		entries, err := p.ReadDir(ctx, req.Header.NodeId, in.Fh, int64(in.Offset))
		if err != nil {
			return status(err)
		}
		return ok(encodeDirEntries(entries, in.Size))

	case wire.OpReleasedir:
		in := cast[wire.ReleaseIn](req.Arg)
		p.ReleaseDir(ctx, req.Header.NodeId, in.Fh)
		return Reply{Status: wire.OK}

	case wire.OpFsyncdir:
		in := cast[wire.FsyncIn](req.Arg)
		return status(p.FsyncDir(ctx, req.Header.NodeId, in.Fh, in.FsyncFlags&1 != 0))

	case wire.OpGetlk:
		in := cast[wire.LkIn](req.Arg)
		lk, err := p.GetLk(ctx, req.Header.NodeId, in.Fh, in.Lk, in.Owner)
		if err != nil {
			return status(err)
		}
		out := &wire.LkOut{Lk: lk}
		return ok(bytesOf(out))

	case wire.OpSetlk:
		in := cast[wire.LkIn](req.Arg)
		return status(p.SetLk(ctx, req.Header.NodeId, in.Fh, in.Lk, in.Owner, false))

	case wire.OpSetlkw:
		in := cast[wire.LkIn](req.Arg)
		return status(p.SetLk(ctx, req.Header.NodeId, in.Fh, in.Lk, in.Owner, true))

	case wire.OpAccess:
		in := cast[wire.AccessIn](req.Arg)
		return status(p.Access(ctx, req.Header.NodeId, in.Mask))

	case wire.OpCreate:
		in := cast[wire.CreateIn](req.Arg)
		name := filename(req.Arg, int(unsafe.Sizeof(*in)))
		lookup, open, err := p.Create(ctx, req.Header.NodeId, name, in.Flags, in.Mode)
		if err != nil {
			return status(err)
		}
		out := &wire.CreateOut{EntryOut: *entryOut(lookup), OpenOut: *openOut(open)}
		return ok(bytesOf(out))

	case wire.OpInterrupt:
		in := cast[wire.InterruptIn](req.Arg)
		st := table.Interrupt(in.Unique)
		return Reply{Status: st, Suppress: st.Ok()}

	case wire.OpBmap:
		in := cast[wire.BmapIn](req.Arg)
		block, err := p.Bmap(ctx, req.Header.NodeId, in.Blocksize, in.Block)
		if err != nil {
			return status(err)
		}
		out := &wire.BmapOut{Block: block}
		return ok(bytesOf(out))

	case wire.OpIoctl:
		in := cast[wire.IoctlIn](req.Arg)
		data := req.Arg[unsafe.Sizeof(*in):]
		res, err := p.Ioctl(ctx, req.Header.NodeId, in.Fh, in.Cmd, in.Arg, data, in.OutSize)
		if err != nil {
			return status(err)
		}
		if res.Retry {
			return ok(ioctlRetryReply(in.Arg, res.InSize, res.OutSize))
		}
		hdr := &wire.IoctlOut{Result: res.Result}
		return ok(append(bytesOf(hdr), res.Out...))

	case wire.OpPoll:
		in := cast[wire.PollIn](req.Arg)
		res, err := p.Poll(ctx, req.Header.NodeId, in.Fh, in.Kh, in.Flags)
		if err != nil {
			return status(err)
		}
		out := &wire.PollOut{Revents: res.Revents}
		return ok(bytesOf(out))

	case wire.OpStatx:
		in := cast[wire.StatxIn](req.Arg)
		fhValid := in.GetattrFlags&wire.FUSE_GETATTR_FH != 0
		st, err := p.Statx(ctx, req.Header.NodeId, in.Fh, fhValid, in.SxFlags, in.SxMask)
		if err != nil {
			return status(err)
		}
		out := &wire.StatxOut{Stat: st}
		return ok(bytesOf(out))

	case wire.OpDestroy:
		p.Destroy(ctx)
		return Reply{Status: wire.OK}

	default:
		return Reply{Status: wire.ToStatus(errNosys)}
	}
}

// ioctlRetryReply builds an IoctlOut with FUSE_IOCTL_RETRY set plus the
// fuse_ioctl_iovec segments describing the buffer(s) the kernel should
// resubmit the ioctl with, mirroring fuse_reply_ioctl_retry. Since this
// module never negotiates FUSE_IOCTL_UNRESTRICTED scatter/gather, each
// direction that needs more room gets exactly one segment, based at the
// original request's arg pointer the same way the unrestricted-compat
// path treats it as a plain argp.
func ioctlRetryReply(argPtr uint64, inSize, outSize uint32) []byte {
	hdr := &wire.IoctlOut{Flags: wire.FUSE_IOCTL_RETRY}
	var iovecs []byte
	if inSize > 0 {
		hdr.InIovs = 1
		iov := wire.IoctlIovec{Base: argPtr, Len: uint64(inSize)}
		iovecs = append(iovecs, bytesOf(&iov)...)
	}
	if outSize > 0 {
		hdr.OutIovs = 1
		iov := wire.IoctlIovec{Base: argPtr, Len: uint64(outSize)}
		iovecs = append(iovecs, bytesOf(&iov)...)
	}
	return append(bytesOf(hdr), iovecs...)
}

func decodeForgetOnes(buf []byte, off, count int) []wire.ForgetOne {
	var one wire.ForgetOne
	sz := int(unsafe.Sizeof(one))
	out := make([]wire.ForgetOne, 0, count)
	for i := 0; i < count; i++ {
		start := off + i*sz
		if start+sz > len(buf) {
			break
		}
		out = append(out, *cast[wire.ForgetOne](buf[start:]))
	}
	return out
}

func encodeDirEntries(entries []provider.DirEntry, maxSize uint32) []byte {
	buf := make([]byte, 0, maxSize)
	for _, e := range entries {
		rec := direntRecord(e)
		if maxSize > 0 && uint32(len(buf)+len(rec)) > maxSize {
			break
		}
		buf = append(buf, rec...)
	}
	return buf
}

func entryOut(r provider.LookupResult) *wire.EntryOut {
	return &wire.EntryOut{
		NodeId:         r.NodeId,
		Generation:     r.Generation,
		EntryValid:     r.EntryValid / uint64(time.Second),
		AttrValid:      r.AttrValid / uint64(time.Second),
		EntryValidNsec: uint32(r.EntryValid % uint64(time.Second)),
		AttrValidNsec:  uint32(r.AttrValid % uint64(time.Second)),
		Attr:           r.Attr,
	}
}

func attrOut(a wire.Attr) *wire.AttrOut {
	return &wire.AttrOut{Attr: a}
}

func openOut(r provider.OpenResult) *wire.OpenOut {
	return &wire.OpenOut{Fh: r.Fh, OpenFlags: r.OpenFlags}
}

func ok(payload []byte) Reply {
	return Reply{Status: wire.OK, Payload: payload}
}

func status(err error) Reply {
	return Reply{Status: wire.ToStatus(err)}
}
