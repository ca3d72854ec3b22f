package dispatch

import (
	"unsafe"

	"github.com/kernelfs/fusekernel/provider"
	"github.com/kernelfs/fusekernel/wire"
)

// cast reinterprets the leading bytes of buf as *T, mirroring the
// teacher's castPointerFunc table in fuse/opcode.go. If buf is shorter
// than sizeof(T), cast returns a pointer to a zero T instead; callers do
// not check the length themselves.
func cast[T any](buf []byte) *T {
	var zero T
	if len(buf) < int(unsafe.Sizeof(zero)) {
		return &zero
	}
	return (*T)(unsafe.Pointer(&buf[0]))
}

// bytesOf reinterprets v (a pointer to a fixed-size wire struct) as its
// raw byte representation for appending into a reply buffer.
func bytesOf[T any](v *T) []byte {
	var zero T
	n := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), n)
}

// filename extracts a NUL-terminated string starting at offset off in
// buf, the layout every FUSE request with a trailing name uses.
func filename(buf []byte, off int) string {
	if off >= len(buf) {
		return ""
	}
	end := off
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[off:end])
}

// twoFilenames splits buf at off into two consecutive NUL-terminated
// strings, used by RENAME/LINK-with-name style requests.
func twoFilenames(buf []byte, off int) (string, string) {
	first := filename(buf, off)
	second := filename(buf, off+len(first)+1)
	return first, second
}

var eightPadding [8]byte

// direntRecord encodes one directory entry as a wire.Dirent header
// followed by its NUL-free name, padded to an 8-byte boundary, mirroring
// the teacher's DirEntryList.Add layout.
func direntRecord(e provider.DirEntry) []byte {
	ino := e.NodeId
	if ino == 0 {
		ino = wire.FUSE_UNKNOWN_INO
	}
	padding := (8 - len(e.Name)&7) & 7
	hdr := &wire.Dirent{
		Ino:     ino,
		Off:     uint64(e.Offset),
		NameLen: uint32(len(e.Name)),
		Typ:     (e.Mode & 0170000) >> 12,
	}
	rec := append([]byte{}, bytesOf(hdr)...)
	rec = append(rec, e.Name...)
	if padding > 0 {
		rec = append(rec, eightPadding[:padding]...)
	}
	return rec
}

// Reply is the encoded result of dispatching one Request: a status and
// the opcode-specific payload bytes (without the OutHeader, which the
// caller prepends once length is known).
type Reply struct {
	Status  wire.Status
	Payload []byte
	// Suppress marks replies the kernel does not expect back at all
	// (FORGET, BATCH_FORGET, NOTIFY_REPLY, and a successfully-handled
	// INTERRUPT).
	Suppress bool
}
