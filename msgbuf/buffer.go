// Package msgbuf implements the message-buffer pool used to read requests
// off the kernel channel and build replies. Buffers are backed by
// anonymous mmap regions so their alignment can be controlled precisely:
// plain reads want the buffer itself page-aligned, O_DIRECT-style payloads
// want the data portion (after the wire headers) to start on a page
// boundary so it can be spliced or DMA'd without a copy.
package msgbuf

import (
	"unsafe"

	"github.com/kernelfs/fusekernel/wire"
)

// Align selects how a Buffer's backing memory is laid out relative to
// page boundaries.
type Align int

const (
	// AlignPage places the buffer's first usable byte at a page boundary.
	// Used for O_DIRECT READ replies; the request read loop allocates its
	// buffers with AlignWrite.
	AlignPage Align = iota
	// AlignWrite places the buffer so that the payload following an
	// InHeader+WriteIn pair starts on a page boundary, letting WRITE
	// payloads be spliced straight into the backing file without the
	// kernel needing to shift them.
	AlignWrite
)

var writeHeaderSize = int(unsafe.Sizeof(wire.InHeader{})) + int(unsafe.Sizeof(wire.WriteIn{}))

// Buffer is a single message buffer: a byte slice view into a page-aligned
// mmap region, plus the bookkeeping needed to recycle or destroy it.
//
// The raw mmap region is always (pages+1) whole pages: one spare leading
// page holds the header-offset slack that AlignWrite needs, matching the
// configured bufsize used when the buffer was allocated.
type Buffer struct {
	mem      []byte // the raw mmap region
	slice    []byte // the usable view callers read/write through
	align    Align
	pages    int // logical page count the buffer was sized for (excludes slack page)
	pageSize int
}

// Bytes returns the usable slice. Its start is aligned per the Buffer's
// Align mode; its length is mem-size minus whatever leading offset the
// alignment mode consumed.
func (b *Buffer) Bytes() []byte { return b.slice }

// Pages is the logical page count the buffer was sized for when allocated.
func (b *Buffer) Pages() int { return b.pages }

func (b *Buffer) reslice() {
	switch b.align {
	case AlignWrite:
		off := b.pageSize - writeHeaderSize
		b.slice = b.mem[off:]
	default:
		b.slice = b.mem
	}
}
