package msgbuf

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Pool recycles Buffers sized to the currently configured page count. It
// mirrors the teacher's BufferPoolImpl (a mutex-guarded stack of spare
// slices keyed by size) but backs every buffer with its own mmap region so
// alignment can be controlled exactly, the way the C original's
// msgbuf_alloc/msgbuf_free pair does via posix_memalign.
type Pool struct {
	mu       sync.Mutex
	pageSize int
	pages    int // current configured bufsize, in logical pages
	free     []*Buffer
	allocs   int // lifetime allocation count, for diagnostics
}

// NewPool creates a pool with the given OS page size and an initial
// bufsize of pages logical pages (the usable region excludes the slack
// page consumed by AlignWrite).
func NewPool(pageSize, pages int) *Pool {
	if pageSize <= 0 {
		pageSize = unix.Getpagesize()
	}
	if pages <= 0 {
		pages = 1
	}
	return &Pool{pageSize: pageSize, pages: pages}
}

// SetBufSize reconfigures the pool's logical page count. Buffers already
// outstanding or sitting in the free list keep their old size; Free will
// notice the mismatch and destroy them instead of recycling, the same way
// msgbuf_free does when BUFSIZE has changed underneath it.
func (p *Pool) SetBufSize(pages int) {
	if pages <= 0 {
		pages = 1
	}
	p.mu.Lock()
	p.pages = pages
	p.mu.Unlock()
}

// Alloc returns a page-aligned Buffer sized to the pool's current bufsize.
func (p *Pool) Alloc() (*Buffer, error) { return p.alloc(AlignPage) }

// AllocWriteAligned returns a Buffer whose payload region (past an
// InHeader+WriteIn pair) starts on a page boundary.
func (p *Pool) AllocWriteAligned() (*Buffer, error) { return p.alloc(AlignWrite) }

func (p *Pool) alloc(align Align) (*Buffer, error) {
	p.mu.Lock()
	pages := p.pages
	for i := len(p.free) - 1; i >= 0; i-- {
		b := p.free[i]
		if b.pages == pages && b.align == align {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.mu.Unlock()
			return b, nil
		}
	}
	p.allocs++
	p.mu.Unlock()

	size := (pages + 1) * p.pageSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("msgbuf: mmap %d bytes: %w", size, err)
	}
	b := &Buffer{mem: mem, align: align, pages: pages, pageSize: p.pageSize}
	b.reslice()
	return b, nil
}

// Free returns a buffer to the pool, or destroys it if its size no longer
// matches the pool's configured bufsize.
func (p *Pool) Free(b *Buffer) {
	if b == nil {
		return
	}
	p.mu.Lock()
	if b.pages != p.pages {
		p.mu.Unlock()
		p.destroy(b)
		return
	}
	p.free = append(p.free, b)
	p.mu.Unlock()
}

func (p *Pool) destroy(b *Buffer) {
	_ = unix.Munmap(b.mem)
}

// Gc unmaps every buffer currently sitting in the free list.
func (p *Pool) Gc() {
	p.mu.Lock()
	freed := p.free
	p.free = nil
	p.mu.Unlock()
	for _, b := range freed {
		p.destroy(b)
	}
}

// Gc10Percent unmaps roughly a tenth of the free list, the same fraction
// the original maintenance tick reclaims on each pass rather than
// draining the whole pool at once.
func (p *Pool) Gc10Percent() {
	p.mu.Lock()
	n := len(p.free) / 10
	if n == 0 && len(p.free) > 0 {
		n = 1
	}
	victims := p.free[:n]
	p.free = p.free[n:]
	p.mu.Unlock()
	for _, b := range victims {
		p.destroy(b)
	}
}

// BufSize returns the pool's current configured size in bytes: (pages+1)
// pages, matching msgbuf_set_bufsize's formula.
func (p *Pool) BufSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return (p.pages + 1) * p.pageSize
}

// PageSize returns the pool's configured OS page size.
func (p *Pool) PageSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageSize
}

// AllocCount returns the lifetime number of buffers actually mmap'd
// (excludes recycled hits).
func (p *Pool) AllocCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocs
}

// AvailCount returns the number of buffers currently sitting in the free
// list, ready to be recycled without a fresh mmap call.
func (p *Pool) AvailCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
