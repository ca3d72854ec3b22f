package msgbuf

import (
	"testing"
	"unsafe"
)

func uintptrOf(b *byte) uintptr { return uintptr(unsafe.Pointer(b)) }

func TestAllocRecyclesMatchingSize(t *testing.T) {
	p := NewPool(4096, 4)

	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p.AllocCount() != 1 {
		t.Fatalf("expected 1 fresh allocation, got %d", p.AllocCount())
	}
	p.Free(b)
	if p.AvailCount() != 1 {
		t.Fatalf("expected 1 buffer in free list, got %d", p.AvailCount())
	}

	b2, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p.AllocCount() != 1 {
		t.Fatalf("second alloc should recycle, not mmap again; got count %d", p.AllocCount())
	}
	if p.AvailCount() != 0 {
		t.Fatalf("free list should be drained after recycle, got %d", p.AvailCount())
	}
	p.Free(b2)
}

func TestSetBufSizeDestroysStaleBuffers(t *testing.T) {
	p := NewPool(4096, 4)

	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	p.SetBufSize(8)
	p.Free(b)

	if p.AvailCount() != 0 {
		t.Fatalf("buffer sized for the old bufsize must not be recycled, got avail=%d", p.AvailCount())
	}
}

func TestAllocWriteAlignedPayloadIsPageAligned(t *testing.T) {
	const pageSize = 4096
	p := NewPool(pageSize, 4)

	b, err := p.AllocWriteAligned()
	if err != nil {
		t.Fatalf("AllocWriteAligned: %v", err)
	}
	defer p.destroy(b)

	payloadStart := writeHeaderSize
	off := &b.Bytes()[payloadStart]
	addr := uintptrOf(off)
	if addr%pageSize != 0 {
		t.Errorf("write payload not page aligned: addr%%pageSize = %d", addr%pageSize)
	}
}

func TestGcDrainsFreeList(t *testing.T) {
	p := NewPool(4096, 4)
	for i := 0; i < 5; i++ {
		b, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		p.Free(b)
	}
	p.Gc()
	if p.AvailCount() != 0 {
		t.Errorf("Gc should empty the free list, got %d", p.AvailCount())
	}
}

func TestGc10PercentPartialDrain(t *testing.T) {
	p := NewPool(4096, 4)
	var held []*Buffer
	for i := 0; i < 10; i++ {
		b, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		held = append(held, b)
	}
	for _, b := range held {
		p.Free(b)
	}
	before := p.AvailCount()
	p.Gc10Percent()
	after := p.AvailCount()
	if after >= before {
		t.Errorf("Gc10Percent should shrink free list, before=%d after=%d", before, after)
	}
}
