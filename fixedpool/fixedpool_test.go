package fixedpool

import "testing"

type record struct {
	a, b uint64
}

func TestAllocGrowsSlabsOnDemand(t *testing.T) {
	p := New[record](4)

	var refs []Ref
	for i := 0; i < 6; i++ {
		_, ref := p.Alloc()
		refs = append(refs, ref)
	}
	if p.SlabCount() != 2 {
		t.Fatalf("expected 2 slabs for 6 objects of 4 per slab, got %d", p.SlabCount())
	}

	for _, ref := range refs {
		p.Free(ref)
	}
	if p.AvailObjs() != 8 {
		t.Fatalf("expected 8 free slots after freeing all, got %d", p.AvailObjs())
	}
}

func TestAllocReturnsZeroedObject(t *testing.T) {
	p := New[record](4)
	obj, ref := p.Alloc()
	obj.a = 42
	p.Free(ref)

	obj2, _ := p.Alloc()
	if obj2.a != 0 {
		t.Errorf("reused slot should be zeroed, got a=%d", obj2.a)
	}
}

func TestGcTrimsEmptyTrailingSlabs(t *testing.T) {
	p := New[record](4)

	var refs []Ref
	for i := 0; i < 8; i++ {
		_, ref := p.Alloc()
		refs = append(refs, ref)
	}
	if p.SlabCount() != 2 {
		t.Fatalf("expected 2 slabs, got %d", p.SlabCount())
	}

	for _, ref := range refs[4:] {
		p.Free(ref)
	}

	removed := p.Gc()
	if removed != 1 {
		t.Errorf("expected Gc to remove 1 trailing empty slab, removed %d", removed)
	}
	if p.SlabCount() != 1 {
		t.Errorf("expected 1 slab remaining, got %d", p.SlabCount())
	}
}

func TestSlabUsageRatio(t *testing.T) {
	p := New[record](4)
	p.Alloc()
	p.Alloc()

	ratio, err := p.SlabUsageRatio(0)
	if err != nil {
		t.Fatalf("SlabUsageRatio: %v", err)
	}
	if ratio != 0.5 {
		t.Errorf("expected usage ratio 0.5, got %f", ratio)
	}

	if _, err := p.SlabUsageRatio(5); err == nil {
		t.Error("expected error for out-of-range slab index")
	}
}
