package inode

import (
	"testing"
	"time"
)

func TestLookupOrCreateAssignsIdsAndLinksParent(t *testing.T) {
	c := NewCache(false)
	root := c.Root()

	n := c.LookupOrCreate(root, "foo")
	if n.NodeId == 0 || n.NodeId == root.NodeId {
		t.Fatalf("expected a fresh nonzero nodeid distinct from root, got %d", n.NodeId)
	}
	if n.LookupCount != 1 || n.RefCount != 1 {
		t.Errorf("expected fresh node to start at lookup=1 ref=1, got lookup=%d ref=%d", n.LookupCount, n.RefCount)
	}
	if root.RefCount != 2 {
		t.Errorf("expected root refcount incremented for new child, got %d", root.RefCount)
	}
	if got := c.ById(n.NodeId); got != n {
		t.Error("expected node to be reachable via ById")
	}
}

func TestLookupOrCreateReturnsExistingOnCollision(t *testing.T) {
	c := NewCache(false)
	root := c.Root()

	n1 := c.LookupOrCreate(root, "foo")
	n2 := c.LookupOrCreate(root, "foo")
	if n1 != n2 {
		t.Fatal("expected same node for repeated lookup of same name")
	}
	if n1.LookupCount != 2 {
		t.Errorf("expected lookup count 2 after second lookup, got %d", n1.LookupCount)
	}
}

func TestForgetDeletesAtZeroLookupCount(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	n := c.LookupOrCreate(root, "foo")
	id := n.NodeId

	c.Forget(id, 1, 0)

	if c.ById(id) != nil {
		t.Error("expected node to be removed from id table after forget reaches zero")
	}
	if root.RefCount != 1 {
		t.Errorf("expected root refcount released back to 1, got %d", root.RefCount)
	}
}

func TestForgetWithRememberPushesToRememberedList(t *testing.T) {
	c := NewCache(true)
	root := c.Root()
	n := c.LookupOrCreate(root, "foo")
	id := n.NodeId

	c.Forget(id, 1, 1000)

	if c.ById(id) == nil {
		t.Error("remembered node should still be reachable by id")
	}
	if c.RememberedCount() != 1 {
		t.Errorf("expected 1 remembered entry, got %d", c.RememberedCount())
	}
}

func TestPruneRememberedEvictsPastTTL(t *testing.T) {
	c := NewCache(true)
	root := c.Root()
	n := c.LookupOrCreate(root, "foo")
	id := n.NodeId
	c.Forget(id, 1, 1000)

	evicted := c.PruneRemembered(1000+59, 60)
	if evicted != 0 {
		t.Fatalf("expected no eviction before TTL elapses, evicted=%d", evicted)
	}
	evicted = c.PruneRemembered(1000+60, 60)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction once TTL elapses, evicted=%d", evicted)
	}
	if c.ById(id) != nil {
		t.Error("expected node removed after remembered TTL eviction")
	}
}

func TestRenameMovesNodeBetweenParents(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	dirA := c.LookupOrCreate(root, "a")
	dirB := c.LookupOrCreate(root, "b")
	leaf := c.LookupOrCreate(dirA, "file")

	if err := c.Rename(dirA, "file", dirB, "file2"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if leaf.Parent != dirB || leaf.Name != "file2" {
		t.Errorf("expected node relinked under dirB as file2, got parent=%v name=%q", leaf.Parent, leaf.Name)
	}
	again := c.LookupOrCreate(dirB, "file2")
	if again != leaf {
		t.Error("expected renamed node to be reachable at its new name")
	}
}

func TestPathOfBuildsAbsolutePath(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	a := c.LookupOrCreate(root, "a")
	b := c.LookupOrCreate(a, "b")

	path, err := c.PathOf(b, false)
	if err != nil {
		t.Fatalf("PathOf: %v", err)
	}
	if path != "/a/b" {
		t.Errorf("expected /a/b, got %q", path)
	}
}

func TestPathOfRootIsSlash(t *testing.T) {
	c := NewCache(false)
	path, err := c.PathOf(c.Root(), false)
	if err != nil {
		t.Fatalf("PathOf: %v", err)
	}
	if path != "/" {
		t.Errorf("expected /, got %q", path)
	}
}

func TestForgetOnRootIsNoop(t *testing.T) {
	c := NewCache(false)
	root := c.Root()

	c.Forget(root.NodeId, root.LookupCount, 0)

	if root.LookupCount == 0 {
		t.Error("FORGET(ROOT, n) must not drop root's lookup count to zero")
	}
	if c.ById(root.NodeId) != root {
		t.Error("root must remain reachable after FORGET(ROOT, n)")
	}
}

func TestForgetWaitsForTreeLock(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	n := c.LookupOrCreate(root, "foo")
	id := n.NodeId

	_, release, err := c.AcquirePath(n, true)
	if err != nil {
		t.Fatalf("AcquirePath: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Forget(id, 1, 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Forget returned while node was still tree-locked")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forget never woke up after tree-lock release")
	}

	if c.ById(id) != nil {
		t.Error("expected node removed once the deferred forget finally ran")
	}
}

func TestAcquirePathWriteLockBlocksSecondWriter(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	a := c.LookupOrCreate(root, "a")

	_, release, err := c.AcquirePath(a, true)
	if err != nil {
		t.Fatalf("AcquirePath: %v", err)
	}

	if _, _, err := c.AcquirePath(a, true); err != ErrAgain {
		t.Errorf("expected ErrAgain while write-locked, got %v", err)
	}

	release()

	if _, release2, err := c.AcquirePath(a, true); err != nil {
		t.Errorf("expected to acquire after release, got %v", err)
	} else {
		release2()
	}
}

func TestAcquirePath2HoldsBothLocksUntilRelease(t *testing.T) {
	c := NewCache(false)
	root := c.Root()
	a := c.LookupOrCreate(root, "a")
	b := c.LookupOrCreate(root, "b")

	pa, pb, release, err := c.AcquirePath2(a, b, true)
	if err != nil {
		t.Fatalf("AcquirePath2: %v", err)
	}
	if pa != "/a" || pb != "/b" {
		t.Fatalf("expected /a and /b, got %q and %q", pa, pb)
	}

	if _, _, _, err := c.AcquirePath2(a, b, true); err != ErrAgain {
		t.Errorf("expected ErrAgain while both paths are held, got %v", err)
	}
	if _, release2, err := c.AcquirePath(a, true); err != ErrAgain {
		t.Errorf("expected ErrAgain against a lone AcquirePath on a held path, got %v", err)
	} else if err == nil {
		release2()
	}

	release()

	if _, _, release3, err := c.AcquirePath2(a, b, true); err != nil {
		t.Errorf("expected to acquire after release, got %v", err)
	} else {
		release3()
	}
}
