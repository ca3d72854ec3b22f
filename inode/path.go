package inode

import (
	"errors"
	"strings"
	"sync"
)

var (
	errNotFound = errors.New("inode: name not found under parent")
	// ErrStale is returned by PathOf when an ancestor in the chain has no
	// name (it has been unlinked out from under the walk).
	ErrStale = errors.New("inode: stale path, ancestor unlinked")
	// ErrAgain is returned by PathOf when a write-lock was requested but
	// some node along the path is currently held by another writer; the
	// caller should wait on WaitAndRetry and try again.
	ErrAgain = errors.New("inode: path locked, retry")
)

const treelockWriteHeld = -1

// PathOf walks node's parent chain assembling "/name/name/...". If write
// is true, it attempts to acquire an exclusive tree-lock at each node on
// the way and returns ErrAgain if any node is already exclusively held.
// Read-locks are best-effort shared counters. Every lock taken is released
// again before PathOf returns; AcquirePath keeps them held instead.
func (c *Cache) PathOf(node *Node, write bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pathOfLocked(node, write)
}

func (c *Cache) pathOfLocked(node *Node, write bool) (string, error) {
	p, locked, err := c.lockPathLocked(node, write)
	// PathOf doesn't hold its locks past the call in this API: callers
	// that need the lock held across an operation should use
	// AcquirePath/AcquirePath2. Here we release immediately after
	// building the string, since most read-only callers (getattr,
	// readlink) just need a point-in-time path.
	c.unlockAllLocked(locked)
	return p, err
}

// lockPathLocked walks node's parent chain, locking every node on the way
// (per tryLockLocked's rules) and returns the assembled path along with
// every node it locked, leaving those locks held. Callers must eventually
// pass the returned slice to unlockAllLocked, whether or not err is nil:
// on ErrStale/ErrAgain the slice holds whatever prefix was locked before
// the failure so the caller can unwind it.
func (c *Cache) lockPathLocked(node *Node, write bool) (string, []*Node, error) {
	var segs []string
	locked := make([]*Node, 0, 8)

	n := node
	for n != nil && n != c.root {
		if n.Name == "" {
			return "", locked, ErrStale
		}
		if !c.tryLockLocked(n, write) {
			return "", locked, ErrAgain
		}
		locked = append(locked, n)
		segs = append(segs, n.Name)
		n = n.Parent
	}

	if len(segs) == 0 {
		return "/", locked, nil
	}
	reversed := make([]string, len(segs))
	for i, s := range segs {
		reversed[len(segs)-1-i] = s
	}
	return "/" + strings.Join(reversed, "/"), locked, nil
}

func (c *Cache) tryLockLocked(n *Node, write bool) bool {
	if write {
		if n.TreeLock != 0 {
			return false
		}
		n.TreeLock = treelockWriteHeld
		return true
	}
	if n.TreeLock == treelockWriteHeld {
		return false
	}
	n.TreeLock++
	return true
}

func (c *Cache) unlockAllLocked(nodes []*Node) {
	for _, n := range nodes {
		if n.TreeLock == treelockWriteHeld {
			n.TreeLock = 0
		} else if n.TreeLock > 0 {
			n.TreeLock--
		}
	}
	c.waiters.wake()
}

// AcquirePath behaves like PathOf but keeps the tree-lock held until the
// returned release func is called, for callers (rename, mkdir under a
// write lock) that must hold the path locked across an operation rather
// than just reading it.
func (c *Cache) AcquirePath(node *Node, write bool) (path string, release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, locked, err := c.lockPathLocked(node, write)
	if err != nil {
		c.unlockAllLocked(locked)
		return "", nil, err
	}

	release = func() {
		c.mu.Lock()
		c.unlockAllLocked(locked)
		c.mu.Unlock()
	}
	return p, release, nil
}

// PathOf2 acquires both paths together for a point-in-time two-path read
// (e.g. diagnostics), releasing both locks before returning. Callers that
// go on to mutate the backend or the cache based on the paths (RENAME,
// LINK) must use AcquirePath2 instead, which keeps the locks held across
// that mutation.
func (c *Cache) PathOf2(a, b *Node, write bool) (pa, pb string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pa, err = c.pathOfLocked(a, write)
	if err != nil {
		return "", "", err
	}
	pb, err = c.pathOfLocked(b, write)
	if err != nil {
		return "", "", err
	}
	return pa, pb, nil
}

// AcquirePath2 behaves like PathOf2 but keeps both tree-locks held until
// the returned release func is called, for callers (RENAME, LINK) that
// must hold both paths locked across the backend call and the subsequent
// cache update rather than just while reading them. If the second path
// fails to lock, the first is unlocked before returning so callers never
// observe a half-locked state.
func (c *Cache) AcquirePath2(a, b *Node, write bool) (pa, pb string, release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pa, lockedA, err := c.lockPathLocked(a, write)
	if err != nil {
		c.unlockAllLocked(lockedA)
		return "", "", nil, err
	}
	pb, lockedB, err := c.lockPathLocked(b, write)
	if err != nil {
		c.unlockAllLocked(lockedA)
		c.unlockAllLocked(lockedB)
		return "", "", nil, err
	}

	release = func() {
		c.mu.Lock()
		c.unlockAllLocked(lockedA)
		c.unlockAllLocked(lockedB)
		c.mu.Unlock()
	}
	return pa, pb, release, nil
}

// pathWaiterQueue is the waiter queue for tree-lock contention: WaitAndRetry
// callers that get ErrAgain, and Forget calls that find their node
// tree-locked, register here and are woken (one at a time, oldest first)
// whenever a path unlock happens. A waiter holds no tree-lock while it
// waits: AcquirePath2 releases both paths when either fails to lock.
type pathWaiterQueue struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// Enqueue registers the caller as a waiter and returns a channel that is
// closed the next time a path releases, signalling it should retry.
func (q *pathWaiterQueue) Enqueue() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	return ch
}

// wake releases the oldest waiter only, preserving first-queued priority
// so it is never starved by later arrivals racing it for the same path.
func (q *pathWaiterQueue) wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) == 0 {
		return
	}
	ch := q.waiters[0]
	q.waiters = q.waiters[1:]
	close(ch)
}

// WaitAndRetry calls fn; if fn returns ErrAgain it blocks until woken by a
// path release and calls fn again. It retries fn until fn returns a nil
// error or an error other than ErrAgain.
func (c *Cache) WaitAndRetry(fn func() error) error {
	for {
		err := fn()
		if err != ErrAgain {
			return err
		}
		<-c.waiters.Enqueue()
	}
}
