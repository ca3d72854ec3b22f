package maintenance

import "time"

// RememberedCache is the subset of *inode.Cache the forget-prune job needs;
// declared as an interface here so this package never imports inode,
// keeping the dependency direction the same as the rest of fusekernel
// (leaf packages don't import their callers' callers).
type RememberedCache interface {
	PruneRemembered(nowSeconds, ttlSeconds int64) int
}

// BufferGc is satisfied by msgbuf.Pool.
type BufferGc interface {
	Gc10Percent()
}

// SlabGc is satisfied by fixedpool.Pool[T], for any T.
type SlabGc interface {
	Gc() int
}

// ForgetPruneJob returns a Job that evicts remembered nodes older than ttl
// on every tick, the Go counterpart of the C original's
// recursiveConsiderDropInode sweep driven off the same maintenance tick.
// now is called fresh each tick rather than captured once, so tests can
// supply a fake clock.
func ForgetPruneJob(cache RememberedCache, ttl time.Duration, now func() time.Time) Job {
	return func(count int) {
		cache.PruneRemembered(now().Unix(), int64(ttl/time.Second))
	}
}

// BufferGcJob returns a Job that releases a tenth of a pool's free list on
// every tick, matching msgbuf_gc_10percent being driven off the same
// maintenance thread in the original.
func BufferGcJob(pool BufferGc) Job {
	return func(count int) { pool.Gc10Percent() }
}

// SlabGcJob returns a Job that reclaims trailing empty slabs from a
// fixedpool.Pool on every tick, matching lfmp_gc being driven off the
// same maintenance thread in the original.
func SlabGcJob(pool SlabGc) Job {
	return func(count int) { pool.Gc() }
}
