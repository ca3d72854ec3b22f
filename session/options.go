package session

import "time"

// Options is the user-facing configuration surface for a mount: the
// tunables a caller sets up front, as opposed to the negotiated state a
// Session accumulates once INIT completes.
type Options struct {
	// RememberInodes enables the remembered-nodes TTL list instead of
	// dropping nodes immediately at lookup_count==0.
	RememberInodes bool
	// RememberTTL is how long a remembered node survives before
	// PruneRemembered may reclaim it.
	RememberTTL time.Duration

	// NegativeEntryTTL is the entry_timeout the high-level adaptor sets
	// on a negative (ENOENT) lookup reply.
	NegativeEntryTTL time.Duration

	// EntryValidTTL and AttrValidTTL bound how long the kernel may trust a
	// positive lookup's entry and attribute caches, respectively, before
	// revalidating. Zero means the kernel must not cache at all.
	EntryValidTTL time.Duration
	AttrValidTTL  time.Duration

	// ReadThreads and ProcessThreads configure the two worker pools. A
	// negative value N means nproc/|N|, clamped to at least 1 — the same
	// convention the teacher's MountOptions uses for thread counts — except
	// that ProcessThreads == -1 disables the process pool (synchronous mode).
	ReadThreads    int
	ProcessThreads int

	// AffinityStrategy names a thread-pinning strategy understood by
	// workerpool.ResolvePin; unknown names are a no-op with a logged warning.
	AffinityStrategy string

	// UseIno, when false, overlays st_ino with the cache's nodeid instead
	// of whatever the provider returned.
	UseIno bool

	// DefaultUid/DefaultGid/DefaultMode, when non-nil, override
	// attribute fields in every reply the high-level adaptor processes.
	DefaultUid  *uint32
	DefaultGid  *uint32
	DefaultMode *uint32
}

// DefaultOptions mirrors the teacher's MountOptions zero-value behavior:
// sane defaults that work without the caller tuning anything.
func DefaultOptions() Options {
	return Options{
		RememberTTL:      60 * time.Second,
		NegativeEntryTTL: time.Second,
		EntryValidTTL:    time.Second,
		AttrValidTTL:     time.Second,
		ReadThreads:      -2,
		ProcessThreads:   -1,
	}
}

// EntryTTL returns the positive-lookup entry_valid duration in
// nanoseconds, the unit provider.LookupResult carries.
func (o Options) EntryTTL() time.Duration { return o.EntryValidTTL }

// AttrTTL returns the positive-lookup attr_valid duration in nanoseconds.
func (o Options) AttrTTL() time.Duration { return o.AttrValidTTL }
