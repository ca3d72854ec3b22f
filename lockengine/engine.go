package lockengine

import (
	"errors"
	"sort"
)

// ErrNoLock mirrors -ENOLCK: the insert could not be completed. The C
// original returns this when it cannot allocate the (up to two) scratch
// records a split/trim needs; Go's growable slices never fail that way, so
// this implementation never actually returns it, but the signature is kept
// so callers mirror the C API and the failure mode stays documented.
var ErrNoLock = errors.New("lockengine: no lock space available")

// Node holds the locks held on a single file, sorted by Start.
type Node struct {
	locks []Lock
}

// Locks returns a read-only snapshot of the current records.
func (n *Node) Locks() []Lock {
	out := make([]Lock, len(n.locks))
	copy(out, n.locks)
	return out
}

// Conflict returns the first record belonging to a different owner whose
// range overlaps newLock where either side is a write lock, and true; or
// the zero Lock and false if there is no conflict.
func (n *Node) Conflict(newLock Lock) (Lock, bool) {
	for _, l := range n.locks {
		if l.Owner == newLock.Owner {
			continue
		}
		if !l.overlaps(newLock) {
			continue
		}
		if l.Type == WriteLock || newLock.Type == WriteLock {
			return l, true
		}
	}
	return Lock{}, false
}

// Insert applies newLock against the same-owner records per the merge/
// split/trim algebra, then inserts the (possibly merged) result unless it
// is an unlock. It never checks for conflicts against other owners — call
// Conflict first if that matters.
func (n *Node) Insert(newLock Lock) error {
	var kept []Lock
	merged := newLock

	for _, l := range n.locks {
		if l.Owner != newLock.Owner {
			kept = append(kept, l)
			continue
		}

		if l.Type == merged.Type {
			if !l.overlaps(merged) && !l.adjacent(merged) {
				kept = append(kept, l)
				continue
			}
			// Overlapping or touching same-owner same-type record: fold
			// it into the merged range and drop it.
			merged = union(l, merged)
			continue
		}

		// Different type against the same owner: split/trim/delete.
		kept = append(kept, splitAgainst(l, merged)...)
	}

	if merged.Type != UnlockType {
		kept = append(kept, merged)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	n.locks = kept
	return nil
}

// splitAgainst returns the remaining pieces of old after newLock (a
// different-type, same-owner record) has carved into its range.
func splitAgainst(old, newLock Lock) []Lock {
	if covers(newLock, old) {
		return nil
	}
	if covers(old, newLock) {
		var out []Lock
		if old.Start < newLock.Start {
			out = append(out, Lock{Start: old.Start, End: newLock.Start - 1, Type: old.Type, Owner: old.Owner})
		}
		if newLock.End != EOF && (old.End == EOF || newLock.End < old.End) {
			out = append(out, Lock{Start: newLock.End + 1, End: old.End, Type: old.Type, Owner: old.Owner})
		}
		return out
	}
	if !old.overlaps(newLock) {
		return []Lock{old}
	}
	// Partial overlap on one side: trim old to whichever portion falls
	// outside newLock's range.
	if old.Start < newLock.Start {
		return []Lock{{Start: old.Start, End: newLock.Start - 1, Type: old.Type, Owner: old.Owner}}
	}
	if newLock.End != EOF && old.End > newLock.End {
		return []Lock{{Start: newLock.End + 1, End: old.End, Type: old.Type, Owner: old.Owner}}
	}
	return nil
}

// covers reports whether a's range fully contains b's range.
func covers(a, b Lock) bool {
	if a.Start > b.Start {
		return false
	}
	if a.End == EOF {
		return true
	}
	return b.End != EOF && a.End >= b.End
}
