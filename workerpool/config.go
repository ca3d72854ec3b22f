// Package workerpool implements the two logical thread pools that drive a
// session: a read pool performing blocking device reads, and in
// asynchronous mode a separate process pool that dispatches the decoded
// request to a provider callback. Thread counts are derived from
// configuration and CPU count the way the original thread_pool.hpp-backed
// design does, and the inter-pool handoff is a bounded MPMC slot pool.
package workerpool

import "runtime"

// Mode selects whether read and processing happen on the same thread
// (Synchronous) or are decoupled via a queue (Asynchronous).
type Mode int

const (
	Synchronous Mode = iota
	Asynchronous
)

// Config is the resolved thread-count configuration for one session.
type Config struct {
	ReadThreads    int
	ProcessThreads int
	Mode           Mode
	// Affinity, when non-empty, pins each read/process worker goroutine
	// to a logical CPU per ResolvePin's layout for this strategy.
	Affinity Strategy
}

// Resolve derives a Config from the raw read/proc settings, per spec.md
// §4.3's table: negative values mean nproc/|value| clamped to at least 1;
// proc == -1 disables the process pool (synchronous mode); proc == 0 with
// read == 0 defaults to 2 read threads and min(8, nproc-2) process
// threads.
func Resolve(read, proc int, nproc int) Config {
	if nproc <= 0 {
		nproc = runtime.NumCPU()
	}

	if read == 0 && proc == -1 {
		return Config{ReadThreads: clampMin1(min(8, nproc)), Mode: Synchronous}
	}
	if read == 0 && proc == 0 {
		return Config{
			ReadThreads:    2,
			ProcessThreads: clampMin1(min(8, nproc-2)),
			Mode:           Asynchronous,
		}
	}

	readThreads := resolveCount(read, nproc)
	if proc == -1 {
		return Config{ReadThreads: readThreads, Mode: Synchronous}
	}
	return Config{
		ReadThreads:    readThreads,
		ProcessThreads: resolveCount(proc, nproc),
		Mode:           Asynchronous,
	}
}

func resolveCount(n, nproc int) int {
	if n > 0 {
		return n
	}
	if n == 0 {
		return clampMin1(nproc)
	}
	return clampMin1(nproc / -n)
}

func clampMin1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
