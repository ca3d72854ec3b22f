//go:build linux

package workerpool

import (
	"log"

	"golang.org/x/sys/unix"
)

// Pin pins the calling OS thread to cpu. Callers must have locked the
// goroutine to its OS thread first (runtime.LockOSThread) since affinity
// is a per-thread, not per-goroutine, attribute.
func Pin(cpu int) {
	if cpu < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Printf("workerpool: sched_setaffinity cpu %d: %v", cpu, err)
	}
}
