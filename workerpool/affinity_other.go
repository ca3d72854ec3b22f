//go:build !linux

package workerpool

import "log"

// Pin is a no-op on non-Linux platforms; thread pinning is a Linux-only
// feature per spec.md §4.3.
func Pin(cpu int) {
	if cpu < 0 {
		return
	}
	log.Printf("workerpool: thread pinning unsupported on this platform, ignoring cpu %d", cpu)
}
