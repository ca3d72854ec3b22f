package workerpool

import "log"

// Strategy names a thread-pinning layout. Unknown names are a no-op with
// a logged warning rather than an error, matching spec.md §4.3's
// "unknown strategy name is logged and ignored".
type Strategy string

const (
	StrategyNone               Strategy = ""
	StrategyAllToOneLogical    Strategy = "all-to-one-logical"
	StrategyAllToOnePhysical   Strategy = "all-to-one-physical-core"
	StrategyReadFirstProcLast  Strategy = "read-to-first-process-to-last"
	StrategyStripeLogical      Strategy = "stripe-across-logical"
	StrategyStripePhysical     Strategy = "stripe-across-physical-cores"
	StrategyMixedStripeLogical Strategy = "mixed-stripe-logical"
)

// PinPlan is the resolved (cpu set per worker index) assignment for one
// role (read or process) under a Strategy.
type PinPlan struct {
	// CPUs[i] is the logical CPU index worker i should be pinned to.
	CPUs []int
}

// ResolvePin builds a PinPlan for n workers under strategy, given the
// number of logical CPUs available. Pinning is Linux-only; callers on
// other platforms should skip applying the plan (see affinity_linux.go /
// affinity_other.go).
func ResolvePin(strategy Strategy, n, logicalCPUs int, isProcessRole bool) PinPlan {
	if logicalCPUs <= 0 {
		logicalCPUs = 1
	}
	cpus := make([]int, n)

	switch strategy {
	case StrategyAllToOneLogical, StrategyAllToOnePhysical:
		for i := range cpus {
			cpus[i] = 0
		}
	case StrategyReadFirstProcLast:
		for i := range cpus {
			if isProcessRole {
				cpus[i] = logicalCPUs - 1
			} else {
				cpus[i] = 0
			}
		}
	case StrategyStripeLogical, StrategyStripePhysical, StrategyMixedStripeLogical:
		for i := range cpus {
			cpus[i] = i % logicalCPUs
		}
	case StrategyNone:
		for i := range cpus {
			cpus[i] = -1 // no pin
		}
	default:
		log.Printf("workerpool: unknown affinity strategy %q, ignoring", strategy)
		for i := range cpus {
			cpus[i] = -1
		}
	}
	return PinPlan{CPUs: cpus}
}
