package inode

// PruneRemembered evicts remembered nodes older than ttlSeconds (measured
// against nowSeconds, a monotonic clock value supplied by the caller — see
// the maintenance package) whose RefCount is still exactly 1, its base
// count, i.e. no child currently names it as Parent. Eviction
// cascades into the parent ref-count release the same way a normal forget
// does.
func (c *Cache) PruneRemembered(nowSeconds, ttlSeconds int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.remembered[:0:0]
	evicted := 0
	for _, e := range c.remembered {
		age := nowSeconds - e.at
		if age >= ttlSeconds && e.node.RefCount == 1 {
			c.deleteLocked(e.node)
			evicted++
			continue
		}
		kept = append(kept, e)
	}
	c.remembered = kept
	return evicted
}

// RememberedCount reports how many nodes are currently on the remembered
// list, for metrics/tests.
func (c *Cache) RememberedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.remembered)
}
