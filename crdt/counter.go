package crdt

// GCounter is a per-replica monotone counter; its value is the sum across
// replicas, and merging two counters takes the componentwise max.
type GCounter struct {
	counts map[string]int64
}

// NewGCounter returns an empty G-Counter.
func NewGCounter() *GCounter {
	return &GCounter{counts: make(map[string]int64)}
}

// Increment adds delta (must be non-negative) to replicaID's count.
func (c *GCounter) Increment(replicaID string, delta int64) {
	if delta < 0 {
		return
	}
	c.counts[replicaID] += delta
}

// Value is the sum of every replica's count.
func (c *GCounter) Value() int64 {
	var total int64
	for _, v := range c.counts {
		total += v
	}
	return total
}

// Merge combines other into c by taking, per replica, whichever count is
// larger — the operation is idempotent and commutative, as required of a
// state-based CRDT merge.
func (c *GCounter) Merge(other *GCounter) {
	for replica, v := range other.counts {
		if cur := c.counts[replica]; v > cur {
			c.counts[replica] = v
		}
	}
}

// PNCounter pairs two G-Counters so values can both increase and decrease;
// its value is P minus N.
type PNCounter struct {
	P *GCounter
	N *GCounter
}

// NewPNCounter returns a zero-valued PN-Counter.
func NewPNCounter() *PNCounter {
	return &PNCounter{P: NewGCounter(), N: NewGCounter()}
}

// Increment adds delta to replicaID's positive counter.
func (c *PNCounter) Increment(replicaID string, delta int64) {
	c.P.Increment(replicaID, delta)
}

// Decrement adds delta to replicaID's negative counter.
func (c *PNCounter) Decrement(replicaID string, delta int64) {
	c.N.Increment(replicaID, delta)
}

// Value is P's total minus N's total.
func (c *PNCounter) Value() int64 {
	return c.P.Value() - c.N.Value()
}

// Merge merges both underlying G-Counters componentwise.
func (c *PNCounter) Merge(other *PNCounter) {
	c.P.Merge(other.P)
	c.N.Merge(other.N)
}
