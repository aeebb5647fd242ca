package physics

import "go.uber.org/zap"

// overlapKey is an unordered body pair, canonical by serial so each overlap
// is cached once regardless of contact order.
type overlapKey struct {
	a, b uint64
}

func pairKey(a, b uint64) overlapKey {
	if a > b {
		a, b = b, a
	}
	return overlapKey{a: a, b: b}
}

// overlapEntry is one cached trigger overlap. The owner and group snapshots
// make exit events safe to fire after a side was disabled.
type overlapEntry struct {
	serialA, serialB uint64
	ownerA, ownerB   any
	groupA, groupB   uint16
	seen             bool
}

// overlapCache remembers which trigger pairs overlapped last scan so enter
// and exit events fire exactly once per pair. Each body may hold at most cap
// overlaps; pairs past the cap are dropped, so they fire neither enter nor a
// later phantom exit.
type overlapCache struct {
	cap    int
	log    *zap.Logger
	pairs  map[overlapKey]*overlapEntry
	counts map[uint64]int
	warned bool
}

func newOverlapCache(cap int, log *zap.Logger) *overlapCache {
	return &overlapCache{
		cap:    cap,
		log:    log,
		pairs:  make(map[overlapKey]*overlapEntry),
		counts: make(map[uint64]int),
	}
}

// beginScan clears the seen marks before a rescan.
func (c *overlapCache) beginScan() {
	for _, e := range c.pairs {
		e.seen = false
	}
}

// add marks the pair as overlapping this scan, caching it and firing the
// enter callback the first time.
func (c *overlapCache) add(a, b *Body, args *StepArgs) {
	key := pairKey(a.serial, b.serial)
	if e, ok := c.pairs[key]; ok {
		e.seen = true
		return
	}
	if c.counts[a.serial] >= c.cap || c.counts[b.serial] >= c.cap {
		if !c.warned {
			c.log.Warn("trigger overlap capacity reached, some enter/exit events will not be reported",
				zap.Int("capacity", c.cap))
			c.warned = true
		}
		return
	}
	c.pairs[key] = &overlapEntry{
		serialA: a.serial,
		serialB: b.serial,
		ownerA:  a.owner,
		ownerB:  b.owner,
		groupA:  a.def.Group,
		groupB:  b.def.Group,
		seen:    true,
	}
	c.counts[a.serial]++
	c.counts[b.serial]++
	if args.TriggerEnter != nil {
		args.TriggerEnter(TriggerEvent{
			OwnerA: a.owner,
			GroupA: a.def.Group,
			OwnerB: b.owner,
			GroupB: b.def.Group,
		})
	}
}

// prune drops every pair the scan did not mark, firing the exit callback for
// each.
func (c *overlapCache) prune(args *StepArgs) {
	for key, e := range c.pairs {
		if e.seen {
			continue
		}
		c.drop(key, e)
		if args.TriggerExit != nil {
			args.TriggerExit(TriggerEvent{
				OwnerA: e.ownerA,
				GroupA: e.groupA,
				OwnerB: e.ownerB,
				GroupB: e.groupB,
			})
		}
	}
}

// removeBody silently drops every pair involving the body. Destroying an
// object inside a trigger reports no exit.
func (c *overlapCache) removeBody(serial uint64) {
	for key, e := range c.pairs {
		if e.serialA == serial || e.serialB == serial {
			c.drop(key, e)
		}
	}
	delete(c.counts, serial)
}

func (c *overlapCache) drop(key overlapKey, e *overlapEntry) {
	delete(c.pairs, key)
	if n := c.counts[e.serialA] - 1; n > 0 {
		c.counts[e.serialA] = n
	} else {
		delete(c.counts, e.serialA)
	}
	if n := c.counts[e.serialB] - 1; n > 0 {
		c.counts[e.serialB] = n
	} else {
		delete(c.counts, e.serialB)
	}
}
