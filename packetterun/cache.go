package packetterun

import "container/list"

// eventCache is a bounded LRU keyed by event number. Eviction is
// least-recently-inserted, not least-recently-accessed: a cache hit never
// moves an entry, which matches observed browsing behavior and is cheaper
// than a touch-on-access scheme.
type eventCache struct {
	capacity int
	order    *list.List // front = most recently inserted, back = next to evict
	entries  map[uint32]*list.Element
}

func newEventCache(capacity int) *eventCache {
	return &eventCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[uint32]*list.Element),
	}
}

func (c *eventCache) get(eventNum uint32) (*Event, bool) {
	el, ok := c.entries[eventNum]
	if !ok {
		return nil, false
	}
	return el.Value.(*Event), true
}

// insert adds e to the cache, evicting the oldest-inserted entry if the
// cache is now over capacity. Re-inserting an event already present is a
// no-op (it should never happen: a cache hit is checked before a
// reassembly is attempted).
func (c *eventCache) insert(e *Event) {
	if _, ok := c.entries[e.EventNum]; ok {
		return
	}
	el := c.order.PushFront(e)
	c.entries[e.EventNum] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*Event).EventNum)
		}
	}
}

// forEach visits every cached event. Used by SetView to rewrite masks and
// rebuild cached views in place without purging the cache.
func (c *eventCache) forEach(f func(*Event)) {
	for el := c.order.Front(); el != nil; el = el.Next() {
		f(el.Value.(*Event))
	}
}

func (c *eventCache) len() int {
	return c.order.Len()
}
