package heapspace

import "container/list"

// garbageEntry is the trailing "extra" pages a pseudo heap kept past its
// shrink target, in case it bulges right back up before anything else
// needs the space.
type garbageEntry struct {
	addr    uintptr
	pageNum int
	owner   *PseudoHeap
}

// GarbageList is a bounded most-recently-freed-first list of per-heap
// extra pages. Mirrors garbage_push/garbage_delete: new entries go to the
// head; when an addition would push the total past GarbageNumMax, entries
// are evicted from the tail (oldest first) and their owners' extra pages
// are actually unmapped.
type GarbageList struct {
	entries   *list.List
	totalPage int
	max       int
}

// NewGarbageList returns an empty garbage list capped at max total pages.
func NewGarbageList(max int) *GarbageList {
	return &GarbageList{entries: list.New(), max: max}
}

// Push adds owner's extra pages to the list, first evicting entries from
// the tail (oldest first) until the addition fits under the cap or the
// list is empty; a single push larger than the cap is still added. evict
// is invoked with each evicted entry's owner so the caller can actually
// unmap its pages.
func (g *GarbageList) Push(addr uintptr, pageNum int, owner *PseudoHeap, evict func(owner *PseudoHeap)) *list.Element {
	for g.totalPage+pageNum > g.max {
		back := g.entries.Back()
		if back == nil {
			break
		}
		e := back.Value.(garbageEntry)
		g.entries.Remove(back)
		g.totalPage -= e.pageNum
		evict(e.owner)
	}
	elem := g.entries.PushFront(garbageEntry{addr: addr, pageNum: pageNum, owner: owner})
	g.totalPage += pageNum
	return elem
}

// Remove takes entry out of the list without evicting or unmapping
// anything, matching garbage_remove: used when a heap reclaims its own
// extra pages by bulging back into them.
func (g *GarbageList) Remove(elem *list.Element) {
	e := g.entries.Remove(elem).(garbageEntry)
	g.totalPage -= e.pageNum
}

// TotalPages reports the number of pages currently tracked as garbage.
func (g *GarbageList) TotalPages() int { return g.totalPage }
