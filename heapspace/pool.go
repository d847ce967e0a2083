package heapspace

import "container/list"

// poolEntry is a contiguous run of pages a pseudo heap gave up entirely
// (shrunk to zero) that is kept mapped in the hope a size class bulging
// back up can reuse it without a fresh mmap.
type poolEntry struct {
	addr    uintptr
	pageNum int
}

// Pool is a bounded LIFO cache of whole pseudo-heap regions freed in
// full. Mirrors pool_push/pool_top: entries are pushed at the head and
// handed back out from the head, bounded by a total-page threshold — a
// push that arrives while the pool holds more than the threshold unmaps
// the region instead of retaining it.
type Pool struct {
	entries   *list.List
	totalPage int
	threshold int
}

// NewPool returns an empty pool capped at threshold total pages.
func NewPool(threshold int) *Pool {
	return &Pool{entries: list.New(), threshold: threshold}
}

// Push offers a freed region to the pool. release is called instead when
// the pool already holds more than its threshold, so the caller can unmap
// the region and return its slot to the reserver.
func (p *Pool) Push(addr uintptr, pageNum int, release func(addr uintptr, pageNum int)) {
	if p.totalPage > p.threshold {
		release(addr, pageNum)
		return
	}
	p.entries.PushFront(poolEntry{addr: addr, pageNum: pageNum})
	p.totalPage += pageNum
}

// Empty reports whether the pool currently holds no regions.
func (p *Pool) Empty() bool { return p.entries.Len() == 0 }

// Pop removes and returns the most recently pushed region. Panics if the pool is
// empty; callers must check Empty first, matching the original's
// assert(!IS_POOL_EMPTY()).
func (p *Pool) Pop() (addr uintptr, pageNum int) {
	front := p.entries.Front()
	if front == nil {
		panic("heapspace: Pop from empty pool")
	}
	p.entries.Remove(front)
	e := front.Value.(poolEntry)
	p.totalPage -= e.pageNum
	return e.addr, e.pageNum
}

// TotalPages reports the number of pages currently held in the pool.
func (p *Pool) TotalPages() int { return p.totalPage }
