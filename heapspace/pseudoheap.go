package heapspace

import (
	"container/list"

	"golang.org/x/sys/unix"
)

// PseudoHeap is one size class's growable/shrinkable virtual buffer: a
// slice of the Reserver's reserved space that is mapped real a page at a
// time as it grows, and unmapped (or handed to the pool/garbage list) as
// it shrinks. Mirrors pseudo_heap_t plus pheap_bulge/pheap_shrink.
type PseudoHeap struct {
	reserver *Reserver
	pool     *Pool
	garbage  *GarbageList

	heuristics   bool
	extraRateNum int
	extraRateDen int

	addr        uintptr
	pageNum     int
	extraNum    int
	garbageElem *list.Element
}

// NewPseudoHeap returns an empty pseudo heap drawing address space from r
// and, when heuristics is true, sharing pool/garbage with sibling heaps.
// extraRateNum/extraRateDen is the EXTRA_PAGE_RATE fraction (9/8 by
// default) applied to the shrink target before comparing against the
// current page count.
func NewPseudoHeap(r *Reserver, pool *Pool, garbage *GarbageList, heuristics bool, extraRateNum, extraRateDen int) *PseudoHeap {
	return &PseudoHeap{
		reserver:     r,
		pool:         pool,
		garbage:      garbage,
		heuristics:   heuristics,
		extraRateNum: extraRateNum,
		extraRateDen: extraRateDen,
	}
}

// Address returns the current base address of the heap's mapped region,
// or 0 if the heap is currently empty.
func (h *PseudoHeap) Address() uintptr { return h.addr }

// PageNum reports the number of pages currently mapped readable/writable.
func (h *PseudoHeap) PageNum() int { return h.pageNum }

// UsingMem reports the number of bytes currently mapped, matching
// pheap_using_mem.
func (h *PseudoHeap) UsingMem() int { return h.pageNum * h.reserver.PageSize() }

func (h *PseudoHeap) lengthToPageNum(size int) int {
	pageSize := h.reserver.PageSize()
	return (size + pageSize - 1) / pageSize
}

// Bulge ensures at least newSize bytes are mapped readable/writable,
// growing from the pool, from retained extra pages, or by mapping fresh
// pages, in that order of preference. Mirrors pheap_bulge exactly.
func (h *PseudoHeap) Bulge(newSize int) {
	oldPageNum := h.pageNum
	newPageNum := h.lengthToPageNum(newSize)
	if oldPageNum >= newPageNum {
		return
	}

	if h.addr == 0 {
		if h.heuristics && !h.pool.Empty() {
			addr, pages := h.pool.Pop()
			h.addr = addr
			oldPageNum = pages
			if oldPageNum >= newPageNum {
				h.pageNum = oldPageNum
				return
			}
		} else {
			h.addr = h.reserver.AcquireSlot()
		}
	} else if h.heuristics && h.extraNum > 0 {
		h.garbage.Remove(h.garbageElem)
		h.garbageElem = nil
		oldPageNum += h.extraNum
		h.extraNum = 0
		if oldPageNum >= newPageNum {
			h.pageNum = oldPageNum
			return
		}
	}

	pageSize := h.reserver.PageSize()
	growBy := (newPageNum - oldPageNum) * pageSize
	at := h.addr + uintptr(oldPageNum*pageSize)
	mapFixed(at, growBy)
	h.pageNum = newPageNum
}

// Shrink maps down to newSize bytes, matching pheap_shrink: when
// heuristics are enabled the target is inflated by extraRate first, and
// the pages given back are kept as extra (garbage-listed) or, if the
// heap empties entirely, handed whole to the pool instead of being
// unmapped outright.
func (h *PseudoHeap) Shrink(newSize int) {
	oldPageNum := h.pageNum
	newPageNum := h.lengthToPageNum(newSize)
	if h.heuristics {
		newPageNum = newPageNum * h.extraRateNum / h.extraRateDen
	}
	if oldPageNum <= newPageNum {
		return
	}

	pageSize := h.reserver.PageSize()
	if !h.heuristics {
		unmapZero(h.addr+uintptr(newPageNum*pageSize), (oldPageNum-newPageNum)*pageSize)
		h.pageNum = newPageNum
		if newPageNum == 0 {
			h.reserver.ReleaseSlot(h.addr)
			h.addr = 0
		}
		return
	}

	if newPageNum == 0 {
		if h.extraNum > 0 {
			h.garbage.Remove(h.garbageElem)
			h.garbageElem = nil
			h.deleteExtra()
		}
		h.pool.Push(h.addr, oldPageNum, func(addr uintptr, pages int) {
			unmapZero(addr, pages*pageSize)
			h.reserver.ReleaseSlot(addr)
		})
		h.addr = 0
		h.pageNum = 0
		return
	}

	if h.extraNum > 0 {
		h.garbage.Remove(h.garbageElem)
		h.garbageElem = nil
		h.deleteExtra()
	}
	extraAddr := h.addr + uintptr(newPageNum*pageSize)
	extraPages := oldPageNum - newPageNum
	h.garbageElem = h.garbage.Push(extraAddr, extraPages, h, func(owner *PseudoHeap) {
		owner.deleteExtra()
	})
	h.extraNum = extraPages
	h.pageNum = newPageNum
}

// deleteExtra actually unmaps this heap's retained extra pages, matching
// pheap_delete_extra. It does not touch the garbage list itself; callers
// remove or evict the list entry separately.
func (h *PseudoHeap) deleteExtra() {
	pageSize := h.reserver.PageSize()
	unmapZero(h.addr+uintptr(h.pageNum*pageSize), h.extraNum*pageSize)
	h.extraNum = 0
}

// Close releases all pages the heap holds, matching pheap_final.
func (h *PseudoHeap) Close() {
	if h.pageNum > 0 {
		h.Shrink(0)
	}
}

// mmapFixed mmaps size bytes at the exact address addr, the MAP_FIXED
// form safe_anon_mmap/safe_zero_mmap both rely on. golang.org/x/sys/unix's
// high-level Mmap wrapper always lets the kernel choose an address, so a
// fixed mapping over an already-reserved range has to go through the raw
// syscall directly, as the pack's own uffd_linux.go does for mmap-adjacent
// calls it can't express through the high-level wrapper either.
func mmapFixed(addr uintptr, size, prot, flags int) {
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(size),
		uintptr(prot), uintptr(flags|unix.MAP_FIXED), ^uintptr(0), 0)
	if errno != 0 {
		fatalMmap("mmapFixed", size, errno)
	}
}

func mapFixed(addr uintptr, size int) {
	mmapFixed(addr, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func unmapZero(addr uintptr, size int) {
	if size == 0 {
		return
	}
	mmapFixed(addr, size, unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|mapNoreserve)
}
