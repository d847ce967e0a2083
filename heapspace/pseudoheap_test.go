package heapspace

import (
	"testing"
	"unsafe"
)

func unsafeByteView(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

func TestPseudoHeapBulgeAndShrinkNoHeuristics(t *testing.T) {
	r := NewReserver(2)
	h := NewPseudoHeap(r, nil, nil, false, 1, 1)

	pageSize := r.PageSize()
	h.Bulge(pageSize + 1)
	if h.PageNum() != 2 {
		t.Fatalf("PageNum() = %d, want 2 after bulging past one page", h.PageNum())
	}

	buf := unsafeByteView(h.Address(), h.UsingMem())
	buf[0] = 0xAB
	if buf[0] != 0xAB {
		t.Fatal("mapped region is not writable")
	}

	h.Shrink(0)
	if h.PageNum() != 0 || h.Address() != 0 {
		t.Errorf("after Shrink(0): PageNum()=%d Address()=0x%x, want 0,0", h.PageNum(), h.Address())
	}
}

func TestPseudoHeapHeuristicsReusesGarbageBeforeGrowingFurther(t *testing.T) {
	r := NewReserver(2)
	pool := NewPool(16)
	garbage := NewGarbageList(6)
	h := NewPseudoHeap(r, pool, garbage, true, 9, 8)

	pageSize := r.PageSize()
	h.Bulge(4 * pageSize)
	if h.PageNum() != 4 {
		t.Fatalf("PageNum() = %d, want 4", h.PageNum())
	}

	h.Shrink(pageSize)
	// extraRate = 9/8 leaves the 1-page target at 1 page (integer
	// division); the 3 pages given back are retained as the heap's own
	// extra allotment instead of unmapped.
	if h.PageNum() < 1 {
		t.Fatalf("PageNum() = %d, want >= 1 after shrink", h.PageNum())
	}

	h.Bulge(4 * pageSize)
	if h.PageNum() != 4 {
		t.Errorf("PageNum() = %d, want 4 after re-bulging", h.PageNum())
	}
	if garbage.TotalPages() != 0 {
		t.Errorf("TotalPages() = %d, want 0 once the heap reclaims its own extra pages", garbage.TotalPages())
	}
}

func TestPseudoHeapClose(t *testing.T) {
	r := NewReserver(1)
	h := NewPseudoHeap(r, nil, nil, false, 1, 1)
	h.Bulge(r.PageSize())
	h.Close()
	if h.PageNum() != 0 {
		t.Errorf("PageNum() = %d after Close, want 0", h.PageNum())
	}
}

func TestPseudoHeapHeuristicsReleasesSlotWhenPoolEvicts(t *testing.T) {
	// A pool threshold below zero means every push exceeds it immediately,
	// so Shrink(0) always takes the release branch instead of retaining
	// the region. That release closure must hand the slot back to the
	// reserver, or the one available slot is exhausted after a single
	// empty->refill cycle and the next heap's Bulge (AcquireSlot) panics.
	r := NewReserver(1)
	pool := NewPool(-1)
	garbage := NewGarbageList(6)
	pageSize := r.PageSize()

	for i := 0; i < 50; i++ {
		h := NewPseudoHeap(r, pool, garbage, true, 1, 1)
		h.Bulge(pageSize)
		if h.PageNum() != 1 {
			t.Fatalf("iteration %d: PageNum() = %d, want 1", i, h.PageNum())
		}
		h.Shrink(0)
		if h.PageNum() != 0 || h.Address() != 0 {
			t.Fatalf("iteration %d: PageNum()=%d Address()=0x%x, want 0,0", i, h.PageNum(), h.Address())
		}
		if !pool.Empty() {
			t.Fatalf("iteration %d: pool should stay empty when every push exceeds threshold", i)
		}
	}
}

func TestPseudoHeapNoHeuristicsReleasesSlotOnEmpty(t *testing.T) {
	r := NewReserver(1)
	h := NewPseudoHeap(r, nil, nil, false, 1, 1)

	pageSize := r.PageSize()
	for i := 0; i < 100; i++ {
		h.Bulge(pageSize)
		if h.PageNum() != 1 {
			t.Fatalf("iteration %d: PageNum() = %d, want 1", i, h.PageNum())
		}
		h.Shrink(0)
		if h.PageNum() != 0 || h.Address() != 0 {
			t.Fatalf("iteration %d: PageNum()=%d Address()=0x%x, want 0,0", i, h.PageNum(), h.Address())
		}
	}
}
