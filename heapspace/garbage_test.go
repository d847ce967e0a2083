package heapspace

import "testing"

func TestGarbageListPushUnderCap(t *testing.T) {
	g := NewGarbageList(10)
	evicted := 0
	evict := func(owner *PseudoHeap) { evicted++ }

	owner := &PseudoHeap{}
	elem := g.Push(0x1000, 4, owner, evict)
	if elem == nil {
		t.Fatal("Push returned nil element")
	}
	if got := g.TotalPages(); got != 4 {
		t.Errorf("TotalPages() = %d, want 4", got)
	}
	if evicted != 0 {
		t.Errorf("evicted %d entries, want 0 (cap not exceeded)", evicted)
	}
}

func TestGarbageListEvictsPastCap(t *testing.T) {
	g := NewGarbageList(5)
	evictedOwners := map[*PseudoHeap]bool{}
	evict := func(owner *PseudoHeap) { evictedOwners[owner] = true }

	first := &PseudoHeap{}
	second := &PseudoHeap{}
	third := &PseudoHeap{}

	g.Push(0x1000, 2, first, evict)
	g.Push(0x2000, 2, second, evict)
	// Pushing a third entry exceeds the 5-page cap (2+2+3 > 5); the tail
	// entry, the oldest one "first", is evicted, after which 2+3 fits.
	g.Push(0x3000, 3, third, evict)

	if !evictedOwners[first] {
		t.Error("expected the tail entry to be evicted")
	}
	if evictedOwners[second] || evictedOwners[third] {
		t.Error("only the tail entry should be evicted")
	}
}

func TestGarbageListRemove(t *testing.T) {
	g := NewGarbageList(10)
	owner := &PseudoHeap{}
	elem := g.Push(0x1000, 3, owner, func(*PseudoHeap) {
		t.Fatal("evict should not be called for a direct Remove")
	})
	g.Remove(elem)
	if got := g.TotalPages(); got != 0 {
		t.Errorf("TotalPages() = %d, want 0 after Remove", got)
	}
}
