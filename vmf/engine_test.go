package vmf

import (
	"testing"
	"unsafe"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/engineconfig"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/pageframe/localsrv"
)

func newTestEngine(t *testing.T, memMin, memMax, elemNrMax, totalBudget int) *Engine {
	t.Helper()
	e := Init(engineconfig.Default(), memMin, memMax, elemNrMax, totalBudget, localsrv.New())
	t.Cleanup(e.Close)
	return e
}

func readByte(p unsafe.Pointer) byte {
	return *(*byte)(p)
}

func writeByte(p unsafe.Pointer, b byte) {
	*(*byte)(p) = b
}

func writeBytes(p unsafe.Pointer, data []byte) {
	view := unsafe.Slice((*byte)(p), len(data))
	copy(view, data)
}

func readBytes(p unsafe.Pointer, n int) []byte {
	view := unsafe.Slice((*byte)(p), n)
	out := make([]byte, n)
	copy(out, view)
	return out
}

// Scenario 1: round-trip.
func TestScenarioRoundTrip(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)

	e.Allocate(7, 100)
	addr, ok := e.Dereference(7)
	if !ok {
		t.Fatal("Dereference(7) = not ok, want ok")
	}
	writeBytes(addr, []byte("HELLO"))

	addr, ok = e.Dereference(7)
	if !ok {
		t.Fatal("Dereference(7) = not ok, want ok")
	}
	if got := string(readBytes(addr, 5)); got != "HELLO" {
		t.Errorf("payload = %q, want %q", got, "HELLO")
	}
	if e.Length(7) < 100 {
		t.Errorf("Length(7) = %d, want >= 100", e.Length(7))
	}
}

// Scenario 2: tail relocation (VMF's head-object relocation).
func TestScenarioTailRelocation(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)

	e.Allocate(0, 64)
	e.Allocate(1, 64)
	e.Allocate(2, 64)

	a0, _ := e.Dereference(0)
	a1, _ := e.Dereference(1)
	a2, _ := e.Dereference(2)
	writeByte(a0, 'A')
	writeByte(a1, 'B')
	writeByte(a2, 'C')

	e.Deallocate(1)

	a2, ok := e.Dereference(2)
	if !ok {
		t.Fatal("Dereference(2) should still be live after deallocating 1")
	}
	if got := readByte(a2); got != 'C' {
		t.Errorf("dereference(2) first byte = %q, want 'C'", got)
	}

	a0, ok = e.Dereference(0)
	if !ok {
		t.Fatal("Dereference(0) should still be live")
	}
	if got := readByte(a0); got != 'A' {
		t.Errorf("dereference(0) first byte = %q, want 'A'", got)
	}

	if _, ok := e.Dereference(1); ok {
		t.Error("Dereference(1) should be null after deallocate")
	}
}

// Scenario 3: page packing. With mem_max=128 to force multiple blocks
// per page, allocate 10 blocks of 128 bytes into bids 0..9, check P3,
// then deallocate in reverse order and check every class list head
// empties out.
func TestScenarioPagePacking(t *testing.T) {
	e := newTestEngine(t, 16, 128, 16, 262144)

	for bid := 0; bid < 10; bid++ {
		e.Allocate(bid, 128)
	}

	assertHeadOnlyPartial(t, e)

	for bid := 9; bid >= 0; bid-- {
		e.Deallocate(bid)
	}

	nullPage := e.pageDir.NullPage()
	for _, head := range e.pageHeads {
		if head != nullPage {
			t.Errorf("head page %d should be the null page after draining every class", head)
		}
	}
}

// P3: head-only partial — for every class, at most one page in its list
// has free_offset > 0, and it is the head.
func assertHeadOnlyPartial(t *testing.T, e *Engine) {
	t.Helper()
	nullPage := e.pageDir.NullPage()
	for sc := e.scMin; sc <= e.scMax; sc++ {
		head := e.pageHeads[sc-e.scMin]
		if head == nullPage {
			continue
		}
		for id := e.pageDir.Next(int(head)); id != nullPage; id = e.pageDir.Next(int(id)) {
			if e.pageDir.Offset(int(id)) > 0 {
				t.Errorf("class %d: non-head page %d has free_offset %d, want 0", sc, id, e.pageDir.Offset(int(id)))
			}
		}
	}
}

// Scenario 4: cross-class reallocate.
func TestScenarioCrossClassReallocate(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)

	e.Allocate(3, 32)
	addr, _ := e.Dereference(3)
	pattern := make([]byte, 32)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	writeBytes(addr, pattern)

	e.Reallocate(3, 1024)

	addr, ok := e.Dereference(3)
	if !ok {
		t.Fatal("Dereference(3) should still be live after reallocate")
	}
	if got := readBytes(addr, 32); string(got) != string(pattern) {
		t.Errorf("prefix after reallocate = %v, want %v", got, pattern)
	}
	if e.Length(3) < 1024 {
		t.Errorf("Length(3) = %d, want >= 1024", e.Length(3))
	}
}

// Scenario 5: dereference-after-null.
func TestScenarioDereferenceBeforeAllocate(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	if _, ok := e.Dereference(42); ok {
		t.Error("Dereference(42) before any allocate should be not-ok")
	}
}

// P2: directory consistency — the header at a live bid's page_base+ofs
// address reads back as that bid.
func TestDirectoryConsistencyAcrossChurn(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)

	for bid := 0; bid < 20; bid++ {
		e.Allocate(bid, 48)
	}
	e.Deallocate(5)
	e.Deallocate(10)
	e.Allocate(5, 48)

	for bid := 0; bid < 20; bid++ {
		if bid == 10 {
			if !e.elemDir.IsNull(bid) {
				t.Errorf("bid %d should be deallocated", bid)
			}
			continue
		}
		ofs := e.elemDir.Offset(bid)
		pageID := e.elemDir.Page(bid)
		if got := e.readBlockHeader(pageID, ofs); got != bid {
			t.Errorf("bid %d: header at its own directory slot reads %d", bid, got)
		}
	}
}

// P6: round-trip — write then dereference returns identical bytes, with
// no intervening allocator calls.
func TestRoundTripNoIntervening(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	e.Allocate(1, 200)
	addr, _ := e.Dereference(1)
	data := []byte("round-trip-payload")
	writeBytes(addr, data)

	addr, ok := e.Dereference(1)
	if !ok {
		t.Fatal("expected live bid")
	}
	if got := string(readBytes(addr, len(data))); got != string(data) {
		t.Errorf("round trip = %q, want %q", got, data)
	}
}

// P7: relocation durability — after churn elsewhere in the same class,
// an untouched bid's contents survive.
func TestRelocationDurability(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	e.Allocate(0, 64)
	addr, _ := e.Dereference(0)
	writeBytes(addr, []byte("stable"))

	for bid := 1; bid < 30; bid++ {
		e.Allocate(bid, 64)
	}
	for bid := 1; bid < 30; bid += 2 {
		e.Deallocate(bid)
	}

	addr, ok := e.Dereference(0)
	if !ok {
		t.Fatal("bid 0 should still be live")
	}
	if got := string(readBytes(addr, 6)); got != "stable" {
		t.Errorf("bid 0 contents = %q, want %q after unrelated churn", got, "stable")
	}
}

// P8: idempotent reallocate to the same class leaves bytes untouched.
func TestReallocateSameClassIsNoop(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	e.Allocate(2, 64)
	addr, _ := e.Dereference(2)
	writeBytes(addr, []byte("same-class"))

	e.Reallocate(2, 70)

	addr, ok := e.Dereference(2)
	if !ok {
		t.Fatal("bid 2 should still be live")
	}
	if got := string(readBytes(addr, len("same-class"))); got != "same-class" {
		t.Errorf("contents after same-class reallocate = %q, want unchanged", got)
	}
}

// P5: bounded metadata — using_mem after churn stays within a small,
// computable bound instead of growing with the number of operations.
func TestUsingMemBoundedAcrossChurn(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)

	e.Allocate(0, 64)
	e.Deallocate(0)
	steady := e.UsingMem()

	for i := 0; i < 2000; i++ {
		e.Allocate(0, 64)
		e.Deallocate(0)
	}

	if got := e.UsingMem(); got > steady*2+steady {
		t.Errorf("UsingMem() after churn = %d, want bounded near steady-state %d", got, steady)
	}
}

func TestDeallocateUnallocatedPanics(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	defer func() {
		if recover() == nil {
			t.Error("Deallocate of unallocated bid should panic")
		}
	}()
	e.Deallocate(9)
}

func TestLengthOfUnallocatedIsZero(t *testing.T) {
	e := newTestEngine(t, 16, 4096, 64, 262144)
	if got := e.Length(3); got != 0 {
		t.Errorf("Length of unallocated bid = %d, want 0", got)
	}
}
