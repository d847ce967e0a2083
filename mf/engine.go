// Package mf implements the heap-backed Multiheap-fit allocator: one
// growable/shrinkable pseudo heap per size class, packed so each class's
// live blocks always occupy a dense prefix of its heap. A block's
// address is never stable across calls — callers key everything off a
// caller-assigned block id (bid) and call Dereference to get a current
// address.
//
// Engine does not lock internally; a caller sharing one Engine across
// goroutines must wrap it in its own sync.Mutex.
package mf

import (
	"fmt"
	"unsafe"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/blockmanager"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/directory"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/engineconfig"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/heapspace"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/sizeclass"
)

// Engine is one MF allocator instance. Mirrors mf_main_t.
type Engine struct {
	cfg engineconfig.Config

	sizeTable *sizeclass.Table
	scMin     int
	scMax     int

	elemNrMax int
	idByte    int

	managers []*blockmanager.Manager
	dir      *directory.BlockDirectory

	reserver *heapspace.Reserver
	pool     *heapspace.Pool
	garbage  *heapspace.GarbageList
}

// Init constructs an Engine sized for blocks between memMin and memMax
// bytes, up to elemNrMax live block ids at once, where maxByte bounds
// the largest offset any one size class's heap will ever reach (used to
// size the directory's offset field). Mirrors mf_init, including the
// ENABLE_HEURISTIC warm-up allocate/deallocate of bid 0 and 1.
func Init(cfg engineconfig.Config, memMin, memMax, elemNrMax, maxByte int) *Engine {
	if memMin <= 0 || memMin > memMax {
		panic("mf: require 0 < memMin <= memMax")
	}

	table := buildSizeTable(cfg.Class)
	scMin := table.Size2Class(memMin)
	scMax := table.Size2Class(memMax)
	blockManagerNr := scMax - scMin + 1

	idByte := bitcodec.RequiredBytes(uint64(elemNrMax))
	ofsByte := bitcodec.RequiredBytes(uint64(maxByte + idByte*elemNrMax))
	scByte := bitcodec.RequiredBytes(uint64(blockManagerNr + 1))

	e := &Engine{
		cfg:       cfg,
		sizeTable: table,
		scMin:     scMin,
		scMax:     scMax,
		elemNrMax: elemNrMax,
		idByte:    idByte,
		dir:       directory.NewBlockDirectory(scByte, ofsByte, elemNrMax),
		reserver:  heapspace.NewReserver(blockManagerNr),
	}

	if cfg.Heuristics != nil {
		e.pool = heapspace.NewPool(cfg.Heuristics.PoolThreshold)
		e.garbage = heapspace.NewGarbageList(cfg.Heuristics.GarbageMax)
	}

	e.managers = make([]*blockmanager.Manager, blockManagerNr)
	for sc := scMin; sc <= scMax; sc++ {
		heap := heapspace.NewPseudoHeap(e.reserver, e.pool, e.garbage,
			cfg.Heuristics != nil, e.extraRateNum(), e.extraRateDen())
		objSize := table.ClassSize(sc) + idByte
		e.managers[sc-scMin] = blockmanager.New(heap, objSize)
	}

	if cfg.Heuristics != nil && elemNrMax > 1 {
		spellSize := table.ClassSize(scMax)
		e.Allocate(0, spellSize)
		e.Allocate(1, spellSize)
		e.Deallocate(0)
		e.Deallocate(1)
	}

	return e
}

func buildSizeTable(mode engineconfig.ClassMode) *sizeclass.Table {
	if mode.Exact {
		return sizeclass.NewExact(mode.Align)
	}
	return sizeclass.NewGeometric(mode.K, mode.Max, 1, mode.BinarySearchIters)
}

func (e *Engine) extraRateNum() int {
	if e.cfg.Heuristics == nil {
		return 1
	}
	return e.cfg.Heuristics.ExtraRateNum
}

func (e *Engine) extraRateDen() int {
	if e.cfg.Heuristics == nil {
		return 1
	}
	return e.cfg.Heuristics.ExtraRateDen
}

func (e *Engine) managerForClass(sc int) *blockmanager.Manager {
	return e.managers[sc-e.scMin]
}

// Allocate places a new block of length bytes under bid, which must not
// already be live. length must lie within the [memMin, memMax] range
// given to Init; it is neither clamped nor checked, and a length outside
// that range generally selects a size class with no manager and panics
// with an index out of range. Mirrors mf_allocate.
func (e *Engine) Allocate(bid int, length int) {
	sc := e.sizeTable.Size2Class(length)
	manager := e.managerForClass(sc)
	ofs := manager.Append()
	writeBlockID(manager, ofs, e.idByte, bid)
	e.dir.PutSizeClassAndOffset(bid, uint64(sc-e.scMin+1), uint64(ofs))
}

// Deallocate frees bid, which must currently be live. Mirrors
// mf_deallocate, including the tail-relocation that keeps each class's
// live blocks packed at indices [0, n).
func (e *Engine) Deallocate(bid int) {
	sc := int(e.dir.SizeClass(bid))
	if sc == 0 {
		panic(fmt.Sprintf("mf: Deallocate of unallocated bid %d", bid))
	}
	manager := e.managers[sc-1]
	ofs := int(e.dir.Offset(bid))

	if got := readBlockID(manager, ofs, e.idByte); got != bid {
		panic(fmt.Sprintf("mf: directory corruption: bid %d at offset %d reads back as %d", bid, ofs, got))
	}

	e.dir.PutSizeClass(bid, 0)

	objNum := manager.ObjNum()
	if ofs != objNum-1 {
		movedID := readBlockID(manager, objNum-1, e.idByte)
		e.dir.PutOffset(movedID, uint64(ofs))
		copyLen := e.idByte
		if e.cfg.Copy == engineconfig.FullSlot {
			copyLen = manager.ObjSize()
		}
		copyBytes(manager.Addr(ofs), manager.Addr(objNum-1), copyLen)
	}

	manager.Remove()
}

// Reallocate moves bid to a block sized for newLength bytes, preserving
// as many leading bytes of its contents as fit in both the old and new
// size class. A no-op if newLength maps to the same size class bid is
// already in. Mirrors mf_reallocate.
func (e *Engine) Reallocate(bid int, newLength int) {
	oldSC := int(e.dir.SizeClass(bid))
	if oldSC == 0 {
		panic(fmt.Sprintf("mf: Reallocate of unallocated bid %d", bid))
	}
	newSC := e.sizeTable.Size2Class(newLength) - e.scMin + 1
	if newSC == oldSC {
		return
	}

	oldManager := e.managers[oldSC-1]
	newManager := e.managers[newSC-1]
	oldOfs := int(e.dir.Offset(bid))
	newOfs := newManager.Append()

	copyLen := oldManager.ObjSize()
	if newManager.ObjSize() < copyLen {
		copyLen = newManager.ObjSize()
	}
	copyBytes(newManager.Addr(newOfs), oldManager.Addr(oldOfs), copyLen)

	e.Deallocate(bid)

	e.dir.PutSizeClass(bid, uint64(newSC))
	e.dir.PutOffset(bid, uint64(newOfs))
}

// Dereference returns the current address of bid's payload (past its
// block-id header) and true, or (nil, false) if bid is not currently
// allocated. The address is valid only until the next Allocate,
// Deallocate, or Reallocate call on this Engine. Mirrors mf_dereference,
// rendered as Go's idiomatic (value, ok) instead of a null pointer.
func (e *Engine) Dereference(bid int) (unsafe.Pointer, bool) {
	sc := int(e.dir.SizeClass(bid))
	if sc == 0 {
		return nil, false
	}
	ofs := int(e.dir.Offset(bid))
	manager := e.managers[sc-1]
	return unsafe.Pointer(manager.Addr(ofs) + uintptr(e.idByte)), true
}

// Length reports bid's current size-class capacity in bytes, or 0 if
// bid is not currently allocated. Mirrors mf_length.
func (e *Engine) Length(bid int) int {
	sc := int(e.dir.SizeClass(bid))
	if sc == 0 {
		return 0
	}
	return e.sizeTable.ClassSize(sc - 1 + e.scMin)
}

// UsingMem reports the engine's total live footprint in bytes: every
// size class's mapped pages, the directory, and (when heuristics are
// enabled) the pool and garbage list. Mirrors mf_using_mem.
func (e *Engine) UsingMem() int {
	total := 0
	for _, m := range e.managers {
		total += m.UsingMem()
	}
	total += e.dir.UsingMem()
	if e.cfg.Heuristics != nil {
		total += e.pool.TotalPages() * e.reserver.PageSize()
		total += e.garbage.TotalPages() * e.reserver.PageSize()
	}
	return total
}

// Close releases every size class's pseudo heap. Mirrors mf_final.
func (e *Engine) Close() {
	for _, m := range e.managers {
		m.Close()
	}
}

func writeBlockID(m *blockmanager.Manager, ofs, idByte, bid int) {
	codec := bitcodec.New(idByte)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(m.Addr(ofs))), idByte)
	codec.WriteUint(buf, uint64(bid))
}

func readBlockID(m *blockmanager.Manager, ofs, idByte int) int {
	codec := bitcodec.New(idByte)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(m.Addr(ofs))), idByte)
	return int(codec.ReadUint(buf))
}

func copyBytes(dst, src uintptr, n int) {
	if n == 0 {
		return
	}
	dstBuf := unsafe.Slice((*byte)(unsafe.Pointer(dst)), n)
	srcBuf := unsafe.Slice((*byte)(unsafe.Pointer(src)), n)
	copy(dstBuf, srcBuf)
}
