// Package vmf implements the page-mapped Virtual Multiheap-fit allocator:
// each size class keeps a linked list of fixed-size logical pages, every
// page mapped through a pageframe.Service rather than backed by a single
// growable pseudo heap. Objects are placed top-down within a page so a
// page's free region always sits at its low-offset prefix, and a page is
// unlinked from its size class's list the moment its last object is
// freed, its id going to the engine's page pool (frame kept mapped) or
// its frame going back to the frame service.
//
// As in package mf, no address returned by Dereference survives past the
// next Allocate, Deallocate, or Reallocate call; callers key everything
// off a caller-assigned block id.
//
// Engine does not lock internally; a caller sharing one Engine across
// goroutines must wrap it in its own sync.Mutex.
package vmf

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/directory"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/engineconfig"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/pageframe"
	"github.com/ToshinoriTsuboi/dma-virtual-memory/sizeclass"
)

// minPhysicalPageSize is the compile-time PAGE_SIZE the original sizes
// its page-id metadata field against, independent of the physical page
// size module_set_pagesize actually settles on.
const minPhysicalPageSize = 4096

// pagePoolCapacity bounds the small in-engine pool of just-vacated page
// ids whose physical frame mapping is left intact, matching the
// original's POOL_PAGE_NUM.
const pagePoolCapacity = 8

// Engine is one VMF allocator instance. Mirrors vmf_main_t.
type Engine struct {
	cfg engineconfig.Config

	sizeTable *sizeclass.Table
	scMin     int
	scMax     int

	elemNrMax   int
	blockIDByte int
	pageByte    int
	ofsByte     int

	physicalPageSize int
	frames           pageframe.Service
	frameOf          []uint64

	elemDir *directory.ElemDirectory
	pageDir *directory.PageDirectory

	pageHeads  []uint64
	nextPageID uint64

	// pagePool holds page ids released with their frame mapping intact,
	// capped at pagePoolCapacity and only used when cfg.Heuristics is
	// set. Mirrors page_info_t's pool_stack, kept separate from
	// pageDir's always-released overflow stack.
	pagePool []uint64
}

// Init constructs an Engine sized for blocks between memMin and memMax
// bytes, up to elemNrMax live block ids at once, where totalBudget bounds
// the total bytes the engine may have mapped at once (used to size the
// frame service's virtual reservation and the directory's page-id
// field). frames must be freshly constructed and unconfigured; Init
// calls its Configure exactly once. Mirrors vmf_init, including the
// ENABLE_HEURISTIC warm-up allocate/deallocate of bid 0 and 1.
func Init(cfg engineconfig.Config, memMin, memMax, elemNrMax, totalBudget int, frames pageframe.Service) *Engine {
	if memMin <= 0 || memMin > memMax {
		panic("vmf: require 0 < memMin <= memMax")
	}

	table := buildSizeTable(cfg.Class)
	scMin := table.Size2Class(memMin)
	scMax := table.Size2Class(memMax)

	blockIDByte := bitcodec.RequiredBytes(uint64(elemNrMax + 1))
	pageByte := bitcodec.RequiredBytes(uint64(
		(blockIDByte*elemNrMax + totalBudget + minPhysicalPageSize - 1) / minPhysicalPageSize))
	if blockIDByte > pageByte {
		pageByte = blockIDByte
	}

	maxBlockBytes := table.ClassSize(scMax) + blockIDByte
	physicalPageSize := physicalPageSizeFor(maxBlockBytes)

	mmapSize := bitcodec.AlignUp(totalBudget*4, physicalPageSize)
	maxPages := mmapSize / physicalPageSize

	if err := frames.Configure(maxPages, physicalPageSize); err != nil {
		logrus.WithError(err).Fatal("vmf: configuring page frame service failed")
	}

	ofsByte := bitcodec.RequiredBytes(uint64(physicalPageSize))

	e := &Engine{
		cfg:              cfg,
		sizeTable:        table,
		scMin:            scMin,
		scMax:            scMax,
		elemNrMax:        elemNrMax,
		blockIDByte:      blockIDByte,
		pageByte:         pageByte,
		ofsByte:          ofsByte,
		physicalPageSize: physicalPageSize,
		frames:           frames,
		frameOf:          make([]uint64, maxPages),
		elemDir:          directory.NewElemDirectory(ofsByte, pageByte, elemNrMax),
		pageDir:          directory.NewPageDirectory(pageByte, ofsByte, maxPages),
		pageHeads:        make([]uint64, scMax-scMin+1),
	}

	nullPage := e.pageDir.NullPage()
	for i := range e.pageHeads {
		e.pageHeads[i] = nullPage
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

// physicalPageSizeFor doubles up from minPhysicalPageSize until the
// result comfortably exceeds maxSize. Mirrors module_set_pagesize's
// doubling loop.
func physicalPageSizeFor(maxSize int) int {
	pageSize := minPhysicalPageSize
	size := maxSize / minPhysicalPageSize
	for size > 0 {
		size /= 2
		pageSize *= 2
	}
	return pageSize
}

// Allocate places a new block of length bytes under bid, which must not
// already be live. Mirrors vmf_allocate.
func (e *Engine) Allocate(bid int, length int) {
	sc := e.sizeTable.Size2Class(length)
	realSize := uint64(e.sizeTable.ClassSize(sc) + e.blockIDByte)
	headIdx := sc - e.scMin
	pageID := e.pageHeads[headIdx]

	var pageOffset uint64
	if pageID == e.pageDir.NullPage() {
		pageOffset = uint64(e.physicalPageSize) - realSize
		pageID = e.insertPage(sc, pageID, pageOffset)
	} else {
		ofs := e.pageDir.Offset(int(pageID))
		if ofs >= realSize {
			pageOffset = ofs - realSize
			e.pageDir.PutOffset(int(pageID), pageOffset)
		} else {
			pageOffset = ofs + uint64(e.physicalPageSize) - realSize
			pageID = e.insertPage(sc, pageID, pageOffset)
		}
	}

	e.elemDir.PutAll(bid, pageOffset, pageID)
	e.writeBlockHeader(pageID, pageOffset, bid)
}

// Deallocate frees bid, which must currently be live. Mirrors
// vmf_deallocate: the class's head page's front object is moved onto
// bid's slot (unless bid already held it), and the head page is
// recycled once its last object is gone.
func (e *Engine) Deallocate(bid int) {
	if e.elemDir.IsNull(bid) {
		panic(fmt.Sprintf("vmf: Deallocate of unallocated bid %d", bid))
	}
	blockOfs := e.elemDir.Offset(bid)
	pageID := e.elemDir.Page(bid)

	if got := e.readBlockHeader(pageID, blockOfs); got != bid {
		panic(fmt.Sprintf("vmf: directory corruption: bid %d at page %d offset %d reads back as %d",
			bid, pageID, blockOfs, got))
	}

	dstAddr := e.dataAddress(pageID, blockOfs)
	blockSC := int(e.pageDir.SizeClass(int(pageID)))
	headIdx := blockSC - e.scMin
	headPageID := e.pageHeads[headIdx]
	headPageOfs := e.pageDir.Offset(int(headPageID))
	headAddr := e.dataAddress(headPageID, headPageOfs)

	realLength := uint64(e.sizeTable.ClassSize(blockSC) + e.blockIDByte)

	if dstAddr != headAddr {
		headBID := e.readBlockHeaderAt(headAddr)

		copyLen := e.blockIDByte
		if e.cfg.Copy == engineconfig.FullSlot {
			copyLen = int(realLength)
		}
		e.copyBytes(dstAddr, headAddr, copyLen)

		e.elemDir.PutAll(headBID, blockOfs, pageID)
	}

	e.elemDir.PutNullPage(bid)

	if headPageOfs+realLength >= uint64(e.physicalPageSize) {
		e.removePage(headPageID, headIdx)
	} else {
		e.pageDir.PutOffset(int(headPageID), headPageOfs+realLength)
	}
}

// Reallocate moves bid to a block sized for newLength bytes, preserving
// as many leading bytes of its contents as fit in both the old and new
// size class. A zero newLength deallocates bid; an unallocated bid is
// allocated fresh. Mirrors vmf_reallocate.
func (e *Engine) Reallocate(bid int, newLength int) {
	if newLength == 0 {
		e.Deallocate(bid)
		return
	}
	if e.elemDir.IsNull(bid) {
		e.Allocate(bid, newLength)
		return
	}

	newSize := e.sizeTable.ClassSize(e.sizeTable.Size2Class(newLength))
	pageID := e.elemDir.Page(bid)
	oldSC := int(e.pageDir.SizeClass(int(pageID)))
	oldSize := e.sizeTable.ClassSize(oldSC)
	if newSize == oldSize {
		return
	}

	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}

	buf := make([]byte, copySize)
	src, _ := e.Dereference(bid)
	copy(buf, unsafe.Slice((*byte)(src), copySize))

	e.Deallocate(bid)
	e.Allocate(bid, newLength)

	dst, _ := e.Dereference(bid)
	copy(unsafe.Slice((*byte)(dst), copySize), buf)
}

// Dereference returns the current address of bid's payload (past its
// block-id header) and true, or (nil, false) if bid is not currently
// allocated. The address is valid only until the next Allocate,
// Deallocate, or Reallocate call on this Engine. Mirrors
// vmf_dereference.
func (e *Engine) Dereference(bid int) (unsafe.Pointer, bool) {
	if e.elemDir.IsNull(bid) {
		return nil, false
	}
	ofs := e.elemDir.Offset(bid)
	pageID := e.elemDir.Page(bid)
	addr := e.dataAddress(pageID, ofs) + uintptr(e.blockIDByte)
	return unsafe.Pointer(addr), true
}

// Length reports bid's current size-class capacity in bytes, or 0 if
// bid is not currently allocated. Mirrors vmf_length.
func (e *Engine) Length(bid int) int {
	if e.elemDir.IsNull(bid) {
		return 0
	}
	pageID := e.elemDir.Page(bid)
	sc := int(e.pageDir.SizeClass(int(pageID)))
	return e.sizeTable.ClassSize(sc)
}

// UsingMem reports the engine's total live footprint in bytes: the
// mapped page frames, both directories, and the head-page index.
// Mirrors vmf_using_mem.
func (e *Engine) UsingMem() int {
	total := e.elemDir.UsingMem() + e.pageDir.UsingMem() + e.frames.UsageBytes()
	total += len(e.pageHeads) * e.pageByte
	return total
}

// Close releases every page frame still mapped and the frame service
// itself. Mirrors vmf_final.
func (e *Engine) Close() {
	e.frames.Close()
}

// insertPage splices a freshly assigned page id to the head of sc's
// list, ahead of oldHeadID (the class's current head, or pageDir's null
// page if the list was empty), with its free offset starting at
// pageOffset. Mirrors insert_page.
func (e *Engine) insertPage(sc int, oldHeadID, pageOffset uint64) uint64 {
	newHeadID, mapped := e.popPageID()
	if !mapped {
		e.moduleAllocate(newHeadID)
	}

	e.pageDir.PutAll(int(newHeadID), e.pageDir.NullPage(), oldHeadID, pageOffset, uint64(sc))
	e.pageHeads[sc-e.scMin] = newHeadID

	if oldHeadID != e.pageDir.NullPage() {
		e.moduleSetNext(newHeadID, oldHeadID)
		e.pageDir.PutPrev(int(oldHeadID), newHeadID)
	}

	return newHeadID
}

// removePage unlinks pageID from its class's list (whose head index is
// headIdx) and either returns it to the page pool with its frame
// mapping intact or releases the frame outright. Mirrors remove_page.
func (e *Engine) removePage(pageID uint64, headIdx int) {
	nullPage := e.pageDir.NullPage()
	nextID := e.pageDir.Next(int(pageID))

	if nextID != nullPage {
		e.pageDir.PutPrev(int(nextID), nullPage)
	}
	e.pageHeads[headIdx] = nextID
	if nextID != nullPage {
		e.moduleResetNext(pageID)
	}

	if !e.pushPageID(pageID) {
		e.moduleDeallocate(pageID)
	}
}

// popPageID returns a page id to back a newly inserted page, and
// whether its frame mapping is already live (the retained pool) or
// needs a fresh moduleAllocate (the released overflow stack, or a page
// id never used before). Mirrors page_info_pop_freeid's three tiers.
func (e *Engine) popPageID() (id uint64, mapped bool) {
	if len(e.pagePool) > 0 {
		id = e.pagePool[len(e.pagePool)-1]
		e.pagePool = e.pagePool[:len(e.pagePool)-1]
		return id, true
	}
	if id, ok := e.pageDir.PopFreeID(); ok {
		return id, false
	}
	id = e.nextPageID
	e.nextPageID++
	return id, false
}

// pushPageID returns id to either the retained-mapping pool (true) or
// pageDir's released overflow stack (false). Mirrors
// page_info_push_freeid.
func (e *Engine) pushPageID(id uint64) bool {
	if e.cfg.Heuristics != nil && len(e.pagePool) < pagePoolCapacity {
		e.pagePool = append(e.pagePool, id)
		return true
	}
	e.pageDir.PushFreeID(id)
	return false
}

// moduleAllocate reserves a physical frame for pageID and maps it into
// pageID's main slot. Mirrors module_allocate.
func (e *Engine) moduleAllocate(pageID uint64) {
	frame, err := e.frames.Alloc()
	if err != nil {
		logrus.WithError(err).Fatal("vmf: out of physical page frames")
	}
	e.frameOf[pageID] = frame
	e.frames.Map(pageframe.MainSlot(pageID), frame)
}

// moduleDeallocate unmaps pageID's main slot and releases its frame.
// Mirrors module_deallocate.
func (e *Engine) moduleDeallocate(pageID uint64) {
	e.frames.Unmap(pageframe.MainSlot(pageID))
	e.frames.Free(e.frameOf[pageID])
}

// moduleSetNext maps mainPage's sub slot onto nextPage's already-mapped
// frame, so nextPage's data is reachable from mainPage's sub slot before
// the list pointer splice completes. Mirrors module_set_next.
func (e *Engine) moduleSetNext(mainPage, nextPage uint64) {
	e.frames.Map(pageframe.SubSlot(mainPage), e.frameOf[nextPage])
}

// moduleResetNext unmaps mainPage's sub slot. Mirrors module_reset_next.
func (e *Engine) moduleResetNext(mainPage uint64) {
	e.frames.Unmap(pageframe.SubSlot(mainPage))
}

func (e *Engine) dataAddress(pageID, ofs uint64) uintptr {
	return e.frames.Address(pageframe.MainSlot(pageID)) + uintptr(ofs)
}

func (e *Engine) writeBlockHeader(pageID, ofs uint64, bid int) {
	codec := bitcodec.New(e.blockIDByte)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(e.dataAddress(pageID, ofs))), e.blockIDByte)
	codec.WriteUint(buf, uint64(bid))
}

func (e *Engine) readBlockHeader(pageID, ofs uint64) int {
	return e.readBlockHeaderAt(e.dataAddress(pageID, ofs))
}

func (e *Engine) readBlockHeaderAt(addr uintptr) int {
	codec := bitcodec.New(e.blockIDByte)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), e.blockIDByte)
	return int(codec.ReadUint(buf))
}

func (e *Engine) copyBytes(dst, src uintptr, n int) {
	if n == 0 {
		return
	}
	dstBuf := unsafe.Slice((*byte)(unsafe.Pointer(dst)), n)
	srcBuf := unsafe.Slice((*byte)(unsafe.Pointer(src)), n)
	copy(dstBuf, srcBuf)
}
