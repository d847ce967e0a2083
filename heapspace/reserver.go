// Package heapspace reserves a large span of virtual address space up
// front and doles it out, page by page, to one pseudo-heap per size
// class. Pages given up by a shrinking pseudo-heap are not unmapped
// immediately: a bounded pool and garbage list keep a few pages warm so a
// neighboring size class can reuse them without a fresh mmap round trip.
package heapspace

import (
	"golang.org/x/sys/unix"
)

// Reserver probes the largest contiguous anonymous region the OS will
// grant, then slices it into equal power-of-two slots, one per pseudo
// heap. This mirrors pheap_first_reserve: double the mmap request until
// it fails, back off one step, and partition that region evenly.
type Reserver struct {
	pageSize     int
	pageShift    uint
	reservedSize int
	slotSize     int
	base         uintptr
	slots        []uintptr
	freeSlots    []int
}

// NewReserver reserves virtual space for at least maxSlots pseudo heaps.
// maxSlots is rounded up to the next power of two, matching the original's
// "align up max_nr to a power of 2".
func NewReserver(maxSlots int) *Reserver {
	if maxSlots <= 0 {
		panic("heapspace: maxSlots must be positive")
	}
	pageSize := unix.Getpagesize()

	nrSlots := 1
	for nrSlots < maxSlots {
		nrSlots <<= 1
	}

	mmapSize := pageSize << 1
	for {
		addr, err := unix.Mmap(-1, 0, mmapSize, unix.PROT_NONE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|mapNoreserve)
		if err != nil {
			break
		}
		unix.Munmap(addr)
		mmapSize <<= 1
	}
	mmapSize >>= 1

	region, err := unix.Mmap(-1, 0, mmapSize, unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|mapNoreserve)
	if err != nil {
		fatalMmap("reserve", mmapSize, err)
	}

	slotSize := mmapSize / nrSlots
	base := uintptrOf(region)

	r := &Reserver{
		pageSize:     pageSize,
		pageShift:    shiftOf(pageSize),
		reservedSize: mmapSize,
		slotSize:     slotSize,
		base:         base,
		slots:        make([]uintptr, nrSlots),
		freeSlots:    make([]int, nrSlots),
	}
	for i := 0; i < nrSlots; i++ {
		r.slots[i] = base + uintptr(i)*uintptr(slotSize)
		r.freeSlots[i] = nrSlots - 1 - i
	}
	return r
}

// PageSize is the OS page size this reserver aligns all mappings to.
func (r *Reserver) PageSize() int { return r.pageSize }

// SlotSize is the number of bytes each pseudo heap's slot covers.
func (r *Reserver) SlotSize() int { return r.slotSize }

// AcquireSlot hands out one unused slot's base address, for a pseudo heap
// growing from empty. Panics if every slot is already in use; a correctly
// sized engine never exhausts slots since it reserves one per size class.
func (r *Reserver) AcquireSlot() uintptr {
	if len(r.freeSlots) == 0 {
		panic("heapspace: no free virtual address slots remain")
	}
	idx := r.freeSlots[len(r.freeSlots)-1]
	r.freeSlots = r.freeSlots[:len(r.freeSlots)-1]
	return r.slots[idx]
}

// ReleaseSlot returns addr's slot to the free list, matching
// pheap_shrink/pool_push's `g_virt_space.addrs[g_virt_space.addr_nr++] =
// addr`. addr must be a value previously returned by AcquireSlot or drawn
// from the pool, never a mid-slot offset.
func (r *Reserver) ReleaseSlot(addr uintptr) {
	idx := int((addr - r.base) / uintptr(r.slotSize))
	r.freeSlots = append(r.freeSlots, idx)
}

func shiftOf(pageSize int) uint {
	shift := uint(0)
	for (1 << shift) < pageSize {
		shift++
	}
	return shift
}
