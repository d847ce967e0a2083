// Package pageframe defines the capability a VMF engine needs from
// whatever owns physical page frames: allocate one, free one, and map or
// unmap it into one of the engine's reserved virtual page slots.
//
// The original allocator talks to a privileged kernel module over
// ioctl(2); this module ships only an in-process implementation
// (pageframe/localsrv) since a Go library has no business linking
// against a kernel module. Request/Reply mirror the kernel module's
// wire format so a future out-of-process backend could still speak it.
package pageframe

// Service allocates and maps physical page frames into a reserved
// virtual address range. Mirrors module_t's operations.
type Service interface {
	// Configure reserves virtual address space and frame bookkeeping for
	// up to maxPages logical pages of pageSize bytes each. Must be
	// called exactly once before any other method, and returns an error
	// if frames are already live (mirrors §7's configuration-error path).
	Configure(maxPages, pageSize int) error

	// Alloc reserves one physical frame and returns its id.
	Alloc() (frame uint64, err error)

	// Free releases a physical frame previously returned by Alloc. The
	// frame must not currently be mapped into any slot.
	Free(frame uint64)

	// Map binds virtual slot to physical frame, making slot's address
	// readable and writable. Mirrors my_mmap.
	Map(slot uint64, frame uint64)

	// Unmap releases whatever frame is currently bound to slot, without
	// freeing the frame itself. Mirrors my_munmap.
	Unmap(slot uint64)

	// Address returns the virtual address backing slot.
	Address(slot uint64) uintptr

	// UsageBytes reports the bytes of physical memory currently
	// allocated via Alloc. Mirrors module_get_size.
	UsageBytes() int

	// Close releases every resource Configure acquired.
	Close()
}

// MainSlot returns the virtual slot holding page id's own data. Mirrors
// main_index: pid's data lives at slot 2*pid so each logical page has a
// paired "next" slot immediately after it.
func MainSlot(pageID uint64) uint64 { return 2 * pageID }

// SubSlot returns the virtual slot used to prefetch-map the page that
// will become pageID's successor in its size class's list, so copying
// into the new head can start before the list pointer is spliced in.
// Mirrors sub_index.
func SubSlot(pageID uint64) uint64 { return 2*pageID + 1 }

// Request codes mirror the kernel module's ioctl.h so an out-of-process
// backend can be added later without inventing a new wire format.
type RequestCode uint8

const (
	ReqAlloc RequestCode = iota
	ReqDealloc
	ReqResize
	ReqTotalSize
	ReqSetPageSizeOrder
)

// Request is the fixed-width wire form of one Service call, for a future
// out-of-process backend. Arg carries the ioctl's single unsigned-long
// argument (a page id, a page count, or a page-size order depending on
// Code).
type Request struct {
	Code RequestCode
	Arg  uint64
}

// Reply carries the single unsigned-long result value an ioctl call
// writes back (a frame id, a byte count, or zero for calls with no
// result).
type Reply struct {
	Value uint64
	Err   string
}
