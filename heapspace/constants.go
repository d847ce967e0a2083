package heapspace

// Default heuristic tuning constants, carried over from the allocator
// this package was modeled on: a pool capped at 16 total pages, a
// garbage list capped at 6, and a 9/8 over-allocation on shrink so a
// heap that oscillates near a boundary does not thrash mmap/munmap.
const (
	DefaultPoolThreshold = 16
	DefaultGarbageMax    = 6
	DefaultExtraRateNum  = 9
	DefaultExtraRateDen  = 8
)
