// Package engineconfig collects the knobs that used to be compile-time
// #ifdef switches in the original allocator (COPYLESS, EXACT_SIZE_CLASS,
// FIXED_LENGTH_INTEGER, ENABLE_HEURISTIC, MEMORY_TEST) into one runtime
// value both mf.Engine and vmf.Engine take at construction.
package engineconfig

import "github.com/ToshinoriTsuboi/dma-virtual-memory/heapspace"

// CopyMode selects how much of a relocated block Deallocate copies into
// the slot it vacates when it moves another block there to keep a class
// packed.
type CopyMode int

const (
	// FullSlot copies the moved block's entire slot, block-id header and
	// payload, the original's default (COPYLESS=0).
	FullSlot CopyMode = iota
	// HeaderOnly copies only the moved block's block-id header; its
	// payload bytes are not carried over to the new slot (COPYLESS=1).
	HeaderOnly
)

// ClassMode selects how size classes are derived; see package sizeclass.
type ClassMode struct {
	Exact bool
	Align int // used when Exact is true

	K                 float64 // used when Exact is false
	Max               int
	BinarySearchIters int
}

// ExactClasses returns a ClassMode covering exact multiples of align.
func ExactClasses(align int) ClassMode {
	return ClassMode{Exact: true, Align: align}
}

// GeometricClasses returns a ClassMode with the package's default
// geometric growth constant, table size, and binary search depth.
func GeometricClasses() ClassMode {
	return ClassMode{
		K:                 0.1232,
		Max:               128,
		BinarySearchIters: 7,
	}
}

// MetadataMode selects fixed vs. packed-width directory records.
// Packed is the only mode this module implements; Fixed32 is recorded
// here only because the original's FIXED_LENGTH_INTEGER switch is part
// of the domain vocabulary SPEC_FULL.md carries forward, not because a
// second encoding exists to select between.
type MetadataMode int

const (
	Packed MetadataMode = iota
	Fixed32
)

// Heuristics holds the pool/garbage-list tuning knobs; nil disables the
// whole heuristic layer (ENABLE_HEURISTIC=0), falling back to an
// unmap-on-shrink policy with no warm-page retention.
type Heuristics struct {
	PoolThreshold int
	GarbageMax    int
	ExtraRateNum  int
	ExtraRateDen  int
}

// DefaultHeuristics returns the original's default tuning: a 16-page
// pool, a 6-page garbage cap, and a 9/8 shrink overallocation.
func DefaultHeuristics() *Heuristics {
	return &Heuristics{
		PoolThreshold: heapspace.DefaultPoolThreshold,
		GarbageMax:    heapspace.DefaultGarbageMax,
		ExtraRateNum:  heapspace.DefaultExtraRateNum,
		ExtraRateDen:  heapspace.DefaultExtraRateDen,
	}
}

// Config is the full set of tunables an MF or VMF engine is constructed
// with, replacing the original's compile-time #ifndef switches.
type Config struct {
	Copy        CopyMode
	Class       ClassMode
	Metadata    MetadataMode
	Heuristics  *Heuristics
	SelfAccount bool
}

// Default returns the original allocator's out-of-the-box configuration:
// full-slot copy, geometric size classes, packed metadata, heuristics
// on, self-accounting off.
func Default() Config {
	return Config{
		Copy:       FullSlot,
		Class:      GeometricClasses(),
		Metadata:   Packed,
		Heuristics: DefaultHeuristics(),
	}
}
