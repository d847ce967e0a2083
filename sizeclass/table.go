// Package sizeclass maps a requested allocation size to a size-class index
// and back, in one of two modes: exact (size classes are multiples of an
// alignment) or geometric (size classes grow by a fixed ratio, capped at a
// maximum table length and located by a fixed-iteration binary search).
package sizeclass

import "math"

// Default constants, carried over from the allocator this package was
// modeled on: a geometric growth rate of 12.32% per class, a table capped
// at 128 entries, and a 7-round binary search (2^7 = 128 >= table length).
const (
	DefaultGeometricConst   = 0.1232
	DefaultMax              = 128
	DefaultBinarySearchIter = 7
)

// Mode selects how size classes are derived.
type Mode int

const (
	// Exact sets S_i = i * Align, so class 0 has size 0 and a request of n
	// bytes maps to class ceil(n / Align).
	Exact Mode = iota
	// Geometric sets S_0 = 8, S_i = ceil(S_{i-1} * (1+K)) aligned up.
	Geometric
)

// Table is a monotone sequence of size classes S_0 < S_1 < ... and the
// operations to convert between a byte size and a class index.
type Table struct {
	mode  Mode
	align int

	// Geometric mode only.
	k          float64
	classes    []int
	searchIter int
}

// NewExact builds a table in exact mode: size class i covers exactly
// i*align bytes. align must be a power of two.
func NewExact(align int) *Table {
	if align <= 0 {
		panic("sizeclass: align must be positive")
	}
	return &Table{mode: Exact, align: align}
}

// NewGeometric builds a table in geometric mode with growth constant k,
// at most max entries, aligned up to align, located by a fixed-iteration
// binary search (searchIter rounds; it must satisfy 2^searchIter >= max).
func NewGeometric(k float64, max, align, searchIter int) *Table {
	if align <= 0 {
		panic("sizeclass: align must be positive")
	}
	if max <= 0 {
		panic("sizeclass: max must be positive")
	}
	t := &Table{mode: Geometric, align: align, k: k, searchIter: searchIter}
	classes := make([]int, max)
	curr := 8.0
	for i := range classes {
		classes[i] = int(curr)
		curr *= 1.0 + k
		curr = float64(alignUp(int(math.Ceil(curr)), align))
	}
	t.classes = classes
	return t
}

func alignUp(size, align int) int {
	return (size + align - 1) &^ (align - 1)
}

// Size2Class returns the least size class index sc such that
// ClassSize(sc) >= size.
func (t *Table) Size2Class(size int) int {
	if t.mode == Exact {
		return (size + t.align - 1) / t.align
	}

	// Binary search in (left, right], fixed iteration count so it is
	// unroll-friendly regardless of the true table length.
	left, right := -1, len(t.classes)-1
	for i := 0; i < t.searchIter; i++ {
		middle := (left + right) / 2
		if size <= t.classes[middle] {
			right = middle
		} else {
			left = middle
		}
	}
	return right
}

// ClassSize returns the number of bytes size class sc covers.
func (t *Table) ClassSize(sc int) int {
	if t.mode == Exact {
		return sc * t.align
	}
	return t.classes[sc]
}

// Len reports the number of distinct size classes the table can return
// from Size2Class for sizes up to its largest covered value (geometric mode
// only; exact mode is unbounded).
func (t *Table) Len() int {
	if t.mode == Exact {
		return -1
	}
	return len(t.classes)
}

// Mode reports which mode the table was built in.
func (t *Table) Mode() Mode { return t.mode }
