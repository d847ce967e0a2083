// Package blockmanager packs fixed-size objects of a single size class
// into a single pseudo heap: appending always grows the heap by exactly
// one object's worth and removing always shrinks it by one, so objects
// stay packed at indices [0, N) with no internal fragmentation.
package blockmanager

import "github.com/ToshinoriTsuboi/dma-virtual-memory/heapspace"

// Manager owns one heapspace.PseudoHeap and hands out byte offsets for a
// fixed object size within it. Mirrors block_manager_t.
type Manager struct {
	heap    *heapspace.PseudoHeap
	objSize int
	objNum  int
}

// New returns a Manager with no objects yet, packing objects of objSize
// bytes into heap.
func New(heap *heapspace.PseudoHeap, objSize int) *Manager {
	return &Manager{heap: heap, objSize: objSize}
}

// ObjNum reports the number of objects currently packed.
func (m *Manager) ObjNum() int { return m.objNum }

// ObjSize reports the fixed size, in bytes, of each packed object.
func (m *Manager) ObjSize() int { return m.objSize }

// Addr returns the base address of the object at index, which must be
// less than ObjNum. Mirrors block_manager_addr.
func (m *Manager) Addr(index int) uintptr {
	if index >= m.objNum {
		panic("blockmanager: index out of range")
	}
	return m.heap.Address() + uintptr(index*m.objSize)
}

// LastAddr returns the base address of the last object. Panics if the
// manager is empty. Mirrors block_manager_last_addr.
func (m *Manager) LastAddr() uintptr {
	if m.objNum == 0 {
		panic("blockmanager: LastAddr on empty manager")
	}
	return m.Addr(m.objNum - 1)
}

// Append grows the heap by exactly one object and returns the index of
// the newly appended (uninitialized) object. Mirrors block_manager_append.
func (m *Manager) Append() int {
	index := m.objNum
	m.objNum++
	m.heap.Bulge(m.objNum * m.objSize)
	return index
}

// Remove shrinks the heap by exactly one object, dropping the last
// index. Mirrors block_manager_remove. Callers needing tail relocation
// must copy the last object's contents out before calling Remove.
func (m *Manager) Remove() {
	m.objNum--
	m.heap.Shrink(m.objNum * m.objSize)
}

// UsingMem reports the bytes of real memory the manager's heap currently
// holds. Mirrors block_manager_using_mem (sizeof(block_manager_t) itself
// is not modeled since Go does not expose struct footprint that way).
func (m *Manager) UsingMem() int { return m.heap.UsingMem() }

// Close releases the manager's pseudo heap. Mirrors block_manager_final.
func (m *Manager) Close() { m.heap.Close() }
