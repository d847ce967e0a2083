package heapspace

import (
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// mapNoreserve mirrors the original's MAP_NORESERVE | MAP_ANONYMOUS |
// MAP_PRIVATE reservation flags for address space that is not yet backed
// by real pages.
const mapNoreserve = unix.MAP_NORESERVE

// fatalMmap reports an unrecoverable mmap/munmap failure the way
// safe_anon_mmap/safe_zero_mmap do in the original: log and terminate,
// since there is no sane way to continue once virtual memory itself is
// exhausted.
func fatalMmap(op string, size int, err error) {
	logrus.WithFields(logrus.Fields{
		"op":   op,
		"size": size,
	}).WithError(err).Fatal("heapspace: memory mapping failed")
}

// uintptrOf returns the address of the first byte of an mmap'd region.
func uintptrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
