package localsrv

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func uintptrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func munmapAt(addr uintptr, size int) {
	unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(size), 0)
}
