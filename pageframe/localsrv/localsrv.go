// Package localsrv is the in-process page frame service this module
// ships by default: physical frames live in one memfd-backed shared
// region, and mapping a virtual slot to a frame is a MAP_SHARED mmap of
// that fd at the frame's offset — the same trick the kernel module's
// own my_mmap/my_munmap play against its driver fd, just without a
// driver.
package localsrv

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ToshinoriTsuboi/dma-virtual-memory/pageframe"
)

// Service is the concrete, in-process pageframe.Service.
type Service struct {
	fd       int
	pageSize int
	maxPages int

	addrMin uintptr

	freeFrames []uint64
	nextFrame  uint64
	usedFrames int
}

var _ pageframe.Service = (*Service)(nil)

// New returns an unconfigured Service; call Configure before use.
func New() *Service { return &Service{fd: -1} }

// Configure implements pageframe.Service.
func (s *Service) Configure(maxPages, pageSize int) error {
	if s.fd >= 0 {
		return fmt.Errorf("localsrv: already configured")
	}
	if maxPages <= 0 || pageSize <= 0 {
		return fmt.Errorf("localsrv: maxPages and pageSize must be positive")
	}

	fd, err := unix.MemfdCreate("dma-virtual-memory-frames", 0)
	if err != nil {
		return fmt.Errorf("localsrv: memfd_create: %w", err)
	}
	backingSize := int64(maxPages) * int64(pageSize)
	if err := unix.Ftruncate(fd, backingSize); err != nil {
		unix.Close(fd)
		return fmt.Errorf("localsrv: ftruncate: %w", err)
	}

	// Reserve virtual address space for every (main, sub) slot pair, as
	// module_init reserves 2*mmap_size for main_index/sub_index pairing.
	reserveSize := uintptr(2*maxPages) * uintptr(pageSize)
	region, err := unix.Mmap(-1, 0, int(reserveSize), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("localsrv: reserving slot address space: %w", err)
	}

	s.fd = fd
	s.pageSize = pageSize
	s.maxPages = maxPages
	s.addrMin = uintptrOf(region)

	logrus.WithFields(logrus.Fields{
		"maxPages": maxPages,
		"pageSize": pageSize,
	}).Debug("pageframe/localsrv: configured")
	return nil
}

// Alloc implements pageframe.Service.
func (s *Service) Alloc() (uint64, error) {
	if len(s.freeFrames) > 0 {
		frame := s.freeFrames[len(s.freeFrames)-1]
		s.freeFrames = s.freeFrames[:len(s.freeFrames)-1]
		s.usedFrames++
		return frame, nil
	}
	if int(s.nextFrame) >= s.maxPages {
		return 0, fmt.Errorf("localsrv: out of physical frames (max %d)", s.maxPages)
	}
	frame := s.nextFrame
	s.nextFrame++
	s.usedFrames++
	return frame, nil
}

// Free implements pageframe.Service.
func (s *Service) Free(frame uint64) {
	s.freeFrames = append(s.freeFrames, frame)
	s.usedFrames--
}

// Map implements pageframe.Service.
func (s *Service) Map(slot uint64, frame uint64) {
	addr := s.Address(slot)
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(s.pageSize),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED), uintptr(s.fd),
		uintptr(frame)*uintptr(s.pageSize))
	if errno != 0 {
		logrus.WithFields(logrus.Fields{
			"slot":  slot,
			"frame": frame,
		}).WithError(errno).Fatal("pageframe/localsrv: mapping a frame into a slot failed")
	}
}

// Unmap implements pageframe.Service.
func (s *Service) Unmap(slot uint64) {
	addr := s.Address(slot)
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(s.pageSize),
		uintptr(unix.PROT_NONE),
		uintptr(unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE),
		^uintptr(0), 0)
	if errno != 0 {
		logrus.WithFields(logrus.Fields{"slot": slot}).
			WithError(errno).Fatal("pageframe/localsrv: unmapping a slot failed")
	}
}

// Address implements pageframe.Service.
func (s *Service) Address(slot uint64) uintptr {
	return s.addrMin + uintptr(slot)*uintptr(s.pageSize)
}

// UsageBytes implements pageframe.Service.
func (s *Service) UsageBytes() int { return s.usedFrames * s.pageSize }

// Close implements pageframe.Service.
func (s *Service) Close() {
	if s.fd < 0 {
		return
	}
	reserveSize := int(uintptr(2*s.maxPages) * uintptr(s.pageSize))
	munmapAt(s.addrMin, reserveSize)
	unix.Close(s.fd)
	s.fd = -1
}
