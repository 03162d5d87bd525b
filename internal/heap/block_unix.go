//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package heap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// rawAlloc acquires zero-filled, anonymous memory directly from the OS.
// mmap's alignment guarantee (already a multiple of the OS page size) is
// what lets pageOf mask an address down to its page boundary without the C
// original's malloc-then-round-up dance; the extra padding requested by the
// caller covers configurations where PageSize exceeds the OS page size.
func rawAlloc(size int) ([]byte, func(), error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("heap: mmap %d bytes: %w", size, err)
	}
	free := func() { _ = unix.Munmap(mem) }
	return mem, free, nil
}
