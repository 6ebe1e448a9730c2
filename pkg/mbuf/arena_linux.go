//go:build linux

package mbuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapArena backs the pool with anonymous, page aligned memory faulted in up
// front so the first bursts do not pay for page faults.
func mapArena(size int) ([]byte, error) {
	page := unix.Getpagesize()
	mapped := (size + page - 1) &^ (page - 1)

	data, err := unix.Mmap(-1, 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", mapped, err)
	}
	return data[:size:mapped], nil
}

func unmapArena(data []byte) error {
	return unix.Munmap(data[:cap(data)])
}
