//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/veesix-networks/reflector/pkg/port"
)

// claim is an exclusive advisory lock on an interface, held for as long as a
// port is bound to it.
type claim struct {
	path string
	f    *os.File
}

func claimInterface(dir, iface string) (*claim, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: lock directory %s: %v", port.ErrDeviceUnavailable, dir, err)
	}

	path := filepath.Join(dir, iface+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", port.ErrDeviceUnavailable, path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s is claimed by another process (%s)", port.ErrDeviceUnavailable, iface, path)
		}
		return nil, fmt.Errorf("%w: lock %s: %v", port.ErrDeviceUnavailable, path, err)
	}

	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	return &claim{path: path, f: f}, nil
}

func (c *claim) release() error {
	if c == nil || c.f == nil {
		return nil
	}
	err := unix.Flock(int(c.f.Fd()), unix.LOCK_UN)
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	c.f = nil
	return err
}
