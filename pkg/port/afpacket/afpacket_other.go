//go:build !linux

package afpacket

import (
	"fmt"
	"runtime"

	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

const DriverName = "afpacket"

func init() {
	port.Register(DriverName, func(cfg port.Config, pool *mbuf.Pool) (port.Port, error) {
		return nil, fmt.Errorf("%w: AF_PACKET sockets are not available on %s", port.ErrDeviceUnavailable, runtime.GOOS)
	})
}
