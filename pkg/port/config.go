package port

import (
	"fmt"
	"time"

	"github.com/veesix-networks/reflector/pkg/mbuf"
)

const (
	DefaultRingDepth   = 1024
	MaxRingDepth       = 4096
	DefaultLinkTimeout = 5 * time.Second
	DefaultLockDir     = "/run/reflector"
)

type Config struct {
	Driver      string
	Interface   string
	Netns       string
	RxDesc      int
	TxDesc      int
	Promiscuous bool
	LinkTimeout time.Duration
	LockDir     string

	RxPcap string
	TxPcap string
	Loop   bool
}

func (c *Config) ApplyDefaults() {
	if c.RxDesc == 0 {
		c.RxDesc = DefaultRingDepth
	}
	if c.TxDesc == 0 {
		c.TxDesc = DefaultRingDepth
	}
	if c.LinkTimeout == 0 {
		c.LinkTimeout = DefaultLinkTimeout
	}
	if c.LockDir == "" {
		c.LockDir = DefaultLockDir
	}
}

// Validate checks the driver independent part of the configuration against
// the pool the RX queue will allocate from.
func (c *Config) Validate(pool *mbuf.Pool) error {
	if c.Driver == "" {
		return fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if c.Interface == "" {
		return fmt.Errorf("%w: interface is required", ErrInvalidConfig)
	}
	if c.RxDesc <= 0 || c.RxDesc > MaxRingDepth {
		return fmt.Errorf("%w: rx_desc %d out of range 1-%d", ErrInvalidConfig, c.RxDesc, MaxRingDepth)
	}
	if c.TxDesc <= 0 || c.TxDesc > MaxRingDepth {
		return fmt.Errorf("%w: tx_desc %d out of range 1-%d", ErrInvalidConfig, c.TxDesc, MaxRingDepth)
	}
	if c.LinkTimeout < 0 {
		return fmt.Errorf("%w: negative link_timeout %s", ErrInvalidConfig, c.LinkTimeout)
	}
	if pool == nil {
		return fmt.Errorf("%w: no buffer pool bound to %s", ErrInvalidConfig, c.Interface)
	}
	if pool.Cap() < c.RxDesc {
		return fmt.Errorf("%w: pool %q holds %d buffers, rx ring of %s needs %d", ErrInvalidConfig, pool.Name(), pool.Cap(), c.Interface, c.RxDesc)
	}
	return nil
}
