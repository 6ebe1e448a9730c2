package reflector

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultBurstSize     = 32
	MaxBurst             = 512
	DefaultTxRetries     = 3
	DefaultIdleSpins     = 256
	DefaultIdleBackoff   = 100 * time.Microsecond
	MaxIdleBackoff       = time.Millisecond
	DefaultStatsInterval = 10 * time.Second
)

var ErrInvalidOptions = errors.New("invalid reflector options")

// Options tune the poll cycle. Zero values take the defaults; negative
// TxRetries, IdleSpins, IdleBackoff or StatsInterval mean zero.
type Options struct {
	// BurstSize is the maximum number of frames moved per cycle.
	BurstSize int
	// TxRetries bounds how many more times the rejected tail of a burst is
	// offered to the port before it is released.
	TxRetries int
	// IdleSpins is the number of consecutive empty polls answered with a
	// yield before the loop starts sleeping IdleBackoff between polls.
	IdleSpins     int
	IdleBackoff   time.Duration
	StatsInterval time.Duration

	PinCPU bool
	CPU    int
}

func (o *Options) ApplyDefaults() {
	if o.BurstSize == 0 {
		o.BurstSize = DefaultBurstSize
	}
	o.TxRetries = defaultOrZero(o.TxRetries, DefaultTxRetries)
	o.IdleSpins = defaultOrZero(o.IdleSpins, DefaultIdleSpins)
	o.IdleBackoff = defaultOrZero(o.IdleBackoff, DefaultIdleBackoff)
	o.StatsInterval = defaultOrZero(o.StatsInterval, DefaultStatsInterval)
}

func defaultOrZero[T ~int | ~int64](v, def T) T {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

func (o *Options) Validate() error {
	if o.BurstSize < 1 || o.BurstSize > MaxBurst {
		return fmt.Errorf("%w: burst size %d out of range 1-%d", ErrInvalidOptions, o.BurstSize, MaxBurst)
	}
	if o.IdleBackoff > MaxIdleBackoff {
		return fmt.Errorf("%w: idle backoff %s exceeds %s", ErrInvalidOptions, o.IdleBackoff, MaxIdleBackoff)
	}
	if o.PinCPU && o.CPU < 0 {
		return fmt.Errorf("%w: negative cpu %d", ErrInvalidOptions, o.CPU)
	}
	return nil
}
