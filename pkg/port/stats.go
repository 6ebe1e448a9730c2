package port

import "sync/atomic"

type Stats struct {
	RxPackets  uint64
	RxBytes    uint64
	RxNoBuf    uint64
	RxDropped  uint64
	TxPackets  uint64
	TxBytes    uint64
	TxRejected uint64
	TxErrors   uint64
	TxInFlight int
}

// Counters are the per-port counters drivers update from the polling
// goroutine while exporters read them concurrently.
type Counters struct {
	RxPackets  atomic.Uint64
	RxBytes    atomic.Uint64
	RxNoBuf    atomic.Uint64
	RxDropped  atomic.Uint64
	TxPackets  atomic.Uint64
	TxBytes    atomic.Uint64
	TxRejected atomic.Uint64
	TxErrors   atomic.Uint64
	TxInFlight atomic.Int64
}

func (c *Counters) Snapshot() Stats {
	return Stats{
		RxPackets:  c.RxPackets.Load(),
		RxBytes:    c.RxBytes.Load(),
		RxNoBuf:    c.RxNoBuf.Load(),
		RxDropped:  c.RxDropped.Load(),
		TxPackets:  c.TxPackets.Load(),
		TxBytes:    c.TxBytes.Load(),
		TxRejected: c.TxRejected.Load(),
		TxErrors:   c.TxErrors.Load(),
		TxInFlight: int(c.TxInFlight.Load()),
	}
}
