package reflector

import "sync/atomic"

type Stats struct {
	Bursts     uint64
	RxPackets  uint64
	TxPackets  uint64
	TxRetries  uint64
	Dropped    uint64
	EmptyPolls uint64
	IdleSleeps uint64
}

type counters struct {
	bursts     atomic.Uint64
	rxPackets  atomic.Uint64
	txPackets  atomic.Uint64
	txRetries  atomic.Uint64
	dropped    atomic.Uint64
	emptyPolls atomic.Uint64
	idleSleeps atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Bursts:     c.bursts.Load(),
		RxPackets:  c.rxPackets.Load(),
		TxPackets:  c.txPackets.Load(),
		TxRetries:  c.txRetries.Load(),
		Dropped:    c.dropped.Load(),
		EmptyPolls: c.emptyPolls.Load(),
		IdleSleeps: c.idleSleeps.Load(),
	}
}
