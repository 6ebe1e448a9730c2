// Package vport is an in-memory port. Frames injected on its RX side are
// received into pool buffers and transmitted buffers sit on the TX ring until
// completion is simulated, which makes buffer ownership observable in tests.
package vport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/eapache/queue"

	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

const (
	DriverName = "virtual"

	Unlimited = -1
)

func init() {
	port.Register(DriverName, func(cfg port.Config, pool *mbuf.Pool) (port.Port, error) {
		p := New(cfg, pool)
		p.autoComplete = true
		return p, nil
	})
}

type Port struct {
	cfg    port.Config
	pool   *mbuf.Pool
	mac    net.HardwareAddr
	logger *slog.Logger

	mu           sync.Mutex
	rx           *queue.Queue
	tx           *port.TxRing
	txLimit      int
	autoComplete bool
	transmitted  [][]byte
	link         port.LinkState
	started      bool
	stopped      bool
	failErr      error

	counters port.Counters
}

// New builds a virtual port directly, bypassing the driver registry. Ports
// created this way leave TX completion to the caller.
func New(cfg port.Config, pool *mbuf.Pool) *Port {
	cfg.ApplyDefaults()
	if cfg.Driver == "" {
		cfg.Driver = DriverName
	}
	return &Port{
		cfg:     cfg,
		pool:    pool,
		mac:     net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		logger:  logger.Component(logger.PortVirtual).With("port", cfg.Interface),
		rx:      queue.New(),
		tx:      port.NewTxRing(cfg.TxDesc),
		txLimit: Unlimited,
		link:    port.LinkUp,
	}
}

func (p *Port) Info() port.Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	link := port.LinkDown
	if p.started && !p.stopped {
		link = p.link
	}
	return port.Info{
		Name:     p.cfg.Interface,
		Driver:   p.cfg.Driver,
		MAC:      p.mac,
		RxQueues: 1,
		TxQueues: 1,
		RxDesc:   p.cfg.RxDesc,
		TxDesc:   p.cfg.TxDesc,
		Link:     link,
	}
}

func (p *Port) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return port.ErrStopped
	}
	if p.link != port.LinkUp {
		return fmt.Errorf("%w: %s", port.ErrLinkDown, p.cfg.Interface)
	}
	p.started = true
	p.logger.Info("Virtual port started", "rx_desc", p.cfg.RxDesc, "tx_desc", p.cfg.TxDesc)
	return nil
}

// Inject queues one frame on the RX side. It returns false when the RX ring
// is full or the frame does not fit a pool buffer.
func (p *Port) Inject(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rx.Length() >= p.cfg.RxDesc || len(frame) > p.pool.DataRoom() {
		p.counters.RxDropped.Add(1)
		return false
	}
	p.rx.Add(append([]byte(nil), frame...))
	return true
}

func (p *Port) InjectBurst(frames [][]byte) int {
	for i, f := range frames {
		if !p.Inject(f) {
			return i
		}
	}
	return len(frames)
}

func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rx.Length()
}

func (p *Port) ReceiveBurst(bufs []*mbuf.Buffer) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usable(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(bufs) && p.rx.Length() > 0 {
		b, ok := p.pool.Alloc()
		if !ok {
			p.counters.RxNoBuf.Add(1)
			break
		}
		frame := p.rx.Remove().([]byte)
		b.Append(frame)

		bufs[n] = b
		n++
		p.counters.RxPackets.Add(1)
		p.counters.RxBytes.Add(uint64(len(frame)))
	}
	return n, nil
}

func (p *Port) TransmitBurst(bufs []*mbuf.Buffer) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usable(); err != nil {
		return 0, err
	}

	if p.autoComplete {
		if _, err := p.tx.Complete(p.tx.Len(), p.record); err != nil {
			return 0, err
		}
	}

	want := len(bufs)
	if p.txLimit >= 0 {
		want = min(want, p.txLimit)
	}
	k := p.tx.Push(bufs[:want])

	for _, b := range bufs[:k] {
		p.counters.TxPackets.Add(1)
		p.counters.TxBytes.Add(uint64(b.Len()))
	}
	p.counters.TxRejected.Add(uint64(len(bufs) - k))
	p.counters.TxInFlight.Store(int64(p.tx.Len()))

	return k, nil
}

func (p *Port) usable() error {
	if p.stopped {
		return port.ErrStopped
	}
	if p.failErr != nil {
		err := p.failErr
		p.failErr = nil
		return err
	}
	if !p.started || p.link != port.LinkUp {
		return fmt.Errorf("%w: %s", port.ErrLinkDown, p.cfg.Interface)
	}
	return nil
}

func (p *Port) record(b *mbuf.Buffer) {
	p.transmitted = append(p.transmitted, append([]byte(nil), b.Data()...))
}

// CompleteTransmit simulates the medium finishing the n oldest transmissions.
func (p *Port) CompleteTransmit(n int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done, err := p.tx.Complete(n, p.record)
	p.counters.TxInFlight.Store(int64(p.tx.Len()))
	return done, err
}

func (p *Port) CompleteAll() (int, error) {
	return p.CompleteTransmit(p.TxInFlight())
}

func (p *Port) TxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.Len()
}

// Transmitted returns copies of every completed frame in wire order.
func (p *Port) Transmitted() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.transmitted...)
}

// SetTxLimit caps how many buffers one TransmitBurst accepts. Unlimited
// restores normal behaviour.
func (p *Port) SetTxLimit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txLimit = n
}

func (p *Port) SetAutoComplete(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoComplete = on
}

func (p *Port) SetLink(state port.LinkState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link = state
}

// FailNext makes the next burst call return err.
func (p *Port) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failErr = err
}

func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	released, err := p.tx.Drain()
	p.counters.TxInFlight.Store(0)
	p.logger.Info("Virtual port stopped", "released_tx", released, "pending_rx", p.rx.Length())
	return err
}

func (p *Port) Stats() port.Stats {
	return p.counters.Snapshot()
}
