// Package reflector runs the poll cycle that sends every frame received on a
// port straight back out of the same port.
package reflector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

type Reflector struct {
	port   port.Port
	opts   Options
	runID  string
	logger *slog.Logger

	bufs  []*mbuf.Buffer
	empty int

	stop     chan struct{}
	stopOnce sync.Once

	counters counters
}

func New(p port.Port, opts Options) (*Reflector, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no port", ErrInvalidOptions)
	}
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	info := p.Info()
	runID := uuid.NewString()

	return &Reflector{
		port:  p,
		opts:  opts,
		runID: runID,
		logger: logger.WithPort(logger.Component(logger.Reflector), logger.PortAttrs{
			Name:   info.Name,
			Driver: info.Driver,
			RunID:  runID,
		}),
		bufs: make([]*mbuf.Buffer, opts.BurstSize),
		stop: make(chan struct{}),
	}, nil
}

func (r *Reflector) RunID() string {
	return r.runID
}

func (r *Reflector) Options() Options {
	return r.opts
}

// Run polls the port until ctx is cancelled, Stop is called or the port
// fails. Cancellation is not an error. The port is stopped before Run
// returns, whatever the outcome.
func (r *Reflector) Run(ctx context.Context) (err error) {
	defer func() {
		if serr := r.port.Stop(); serr != nil {
			err = errors.Join(err, fmt.Errorf("stop port: %w", serr))
		}
		r.logStats("Reflector stopped")
	}()

	if r.opts.PinCPU {
		if err := pinThread(r.opts.CPU); err != nil {
			return err
		}
		defer runtime.UnlockOSThread()
	}

	r.logger.Info("Reflector started",
		"burst_size", r.opts.BurstSize,
		"tx_retries", r.opts.TxRetries,
		"idle_spins", r.opts.IdleSpins,
		"idle_backoff", r.opts.IdleBackoff,
	)

	var statsC <-chan time.Time
	if r.opts.StatsInterval > 0 {
		ticker := time.NewTicker(r.opts.StatsInterval)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-statsC:
			r.logStats("Reflector totals")
		default:
		}

		n, err := r.poll()
		if err != nil {
			r.logger.Error("Reflector failed", "error", err)
			return err
		}
		if n == 0 {
			r.idle()
		}
	}
}

// poll runs one receive/transmit cycle and returns how many frames it
// received. Every buffer it receives is either handed to the port or
// released before it returns.
func (r *Reflector) poll() (int, error) {
	n, err := r.port.ReceiveBurst(r.bufs)
	if err != nil {
		if rerr := r.release(r.bufs[:n]); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return 0, fmt.Errorf("receive burst: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	r.empty = 0
	r.counters.bursts.Add(1)
	r.counters.rxPackets.Add(uint64(n))

	sent := 0
	for attempt := 0; ; attempt++ {
		k, err := r.port.TransmitBurst(r.bufs[sent:n])
		sent += k
		if err != nil {
			r.counters.txPackets.Add(uint64(sent))
			if rerr := r.release(r.bufs[sent:n]); rerr != nil {
				err = errors.Join(err, rerr)
			}
			clear(r.bufs[:n])
			return n, fmt.Errorf("transmit burst: %w", err)
		}
		if sent == n || attempt == r.opts.TxRetries {
			break
		}
		r.counters.txRetries.Add(1)
	}
	r.counters.txPackets.Add(uint64(sent))

	if dropped := n - sent; dropped > 0 {
		if err := r.release(r.bufs[sent:n]); err != nil {
			return n, err
		}
		r.counters.dropped.Add(uint64(dropped))
	}

	clear(r.bufs[:n])
	return n, nil
}

func (r *Reflector) release(bufs []*mbuf.Buffer) error {
	if err := mbuf.Free(bufs); err != nil {
		return fmt.Errorf("release buffers: %w", err)
	}
	return nil
}

// idle yields on an empty poll and, once the port has stayed empty for
// IdleSpins polls in a row, sleeps IdleBackoff between polls.
func (r *Reflector) idle() {
	r.counters.emptyPolls.Add(1)
	if r.empty < r.opts.IdleSpins || r.opts.IdleBackoff <= 0 {
		r.empty++
		runtime.Gosched()
		return
	}
	r.counters.idleSleeps.Add(1)
	time.Sleep(r.opts.IdleBackoff)
}

// Stop makes Run return at the next cycle boundary. It is safe to call from
// any goroutine and more than once.
func (r *Reflector) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Reflector) Stats() Stats {
	return r.counters.snapshot()
}

func (r *Reflector) logStats(msg string) {
	s := r.Stats()
	ps := r.port.Stats()
	r.logger.Info(msg,
		"forwarded", s.TxPackets,
		"dropped", s.Dropped,
		"bursts", s.Bursts,
		"retries", s.TxRetries,
		"rx_nobuf", ps.RxNoBuf,
		"tx_in_flight", ps.TxInFlight,
	)
}
