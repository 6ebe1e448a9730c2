// Package pcapfile replays frames from a capture file as the RX side of a
// port and writes everything transmitted to another capture file.
package pcapfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

const DriverName = "pcap"

func init() {
	port.Register(DriverName, func(cfg port.Config, pool *mbuf.Pool) (port.Port, error) {
		return New(cfg, pool)
	})
}

type Port struct {
	cfg    port.Config
	pool   *mbuf.Pool
	logger *slog.Logger

	mu       sync.Mutex
	rxFile   *os.File
	rx       *pcapgo.Reader
	rxFit    uint64
	rxDone   bool
	txFile   *os.File
	txBuf    *bufio.Writer
	tx       *pcapgo.Writer
	ring     *port.TxRing
	started  bool
	stopped  bool
	counters port.Counters
}

func New(cfg port.Config, pool *mbuf.Pool) (*Port, error) {
	cfg.ApplyDefaults()
	if cfg.RxPcap == "" && cfg.TxPcap == "" {
		return nil, fmt.Errorf("%w: pcap port %s needs rx_pcap or tx_pcap", port.ErrInvalidConfig, cfg.Interface)
	}

	p := &Port{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Component(logger.PortPcap).With("port", cfg.Interface),
		ring:   port.NewTxRing(cfg.TxDesc),
	}

	if cfg.RxPcap != "" {
		if err := p.openReader(); err != nil {
			return nil, err
		}
	}
	if cfg.TxPcap != "" {
		if err := p.openWriter(); err != nil {
			p.closeFiles()
			return nil, err
		}
	}

	return p, nil
}

func (p *Port) openReader() error {
	f, err := os.Open(p.cfg.RxPcap)
	if err != nil {
		return fmt.Errorf("%w: open rx_pcap: %v", port.ErrDeviceUnavailable, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: read %s: %v", port.ErrInvalidConfig, p.cfg.RxPcap, err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return fmt.Errorf("%w: %s has link type %s, want Ethernet", port.ErrInvalidConfig, p.cfg.RxPcap, r.LinkType())
	}

	p.rxFile = f
	p.rx = r
	return nil
}

func (p *Port) openWriter() error {
	f, err := os.Create(p.cfg.TxPcap)
	if err != nil {
		return fmt.Errorf("%w: create tx_pcap: %v", port.ErrDeviceUnavailable, err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(uint32(p.pool.DataRoom()), layers.LinkTypeEthernet); err != nil {
		f.Close()
		return fmt.Errorf("%w: write header to %s: %v", port.ErrDeviceUnavailable, p.cfg.TxPcap, err)
	}

	p.txFile = f
	p.txBuf = buf
	p.tx = w
	return nil
}

func (p *Port) Info() port.Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	link := port.LinkDown
	if p.started && !p.stopped {
		link = port.LinkUp
	}
	return port.Info{
		Name:     p.cfg.Interface,
		Driver:   DriverName,
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
	p.started = true
	p.logger.Info("Pcap port started", "rx_pcap", p.cfg.RxPcap, "tx_pcap", p.cfg.TxPcap, "loop", p.cfg.Loop)
	return nil
}

// ReceiveBurst reads the next frames from the capture. End of file reads as
// an idle queue, or rewinds the capture when looping. A looping capture is
// only rewound after a pass that produced at least one frame, so a capture
// with nothing that fits the pool's data room goes idle instead of spinning.
func (p *Port) ReceiveBurst(bufs []*mbuf.Buffer) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usable(); err != nil {
		return 0, err
	}
	if p.rx == nil || p.rxDone {
		return 0, nil
	}

	n := 0
	for n < len(bufs) {
		b, ok := p.pool.Alloc()
		if !ok {
			p.counters.RxNoBuf.Add(1)
			break
		}

		data, ci, err := p.rx.ReadPacketData()
		if err != nil {
			if rerr := p.pool.Release(b); rerr != nil {
				return n, rerr
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return n, fmt.Errorf("read %s: %w", p.cfg.RxPcap, err)
			}
			if !p.cfg.Loop || p.rxFit == 0 {
				p.rxDone = true
				p.logger.Info("Capture exhausted", "frames", p.rxFit, "dropped", p.counters.RxDropped.Load())
				break
			}
			if err := p.rewind(); err != nil {
				return n, err
			}
			continue
		}

		if len(data) > len(b.Room()) {
			p.counters.RxDropped.Add(1)
			if err := p.pool.Release(b); err != nil {
				return n, err
			}
			continue
		}
		p.rxFit++
		b.Append(data)
		b.Timestamp = uint64(ci.Timestamp.UnixNano())

		bufs[n] = b
		n++
		p.counters.RxPackets.Add(1)
		p.counters.RxBytes.Add(uint64(len(data)))
	}
	return n, nil
}

func (p *Port) rewind() error {
	if _, err := p.rxFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", p.cfg.RxPcap, err)
	}
	r, err := pcapgo.NewReader(p.rxFile)
	if err != nil {
		return fmt.Errorf("rewind %s: %w", p.cfg.RxPcap, err)
	}
	p.rx = r
	p.rxFit = 0
	return nil
}

// TransmitBurst writes accepted frames to the output capture straight away,
// so the TX ring never holds anything between calls.
func (p *Port) TransmitBurst(bufs []*mbuf.Buffer) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.usable(); err != nil {
		return 0, err
	}

	k := p.ring.Push(bufs)
	p.counters.TxRejected.Add(uint64(len(bufs) - k))

	var werr error
	_, err := p.ring.Complete(k, func(b *mbuf.Buffer) {
		if werr != nil {
			p.counters.TxErrors.Add(1)
			return
		}
		if werr = p.write(b); werr != nil {
			p.counters.TxErrors.Add(1)
			return
		}
		p.counters.TxPackets.Add(1)
		p.counters.TxBytes.Add(uint64(b.Len()))
	})
	if werr != nil {
		return k, fmt.Errorf("%w: write %s: %v", port.ErrDeviceUnavailable, p.cfg.TxPcap, werr)
	}
	return k, err
}

func (p *Port) write(b *mbuf.Buffer) error {
	if p.tx == nil {
		return nil
	}
	ts := time.Now()
	if b.Timestamp != 0 {
		ts = time.Unix(0, int64(b.Timestamp))
	}
	return p.tx.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: b.Len(),
		Length:        b.Len(),
	}, b.Data())
}

func (p *Port) usable() error {
	if p.stopped {
		return port.ErrStopped
	}
	if !p.started {
		return fmt.Errorf("%w: %s not started", port.ErrLinkDown, p.cfg.Interface)
	}
	return nil
}

func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	_, drainErr := p.ring.Drain()
	err := errors.Join(drainErr, p.closeFiles())

	p.logger.Info("Pcap port stopped",
		"rx_packets", p.counters.RxPackets.Load(),
		"tx_packets", p.counters.TxPackets.Load(),
	)
	return err
}

func (p *Port) closeFiles() error {
	var errs []error
	if p.rxFile != nil {
		if err := p.rxFile.Close(); err != nil {
			errs = append(errs, err)
		}
		p.rxFile = nil
		p.rx = nil
	}
	if p.txFile != nil {
		if err := p.txBuf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", p.cfg.TxPcap, err))
		}
		if err := p.txFile.Close(); err != nil {
			errs = append(errs, err)
		}
		p.txFile = nil
		p.tx = nil
	}
	return errors.Join(errs...)
}

func (p *Port) Stats() port.Stats {
	return p.counters.Snapshot()
}
