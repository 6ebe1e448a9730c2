//go:build linux

// Package afpacket drives a Linux interface through a raw AF_PACKET socket.
// The interface is claimed exclusively for the life of the port, brought up
// over netlink and polled without blocking.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

const (
	DriverName = "afpacket"

	linkPollInterval = 100 * time.Millisecond
)

func init() {
	port.Register(DriverName, func(cfg port.Config, pool *mbuf.Pool) (port.Port, error) {
		return New(cfg, pool)
	})
}

type Port struct {
	cfg    port.Config
	pool   *mbuf.Pool
	logger *slog.Logger

	claim *claim
	ns    netns.NsHandle
	nl    *netlink.Handle
	link  netlink.Link
	fd    int
	sa    *unix.SockaddrLinklayer
	tx    *port.TxRing

	promisc bool
	linkUp  atomic.Bool
	stopped atomic.Bool
	stopMu  sync.Mutex

	counters port.Counters
}

// New claims the interface, resolves it over netlink and binds a raw socket
// to it. The link is not touched until Start.
func New(cfg port.Config, pool *mbuf.Pool) (*Port, error) {
	cfg.ApplyDefaults()

	p := &Port{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Component(logger.PortAFPacket).With("port", cfg.Interface),
		ns:     netns.None(),
		fd:     -1,
		tx:     port.NewTxRing(cfg.TxDesc),
	}

	var err error
	if p.claim, err = claimInterface(cfg.LockDir, cfg.Interface); err != nil {
		return nil, err
	}

	if err := p.resolve(); err != nil {
		p.teardown()
		return nil, err
	}

	if err := p.inNamespace(p.openSocket); err != nil {
		p.teardown()
		return nil, err
	}

	p.logger.Debug("Bound raw socket",
		"ifindex", p.link.Attrs().Index,
		"mac", p.link.Attrs().HardwareAddr.String(),
		"netns", cfg.Netns,
	)

	return p, nil
}

func (p *Port) resolve() error {
	var err error
	if p.cfg.Netns != "" {
		p.ns, err = netns.GetFromName(p.cfg.Netns)
		if err != nil {
			return fmt.Errorf("%w: get netns %q: %v", port.ErrDeviceUnavailable, p.cfg.Netns, err)
		}
		p.nl, err = netlink.NewHandleAt(p.ns)
	} else {
		p.nl, err = netlink.NewHandle()
	}
	if err != nil {
		return fmt.Errorf("%w: create netlink handle: %v", port.ErrDeviceUnavailable, err)
	}

	p.link, err = p.nl.LinkByName(p.cfg.Interface)
	if err != nil {
		return fmt.Errorf("%w: find link %s: %v", port.ErrDeviceUnavailable, p.cfg.Interface, err)
	}
	return nil
}

// inNamespace runs fn with the calling thread switched into the port's
// network namespace. Sockets keep the namespace they were created in.
func (p *Port) inNamespace(fn func() error) error {
	if !p.ns.IsOpen() {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("%w: get current netns: %v", port.ErrDeviceUnavailable, err)
	}
	defer orig.Close()

	if err := netns.Set(p.ns); err != nil {
		return fmt.Errorf("%w: enter netns %q: %v", port.ErrDeviceUnavailable, p.cfg.Netns, err)
	}
	defer netns.Set(orig)

	return fn()
}

func (p *Port) openSocket() error {
	proto := htons(unix.ETH_P_ALL)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return fmt.Errorf("%w: open packet socket: %v", port.ErrDeviceUnavailable, err)
	}

	p.sa = &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  p.link.Attrs().Index,
	}
	if err := unix.Bind(fd, p.sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: bind to %s: %v", port.ErrDeviceUnavailable, p.cfg.Interface, err)
	}

	// Size the kernel queues after the descriptor rings so a full burst
	// never overruns them.
	room := p.pool.DataRoom()
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, p.cfg.RxDesc*room)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, p.cfg.TxDesc*room)
	_ = unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_IGNORE_OUTGOING, 1)

	p.fd = fd
	return nil
}

func (p *Port) Info() port.Info {
	attrs := p.link.Attrs()
	link := port.LinkDown
	if p.linkUp.Load() && !p.stopped.Load() {
		link = port.LinkUp
	}
	return port.Info{
		Name:     p.cfg.Interface,
		Driver:   DriverName,
		MAC:      attrs.HardwareAddr,
		RxQueues: 1,
		TxQueues: 1,
		RxDesc:   p.cfg.RxDesc,
		TxDesc:   p.cfg.TxDesc,
		Link:     link,
	}
}

// Start sets the link administratively up and waits for the carrier.
// Virtual links that never report an operational state count as up.
func (p *Port) Start(ctx context.Context) error {
	if p.stopped.Load() {
		return port.ErrStopped
	}

	if err := p.nl.LinkSetUp(p.link); err != nil {
		return fmt.Errorf("%w: set %s up: %v", port.ErrLinkDown, p.cfg.Interface, err)
	}
	if p.cfg.Promiscuous {
		if err := p.nl.SetPromiscOn(p.link); err != nil {
			return fmt.Errorf("%w: enable promiscuous mode on %s: %v", port.ErrDeviceUnavailable, p.cfg.Interface, err)
		}
		p.promisc = true
	}

	timeout := time.NewTimer(p.cfg.LinkTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(linkPollInterval)
	defer ticker.Stop()

	for {
		link, err := p.nl.LinkByName(p.cfg.Interface)
		if err != nil {
			return fmt.Errorf("%w: refresh link %s: %v", port.ErrDeviceUnavailable, p.cfg.Interface, err)
		}
		state := link.Attrs().OperState
		if state == netlink.OperUp || state == netlink.OperUnknown {
			p.link = link
			p.linkUp.Store(true)
			p.logger.Info("Link up",
				"oper_state", state.String(),
				"mtu", link.Attrs().MTU,
				"promiscuous", p.promisc,
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return fmt.Errorf("%w: %s still %s after %s", port.ErrLinkDown, p.cfg.Interface, state, p.cfg.LinkTimeout)
		case <-ticker.C:
		}
	}
}

// ReceiveBurst reads whatever the socket has queued, one frame per buffer.
// When the pool runs dry the remaining frames stay in the socket queue.
func (p *Port) ReceiveBurst(bufs []*mbuf.Buffer) (int, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(bufs) {
		b, ok := p.pool.Alloc()
		if !ok {
			p.counters.RxNoBuf.Add(1)
			break
		}

		size, from, err := unix.Recvfrom(p.fd, b.Room(), unix.MSG_DONTWAIT|unix.MSG_TRUNC)
		if err != nil {
			if rerr := p.pool.Release(b); rerr != nil {
				return n, rerr
			}
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				break
			}
			return n, p.classify("receive", err)
		}

		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			if err := p.pool.Release(b); err != nil {
				return n, err
			}
			continue
		}
		if err := b.SetLen(size); err != nil {
			p.counters.RxDropped.Add(1)
			if err := p.pool.Release(b); err != nil {
				return n, err
			}
			continue
		}

		bufs[n] = b
		n++
		p.counters.RxPackets.Add(1)
		p.counters.RxBytes.Add(uint64(size))
	}
	return n, nil
}

// TransmitBurst queues as many buffers as the TX ring has room for and hands
// the ring to the kernel until it pushes back.
func (p *Port) TransmitBurst(bufs []*mbuf.Buffer) (int, error) {
	if err := p.usable(); err != nil {
		return 0, err
	}

	if err := p.flush(); err != nil {
		return 0, err
	}
	k := p.tx.Push(bufs)
	p.counters.TxRejected.Add(uint64(len(bufs) - k))

	if err := p.flush(); err != nil {
		return k, err
	}
	return k, nil
}

// flush sends queued frames in ring order. Frames the kernel refuses for
// lack of room stay queued; frames it rejects outright are dropped.
func (p *Port) flush() error {
	defer func() { p.counters.TxInFlight.Store(int64(p.tx.Len())) }()

	for p.tx.Len() > 0 {
		b := p.tx.Peek(0)
		err := unix.Sendto(p.fd, b.Data(), unix.MSG_DONTWAIT, p.sa)
		switch {
		case err == nil:
			p.counters.TxPackets.Add(1)
			p.counters.TxBytes.Add(uint64(b.Len()))
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ENOBUFS), errors.Is(err, unix.EINTR):
			return nil
		case isFatal(err):
			return p.classify("send", err)
		default:
			p.counters.TxErrors.Add(1)
			p.logger.Debug("Dropped frame on send", "len", b.Len(), "error", err)
		}

		if _, err := p.tx.Complete(1, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *Port) usable() error {
	if p.stopped.Load() {
		return port.ErrStopped
	}
	if !p.linkUp.Load() {
		return fmt.Errorf("%w: %s not started", port.ErrLinkDown, p.cfg.Interface)
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, unix.ENETDOWN) ||
		errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.EBADF)
}

func (p *Port) classify(op string, err error) error {
	if errors.Is(err, unix.ENETDOWN) {
		p.linkUp.Store(false)
		return fmt.Errorf("%w: %s on %s: %v", port.ErrLinkDown, op, p.cfg.Interface, err)
	}
	if isFatal(err) {
		return fmt.Errorf("%w: %s on %s: %v", port.ErrDeviceUnavailable, op, p.cfg.Interface, err)
	}
	return fmt.Errorf("%s on %s: %w", op, p.cfg.Interface, err)
}

// Stop returns every queued TX buffer to its pool, closes the socket,
// restores promiscuous mode and releases the interface claim.
func (p *Port) Stop() error {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	if p.stopped.Swap(true) {
		return nil
	}
	p.linkUp.Store(false)

	released, drainErr := p.tx.Drain()
	p.counters.TxInFlight.Store(0)

	var errs []error
	if drainErr != nil {
		errs = append(errs, drainErr)
	}
	if p.promisc {
		if err := p.nl.SetPromiscOff(p.link); err != nil {
			p.logger.Warn("Failed to restore promiscuous mode", "error", err)
		}
		p.promisc = false
	}
	if err := p.teardown(); err != nil {
		errs = append(errs, err)
	}

	p.logger.Info("Port stopped", "released_tx", released)
	return errors.Join(errs...)
}

func (p *Port) teardown() error {
	var errs []error
	if p.fd >= 0 {
		if err := unix.Close(p.fd); err != nil {
			errs = append(errs, fmt.Errorf("close socket: %w", err))
		}
		p.fd = -1
	}
	if p.nl != nil {
		p.nl.Close()
		p.nl = nil
	}
	if p.ns.IsOpen() {
		p.ns.Close()
		p.ns = netns.None()
	}
	if err := p.claim.release(); err != nil {
		errs = append(errs, fmt.Errorf("release claim: %w", err))
	}
	return errors.Join(errs...)
}

func (p *Port) Stats() port.Stats {
	return p.counters.Snapshot()
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

var _ port.Port = (*Port)(nil)
