package port

import (
	"context"
	"net"

	"github.com/veesix-networks/reflector/pkg/mbuf"
)

type LinkState uint8

const (
	LinkDown LinkState = iota
	LinkUp
)

func (s LinkState) String() string {
	if s == LinkUp {
		return "up"
	}
	return "down"
}

type Info struct {
	Name     string
	Driver   string
	MAC      net.HardwareAddr
	RxQueues int
	TxQueues int
	RxDesc   int
	TxDesc   int
	Link     LinkState
}

// Port is one network interface with a single RX and a single TX queue.
//
// ReceiveBurst and TransmitBurst never block. ReceiveBurst fills bufs[:n]
// with freshly allocated buffers, one frame each, and returns 0 when nothing
// is pending. TransmitBurst accepts a prefix bufs[:k]; accepted buffers belong
// to the port until it completes them, the rest stay with the caller.
// Stop releases every buffer the port still owns and is safe to call twice.
type Port interface {
	Info() Info
	Start(ctx context.Context) error
	ReceiveBurst(bufs []*mbuf.Buffer) (int, error)
	TransmitBurst(bufs []*mbuf.Buffer) (int, error)
	Stop() error
	Stats() Stats
}
