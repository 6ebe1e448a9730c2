package mbuf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/veesix-networks/reflector/pkg/logger"
)

const (
	// DefaultDataRoom matches a 2K element: fits a 1500 byte MTU frame with
	// room to spare and packs two buffers per 4K page.
	DefaultDataRoom = 2048
	DefaultCapacity = 8192

	MaxArenaBytes = 1 << 34
)

var poolIDs atomic.Uint32

type Stats struct {
	Name            string
	Capacity        int
	DataRoom        int
	Available       int
	InUse           int
	Allocs          uint64
	Releases        uint64
	AllocFailures   uint64
	InvalidReleases uint64
}

// Pool is a fixed-size set of packet buffers backed by one contiguous arena.
// Allocation and release are meant to be driven from a single goroutine;
// Stats and the counters behind it may be read from any goroutine.
type Pool struct {
	id       uint32
	name     string
	dataRoom int
	arena    []byte
	bufs     []Buffer
	free     []uint32
	closed   bool
	logger   *slog.Logger

	available       atomic.Int64
	allocs          atomic.Uint64
	releases        atomic.Uint64
	allocFailures   atomic.Uint64
	invalidReleases atomic.Uint64
}

func New(name string, capacity, dataRoom int) (*Pool, error) {
	if capacity <= 0 || dataRoom <= 0 {
		return nil, fmt.Errorf("%w: pool %q needs positive capacity and data room (got %d x %d)", ErrResourceExhausted, name, capacity, dataRoom)
	}
	if uint64(capacity) > math.MaxUint32 || int64(dataRoom) > int64(MaxArenaBytes)/int64(capacity) {
		return nil, fmt.Errorf("%w: pool %q of %d x %d bytes exceeds %d byte arena limit", ErrResourceExhausted, name, capacity, dataRoom, int64(MaxArenaBytes))
	}

	arena, err := mapArena(capacity * dataRoom)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %q: %v", ErrResourceExhausted, name, err)
	}

	p := &Pool{
		id:       poolIDs.Add(1),
		name:     name,
		dataRoom: dataRoom,
		arena:    arena,
		bufs:     make([]Buffer, capacity),
		free:     make([]uint32, capacity),
		logger:   logger.Component(logger.Pool),
	}

	// Lowest index on top of the stack so allocation order is predictable.
	for i := range p.bufs {
		off := i * dataRoom
		p.bufs[i] = Buffer{
			pool:  p,
			index: uint32(i),
			room:  arena[off : off+dataRoom : off+dataRoom],
		}
		p.free[capacity-1-i] = uint32(i)
	}
	p.available.Store(int64(capacity))

	p.logger.Debug("Created buffer pool", "name", name, "capacity", capacity, "data_room", dataRoom)

	return p, nil
}

func (p *Pool) ID() uint32 {
	return p.id
}

func (p *Pool) Name() string {
	return p.name
}

func (p *Pool) Cap() int {
	return len(p.bufs)
}

func (p *Pool) DataRoom() int {
	return p.dataRoom
}

func (p *Pool) Available() int {
	return int(p.available.Load())
}

func (p *Pool) InUse() int {
	return len(p.bufs) - p.Available()
}

// Alloc hands out one free buffer. ok is false when the pool is exhausted,
// which is an expected steady-state condition rather than a failure.
func (p *Pool) Alloc() (*Buffer, bool) {
	top := len(p.free) - 1
	if top < 0 || p.closed {
		p.allocFailures.Add(1)
		return nil, false
	}

	idx := p.free[top]
	p.free = p.free[:top]

	b := &p.bufs[idx]
	b.inFlight = true
	b.Reset()

	p.available.Add(-1)
	p.allocs.Add(1)
	return b, true
}

// AllocBulk fills bufs with as many free buffers as are available and
// returns how many were allocated.
func (p *Pool) AllocBulk(bufs []*Buffer) int {
	for i := range bufs {
		b, ok := p.Alloc()
		if !ok {
			return i
		}
		bufs[i] = b
	}
	return len(bufs)
}

// Release returns b to the free list. Foreign buffers and buffers that are
// already free are rejected without touching the free list.
func (p *Pool) Release(b *Buffer) error {
	if err := p.owns(b); err != nil {
		p.invalidReleases.Add(1)
		return err
	}
	if !b.inFlight {
		p.invalidReleases.Add(1)
		return fmt.Errorf("%w: buffer %d of pool %q released twice", ErrInvalidBuffer, b.index, p.name)
	}

	b.inFlight = false
	b.length = 0
	p.free = append(p.free, b.index)

	p.available.Add(1)
	p.releases.Add(1)
	return nil
}

func (p *Pool) ReleaseBulk(bufs []*Buffer) error {
	var errs []error
	for _, b := range bufs {
		if err := p.Release(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) owns(b *Buffer) error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidBuffer)
	}
	if b.pool != p {
		return fmt.Errorf("%w: buffer does not belong to pool %q", ErrInvalidBuffer, p.name)
	}
	if int(b.index) >= len(p.bufs) || &p.bufs[b.index] != b {
		return fmt.Errorf("%w: buffer %d is not a handle of pool %q", ErrInvalidBuffer, b.index, p.name)
	}
	return nil
}

func (p *Pool) Stats() Stats {
	avail := p.Available()
	return Stats{
		Name:            p.name,
		Capacity:        len(p.bufs),
		DataRoom:        p.dataRoom,
		Available:       avail,
		InUse:           len(p.bufs) - avail,
		Allocs:          p.allocs.Load(),
		Releases:        p.releases.Load(),
		AllocFailures:   p.allocFailures.Load(),
		InvalidReleases: p.invalidReleases.Load(),
	}
}

// Close destroys the pool. It refuses while buffers are still in flight and
// leaves the arena intact, since those buffers may still be referenced.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	if inUse := p.InUse(); inUse > 0 {
		p.logger.Error("Buffer pool closed with buffers in flight", "name", p.name, "in_use", inUse)
		return fmt.Errorf("%w: pool %q has %d buffers outstanding", ErrBuffersInFlight, p.name, inUse)
	}

	p.closed = true
	p.free = nil
	if err := unmapArena(p.arena); err != nil {
		return fmt.Errorf("unmap pool %q: %w", p.name, err)
	}
	p.arena = nil

	p.logger.Debug("Destroyed buffer pool", "name", p.name)
	return nil
}
