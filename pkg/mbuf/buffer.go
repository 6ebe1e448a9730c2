package mbuf

import (
	"errors"
	"fmt"
)

// Buffer is one fixed-capacity packet buffer carved out of a Pool arena.
// The owning pool is the buffer's ownership tag: a buffer can only ever be
// released back to the pool that handed it out.
type Buffer struct {
	pool     *Pool
	index    uint32
	room     []byte
	length   int
	inFlight bool

	// Opaque metadata carried alongside the frame. Never interpreted here.
	Timestamp uint64
	Port      uint16
}

func (b *Buffer) Pool() *Pool {
	return b.pool
}

func (b *Buffer) Index() uint32 {
	return b.index
}

// Data returns the valid bytes of the buffer.
func (b *Buffer) Data() []byte {
	return b.room[:b.length]
}

// Room returns the whole data region regardless of the valid length.
func (b *Buffer) Room() []byte {
	return b.room
}

func (b *Buffer) Len() int {
	return b.length
}

func (b *Buffer) Cap() int {
	return len(b.room)
}

func (b *Buffer) SetLen(n int) error {
	if n < 0 || n > len(b.room) {
		return fmt.Errorf("%w: length %d, room %d", ErrFrameTooLarge, n, len(b.room))
	}
	b.length = n
	return nil
}

// Append copies p after the valid bytes and returns how many bytes fit.
func (b *Buffer) Append(p []byte) int {
	n := copy(b.room[b.length:], p)
	b.length += n
	return n
}

func (b *Buffer) Reset() {
	b.length = 0
	b.Timestamp = 0
	b.Port = 0
}

func (b *Buffer) InFlight() bool {
	return b.inFlight
}

// Free releases every buffer to the pool it came from and clears the slice
// entries. Release errors are joined; remaining buffers are still released.
func Free(bufs []*Buffer) error {
	var errs []error
	for i, b := range bufs {
		if b == nil {
			continue
		}
		if b.pool == nil {
			errs = append(errs, fmt.Errorf("%w: buffer has no owning pool", ErrInvalidBuffer))
		} else if err := b.pool.Release(b); err != nil {
			errs = append(errs, err)
		}
		bufs[i] = nil
	}
	return errors.Join(errs...)
}
