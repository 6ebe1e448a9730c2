package mbuf

import (
	"bytes"
	"errors"
	"testing"
)

func TestBufferAppendAndLength(t *testing.T) {
	p := newTestPool(t, 1, 8)
	b, _ := p.Alloc()

	if n := b.Append([]byte("abcdef")); n != 6 {
		t.Fatalf("appended %d, want 6", n)
	}
	if n := b.Append([]byte("ghij")); n != 2 {
		t.Fatalf("appended %d, want 2 (room exhausted)", n)
	}
	if !bytes.Equal(b.Data(), []byte("abcdefgh")) {
		t.Fatalf("data = %q", b.Data())
	}
	if err := b.SetLen(9); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
	if err := b.SetLen(3); err != nil || b.Len() != 3 {
		t.Fatalf("SetLen(3) = %v, len %d", err, b.Len())
	}
}

func TestBufferRegionsDoNotOverlap(t *testing.T) {
	p := newTestPool(t, 3, 4)
	bufs := make([]*Buffer, 3)
	p.AllocBulk(bufs)

	for i, b := range bufs {
		copy(b.Room(), bytes.Repeat([]byte{byte(i + 1)}, 4))
		b.SetLen(4)
	}
	for i, b := range bufs {
		if !bytes.Equal(b.Data(), bytes.Repeat([]byte{byte(i + 1)}, 4)) {
			t.Fatalf("buffer %d corrupted: %v", i, b.Data())
		}
	}
}

func TestBufferMetadataResetOnAlloc(t *testing.T) {
	p := newTestPool(t, 1, 16)
	b, _ := p.Alloc()
	b.Timestamp = 42
	b.Port = 7
	b.Append([]byte("x"))
	p.Release(b)

	b, _ = p.Alloc()
	if b.Timestamp != 0 || b.Port != 0 || b.Len() != 0 {
		t.Fatalf("stale metadata after realloc: ts=%d port=%d len=%d", b.Timestamp, b.Port, b.Len())
	}
	if !b.InFlight() || b.Pool() != p {
		t.Fatal("allocated buffer must be in flight and tagged with its pool")
	}
}

func TestFreeAcrossPools(t *testing.T) {
	p1 := newTestPool(t, 2, 16)
	p2 := newTestPool(t, 2, 16)
	a, _ := p1.Alloc()
	b, _ := p2.Alloc()

	bufs := []*Buffer{a, nil, b}
	if err := Free(bufs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.Available() != 2 || p2.Available() != 2 {
		t.Fatal("buffers not returned to their owning pools")
	}
	for i, b := range bufs {
		if b != nil {
			t.Fatalf("slot %d not cleared", i)
		}
	}

	if err := Free([]*Buffer{a}); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("got %v, want ErrInvalidBuffer", err)
	}
}
