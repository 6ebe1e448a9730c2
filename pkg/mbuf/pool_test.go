package mbuf

import (
	"errors"
	"testing"
)

func newTestPool(t *testing.T, capacity, room int) *Pool {
	t.Helper()
	p, err := New("test", capacity, room)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestPoolNewRejectsBadSizes(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		room     int
	}{
		{"zero capacity", 0, 2048},
		{"zero room", 16, 0},
		{"negative capacity", -1, 2048},
		{"arena too large", 1 << 20, 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("bad", tt.capacity, tt.room)
			if !errors.Is(err, ErrResourceExhausted) {
				t.Fatalf("got %v, want ErrResourceExhausted", err)
			}
		})
	}
}

func TestPoolAllocSequential(t *testing.T) {
	p := newTestPool(t, 4, 64)
	b0, _ := p.Alloc()
	b1, _ := p.Alloc()
	if b0.Index() != 0 || b1.Index() != 1 {
		t.Fatalf("got indexes %d,%d, want 0,1", b0.Index(), b1.Index())
	}
	if p.Available() != 2 || p.InUse() != 2 {
		t.Fatalf("available=%d in_use=%d, want 2/2", p.Available(), p.InUse())
	}
}

func TestPoolExhaustionIsNotAnError(t *testing.T) {
	p := newTestPool(t, 2, 64)
	p.Alloc()
	p.Alloc()

	b, ok := p.Alloc()
	if ok || b != nil {
		t.Fatalf("expected empty result from exhausted pool, got %v", b)
	}
	if s := p.Stats(); s.AllocFailures != 1 {
		t.Fatalf("alloc failures = %d, want 1", s.AllocFailures)
	}
}

func TestPoolReleaseAndReallocate(t *testing.T) {
	p := newTestPool(t, 2, 64)
	b0, _ := p.Alloc()
	p.Alloc()

	if err := p.Release(b0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, ok := p.Alloc()
	if !ok || b2 != b0 {
		t.Fatalf("expected released buffer to be reused")
	}
}

func TestPoolDoubleRelease(t *testing.T) {
	p := newTestPool(t, 4, 64)
	b, _ := p.Alloc()
	if err := p.Release(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := p.Release(b)
	if !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("got %v, want ErrInvalidBuffer", err)
	}
	if p.Available() != 4 {
		t.Fatalf("available = %d, want 4", p.Available())
	}

	// The free list must still hand out each buffer exactly once.
	seen := make(map[uint32]bool)
	for i := 0; i < 4; i++ {
		got, ok := p.Alloc()
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		if seen[got.Index()] {
			t.Fatalf("buffer %d handed out twice", got.Index())
		}
		seen[got.Index()] = true
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("expected pool to be exhausted")
	}
}

func TestPoolReleaseForeignBuffer(t *testing.T) {
	p1 := newTestPool(t, 2, 64)
	p2 := newTestPool(t, 2, 64)
	b, _ := p2.Alloc()

	if err := p1.Release(b); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("got %v, want ErrInvalidBuffer", err)
	}
	if p1.Available() != 2 || p2.InUse() != 1 {
		t.Fatalf("pool state changed by foreign release")
	}
	if s := p1.Stats(); s.InvalidReleases != 1 {
		t.Fatalf("invalid releases = %d, want 1", s.InvalidReleases)
	}
}

func TestPoolReleaseCopiedHandle(t *testing.T) {
	p := newTestPool(t, 2, 64)
	b, _ := p.Alloc()
	clone := *b

	if err := p.Release(&clone); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("got %v, want ErrInvalidBuffer", err)
	}
	if err := p.Release(nil); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("got %v, want ErrInvalidBuffer", err)
	}
}

func TestPoolAllocBulk(t *testing.T) {
	p := newTestPool(t, 5, 64)
	bufs := make([]*Buffer, 8)

	n := p.AllocBulk(bufs)
	if n != 5 {
		t.Fatalf("allocated %d, want 5", n)
	}
	if err := p.ReleaseBulk(bufs[:n]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Available() != 5 {
		t.Fatalf("available = %d, want 5", p.Available())
	}
}

func TestPoolConservation(t *testing.T) {
	const capacity = 32
	p := newTestPool(t, capacity, 64)

	var held []*Buffer
	for round := 0; round < 200; round++ {
		if round%3 != 2 {
			if b, ok := p.Alloc(); ok {
				held = append(held, b)
			}
		} else if len(held) > 0 {
			b := held[0]
			held = held[1:]
			if err := p.Release(b); err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
		}
		if p.InUse() != len(held) || p.InUse() > capacity {
			t.Fatalf("round %d: in_use=%d held=%d", round, p.InUse(), len(held))
		}
	}

	if err := Free(held); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Available() != capacity {
		t.Fatalf("available = %d, want %d", p.Available(), capacity)
	}
}

func TestPoolCloseWithBuffersInFlight(t *testing.T) {
	p := newTestPool(t, 4, 64)
	b, _ := p.Alloc()

	if err := p.Close(); !errors.Is(err, ErrBuffersInFlight) {
		t.Fatalf("got %v, want ErrBuffersInFlight", err)
	}
	if err := p.Release(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("closed pool must not hand out buffers")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
