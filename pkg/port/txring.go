package port

import (
	"errors"

	"github.com/eapache/queue"

	"github.com/veesix-networks/reflector/pkg/mbuf"
)

// TxRing is the bounded descriptor ring of a TX queue. Buffers pushed onto it
// belong to the driver until Complete or Drain hands them back to their pool.
type TxRing struct {
	q     *queue.Queue
	depth int
}

func NewTxRing(depth int) *TxRing {
	return &TxRing{
		q:     queue.New(),
		depth: depth,
	}
}

func (r *TxRing) Len() int {
	return r.q.Length()
}

func (r *TxRing) Depth() int {
	return r.depth
}

func (r *TxRing) Free() int {
	return r.depth - r.q.Length()
}

// Push enqueues the longest prefix of bufs that fits and returns its length.
func (r *TxRing) Push(bufs []*mbuf.Buffer) int {
	n := min(len(bufs), r.Free())
	for _, b := range bufs[:n] {
		r.q.Add(b)
	}
	return n
}

// Peek returns the i-th oldest buffer on the ring.
func (r *TxRing) Peek(i int) *mbuf.Buffer {
	return r.q.Get(i).(*mbuf.Buffer)
}

// Complete retires up to n buffers from the head of the ring, calling done
// for each before it is released. It returns how many were retired.
func (r *TxRing) Complete(n int, done func(*mbuf.Buffer)) (int, error) {
	n = min(n, r.q.Length())
	var errs []error
	for i := 0; i < n; i++ {
		b := r.q.Remove().(*mbuf.Buffer)
		if done != nil {
			done(b)
		}
		if err := b.Pool().Release(b); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// Drain releases everything still queued.
func (r *TxRing) Drain() (int, error) {
	return r.Complete(r.q.Length(), nil)
}
