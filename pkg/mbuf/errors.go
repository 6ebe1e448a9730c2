package mbuf

import "errors"

var (
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInvalidBuffer     = errors.New("invalid buffer")
	ErrBuffersInFlight   = errors.New("buffers still in flight")
	ErrFrameTooLarge     = errors.New("frame exceeds buffer data room")
)
