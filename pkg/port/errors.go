package port

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid port configuration")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrLinkDown          = errors.New("link down")
	ErrStopped           = errors.New("port stopped")
)
