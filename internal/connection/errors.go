package connection

import "errors"

// Errors
var (
	ErrHeartbeatTimeout     = errors.New("heartbeat timeout")
	ErrNoTransport          = errors.New("no usable transport")
	ErrUnsupportedTransport = errors.New("transport not supported in this runtime")
	ErrClosed               = errors.New("connection closed")
	ErrNoOutbound           = errors.New("no outbound endpoint configured")
)
