package transport

import "errors"

var (
	// ErrUnknownEndpoint is returned by Send/Broadcast when the target
	// NodeID was never Register'd with the bus.
	ErrUnknownEndpoint = errors.New("transport: unknown endpoint")
	// ErrStopped is returned by Send/Broadcast once Stop has been
	// called on the bus.
	ErrStopped = errors.New("transport: bus is stopped")
)
