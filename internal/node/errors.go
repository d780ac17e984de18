package node

import "errors"

// ErrStopped is returned by Update and View once the node has been
// stopped.
var ErrStopped = errors.New("node: stopped")
