package cluster

import "errors"

var (
	// ErrUnknownNode is returned when a NodeID has no entry in the
	// cluster config's address table.
	ErrUnknownNode = errors.New("cluster: unknown node id")
	// ErrEmptyRing is returned by Ring methods when no node has been
	// added.
	ErrEmptyRing = errors.New("cluster: ring has no nodes")
)
