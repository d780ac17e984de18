package version

import (
	"strconv"
	"strings"
)

// NonExisting marks a coordinate that has no defined counter for a
// node, e.g. because the node joined the cluster after the version was
// generated.
const NonExisting int64 = -1

// Version is an immutable vector clock: one logical counter per node
// in a ClusterSnapshot. Versions are never mutated after creation;
// every operation that "changes" a Version returns a new one.
type Version struct {
	snapshot *ClusterSnapshot
	coords   []int64
}

func newVersion(snapshot *ClusterSnapshot, coords []int64) Version {
	return Version{snapshot: snapshot, coords: coords}
}

// Snapshot returns the cluster snapshot this version was generated
// against.
func (v Version) Snapshot() *ClusterSnapshot {
	return v.snapshot
}

// Get returns the logical counter for nodeIndex, or NonExisting if the
// node is outside the version's snapshot.
func (v Version) Get(nodeIndex int) int64 {
	if nodeIndex < 0 || nodeIndex >= len(v.coords) {
		return NonExisting
	}
	return v.coords[nodeIndex]
}

// At is a convenience wrapper around Get that resolves a node
// identifier through the version's own snapshot.
func (v Version) At(node string) int64 {
	if v.snapshot == nil {
		return NonExisting
	}
	idx := v.snapshot.IndexOf(node)
	if idx < 0 {
		return NonExisting
	}
	return v.Get(idx)
}

// Size returns the number of coordinates carried by this version.
func (v Version) Size() int {
	return len(v.coords)
}

// WithCoord returns a copy of v with nodeIndex's coordinate set to
// value. v itself is left untouched.
func (v Version) WithCoord(nodeIndex int, value int64) Version {
	next := make([]int64, len(v.coords))
	copy(next, v.coords)
	if nodeIndex >= len(next) {
		grown := make([]int64, nodeIndex+1)
		for i := range grown {
			grown[i] = NonExisting
		}
		copy(grown, next)
		next = grown
	}
	next[nodeIndex] = value
	return newVersion(v.snapshot, next)
}

// IsZero reports whether v carries no snapshot (the empty Version).
func (v Version) IsZero() bool {
	return v.snapshot == nil && v.coords == nil
}

// String renders the coordinates as a bracketed, comma-separated list,
// e.g. "[3,-1,5]".
func (v Version) String() string {
	parts := make([]string, len(v.coords))
	for i, c := range v.coords {
		parts[i] = strconv.FormatInt(c, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ProjectOnto re-expresses v under another cluster snapshot, filling
// newly-added nodes with NonExisting and preserving every coordinate
// the two snapshots share by node identifier. This is the explicit
// alternative to a silent cross-snapshot comparison (see design notes
// on cross-cluster-snapshot comparison).
func (v Version) ProjectOnto(target *ClusterSnapshot) Version {
	if v.snapshot != nil && v.snapshot.sameAs(target) {
		return v
	}
	coords := make([]int64, target.Size())
	for i := range coords {
		coords[i] = NonExisting
	}
	if v.snapshot != nil {
		for i, node := range v.snapshot.Nodes() {
			if j := target.IndexOf(node); j >= 0 {
				coords[j] = v.coords[i]
			}
		}
	}
	return newVersion(target, coords)
}
