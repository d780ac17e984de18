package version

import "sync"

// Generator produces and reprojects Versions against the current
// cluster snapshot. It never mutates a Version once returned.
type Generator struct {
	mu       sync.RWMutex
	snapshot *ClusterSnapshot
}

func NewGenerator(snapshot *ClusterSnapshot) *Generator {
	return &Generator{snapshot: snapshot}
}

// CurrentSnapshot returns the snapshot this generator currently
// projects onto.
func (g *Generator) CurrentSnapshot() *ClusterSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// GenerateNew returns an all-zero Version under the current snapshot.
func (g *Generator) GenerateNew() Version {
	g.mu.RLock()
	defer g.mu.RUnlock()

	coords := make([]int64, g.snapshot.Size())
	return newVersion(g.snapshot, coords)
}

// GenerateUnknown returns a Version with every coordinate NonExisting,
// under the current snapshot. Unlike GenerateNew's all-zero scaffold
// (meant for stamping a fresh commit), this is the "no information yet"
// value a transaction starts with before its first read resolves a real
// local coordinate via GetAvailableVersionLessThan.
func (g *Generator) GenerateUnknown() Version {
	g.mu.RLock()
	defer g.mu.RUnlock()

	coords := make([]int64, g.snapshot.Size())
	for i := range coords {
		coords[i] = NonExisting
	}
	return newVersion(g.snapshot, coords)
}

// UpdatedVersion reprojects v onto the current snapshot: coordinates
// for nodes v already had are preserved, coordinates for nodes new to
// the snapshot are filled with NonExisting.
func (g *Generator) UpdatedVersion(v Version) Version {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return v.ProjectOnto(g.snapshot)
}

// MergeAndMax returns the coordinate-wise maximum of vs, ignoring
// NonExisting coordinates. All vs must already share the current
// snapshot (callers should pass them through UpdatedVersion first).
func (g *Generator) MergeAndMax(vs ...Version) Version {
	g.mu.RLock()
	snapshot := g.snapshot
	g.mu.RUnlock()

	coords := make([]int64, snapshot.Size())
	for i := range coords {
		coords[i] = NonExisting
	}
	for _, v := range vs {
		for i := 0; i < snapshot.Size(); i++ {
			c := v.Get(i)
			if c > coords[i] {
				coords[i] = c
			}
		}
	}
	return newVersion(snapshot, coords)
}

// MergeMax is the free-function form of MergeAndMax for versions that
// already share a snapshot (used outside the generator, e.g. by the
// commit log when folding chain entries).
func MergeMax(vs ...Version) Version {
	var snapshot *ClusterSnapshot
	for _, v := range vs {
		if v.snapshot != nil {
			snapshot = v.snapshot
			break
		}
	}
	if snapshot == nil {
		return Version{}
	}
	coords := make([]int64, snapshot.Size())
	for i := range coords {
		coords[i] = NonExisting
	}
	for _, v := range vs {
		for i := 0; i < snapshot.Size(); i++ {
			c := v.Get(i)
			if c > coords[i] {
				coords[i] = c
			}
		}
	}
	return newVersion(snapshot, coords)
}

// ConvertToRead wraps v as a ReadVersion with an empty not-visible set.
func ConvertToRead(v Version) ReadVersion {
	return ReadVersion{Vector: v, notVisible: make(map[notVisibleKey]struct{})}
}

// ConvertToWrite wraps base as a WriteVersion carrying an explicit
// sub-version, used to tie-break among transactions that commit at the
// same vector.
func ConvertToWrite(base Version, subVersion uint64) WriteVersion {
	return WriteVersion{Vector: base, SubVersion: subVersion}
}

// WriteVersion is a committed vector paired with the sub-version that
// tie-breaks it among other transactions sharing the same vector.
type WriteVersion struct {
	Vector     Version
	SubVersion uint64
}

type notVisibleKey struct {
	nodeCounter int64
	subVersion  uint64
}

// ReadVersion is a vector version plus the set of (node_counter,
// sub_version) pairs that must NOT be considered visible to this
// reader, even though they share a per-node counter with the reader's
// snapshot.
type ReadVersion struct {
	Vector     Version
	notVisible map[notVisibleKey]struct{}
}

// MarkNotVisible records that commits at (nodeCounter, subVersion) must
// be skipped by this reader.
func (r *ReadVersion) MarkNotVisible(nodeCounter int64, subVersion uint64) {
	if r.notVisible == nil {
		r.notVisible = make(map[notVisibleKey]struct{})
	}
	r.notVisible[notVisibleKey{nodeCounter, subVersion}] = struct{}{}
}

// IsNotVisible reports whether (nodeCounter, subVersion) was recorded
// as invisible to this reader.
func (r ReadVersion) IsNotVisible(nodeCounter int64, subVersion uint64) bool {
	if r.notVisible == nil {
		return false
	}
	_, found := r.notVisible[notVisibleKey{nodeCounter, subVersion}]
	return found
}

// Len reports the size of the not-visible set, mostly useful in tests.
func (r ReadVersion) Len() int {
	return len(r.notVisible)
}
