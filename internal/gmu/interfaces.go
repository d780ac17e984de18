package gmu

import (
	"github.com/cloudtm/gmu/internal/store"
	"github.com/cloudtm/gmu/internal/version"
)

// Distribution is the placement collaborator the protocol consults to
// find a key's write owners and to decide whether this node is one of
// them. internal/cluster.Ring is the concrete implementation; the
// protocol itself only ever calls through this interface (spec.md §6's
// "Distribution / Consistent-Hashing").
type Distribution interface {
	WriteOwners(key []byte) ([]string, error)
	IsLocalOwner(key []byte, self string) (bool, error)
}

// DataContainer is the versioned key-value collaborator the protocol
// reads and writes through. internal/store.Store satisfies it; the
// protocol never depends on the btree or locking details behind it.
type DataContainer interface {
	Get(key []byte, rv version.ReadVersion) (*store.Entry, bool)
	MostRecent(key []byte) (*store.Entry, bool)
	Put(key []byte, value []byte, wv version.WriteVersion)
	Remove(key []byte, wv version.WriteVersion)
	RecordReader(key []byte, readerVersion version.Version)
}
