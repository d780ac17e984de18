// Package store implements the Data Container collaborator the core
// consumes through a small interface: a multi-version key-value table
// that can be read under a ReadVersion and written under a
// WriteVersion.
//
// It generalizes the teacher's single-timestamp MvStore
// (github.com/tidwall/btree over a (key, ts) pair) to vector
// versions. Per design note 9's recommended rearchitecture, entries
// are ordered by an append-only, monotonically increasing sequence
// number rather than a mutable back-pointer, so a lookup for a key
// walks newest-to-oldest without needing to compare vectors for
// ordering — only for visibility.
package store

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/cloudtm/gmu/internal/version"
)

// Entry is one multi-version cell: a key's value as of a specific
// commit version, plus the highest version among transactions that
// have read it (the "maximum_transaction_version" of spec.md §4.E).
type Entry struct {
	Key             []byte
	CommitVersion   version.Version
	SubVersion      uint64
	Value           []byte
	Deleted         bool
	MaxReaderExists bool
	MaxReader       version.Version
	seq             uint64
}

type item struct {
	key []byte
	seq uint64
	e   *Entry
}

// Store is the in-memory multi-version table. All mutating operations
// and Snapshot run under lock; each Snapshot holds an O(1)
// copy-on-write clone of the backing btree, so concurrent readers
// never block writers or each other.
type Store struct {
	mu         sync.RWMutex
	tree       *btree.BTreeG[item]
	seq        atomic.Uint64
	localIndex int
}

func less(a, b item) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	// newest (highest seq) first within a key.
	return a.seq > b.seq
}

// New builds an empty store bound to localIndex, the dense index of
// this node in the cluster snapshot its commit log uses. A store only
// ever interprets ReadVersions generated against that same snapshot.
func New(localIndex int) *Store {
	return &Store{tree: btree.NewBTreeG(less), localIndex: localIndex}
}

// Put inserts a new version of key; existing versions are never
// mutated, matching the commit log's append-only discipline.
func (s *Store) Put(key []byte, value []byte, wv version.WriteVersion) {
	s.putEntry(&Entry{
		Key:           key,
		CommitVersion: wv.Vector,
		SubVersion:    wv.SubVersion,
		Value:         value,
	})
}

// Remove records a tombstone version of key.
func (s *Store) Remove(key []byte, wv version.WriteVersion) {
	s.putEntry(&Entry{
		Key:           key,
		CommitVersion: wv.Vector,
		SubVersion:    wv.SubVersion,
		Deleted:       true,
	})
}

func (s *Store) putEntry(e *Entry) {
	e.seq = s.seq.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Set(item{key: e.Key, seq: e.seq, e: e})
}

// Get returns the value of key visible under rv: the newest entry
// whose commit-version is <= rv.Vector and not marked not-visible.
// Entries with a higher commit-version that ARE visible, or that are
// merely not-the-most-recent, never shadow this result — that is the
// caller's (component E's) read-old-value check, not the store's.
//
// An entry whose commit-version is exactly equal to rv.Vector is only
// visible at sub_version 0: an equal vector with a higher sub_version
// is a coincident commit from the same batch, not a causal
// predecessor, and the not-visible set is the normal way that gets
// excluded — this is a second, independent guard against the same
// case for a ReadVersion built without one (e.g. version.ConvertToRead
// called directly).
func (s *Store) Get(key []byte, rv version.ReadVersion) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Entry
	s.tree.Ascend(item{key: key, seq: ^uint64(0)}, func(it item) bool {
		if !bytes.Equal(it.key, key) {
			return false
		}
		e := it.e
		if rv.IsNotVisible(e.CommitVersion.Get(s.localIndex), e.SubVersion) {
			return true
		}
		order, err := version.Compare(e.CommitVersion, rv.Vector)
		if err != nil || !order.LessOrEqual() {
			return true
		}
		if order == version.Equal && e.SubVersion > 0 {
			return true
		}
		found = e
		return false
	})
	if found == nil || found.Deleted {
		return nil, false
	}
	return found, true
}

// MostRecent returns the newest version stored for key, regardless of
// visibility — used by component E's read-old-value rule, which must
// detect staleness even for versions a transaction's own snapshot
// cannot see.
func (s *Store) MostRecent(key []byte) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Entry
	s.tree.Ascend(item{key: key, seq: ^uint64(0)}, func(it item) bool {
		if !bytes.Equal(it.key, key) {
			return false
		}
		found = it.e
		return false
	})
	return found, found != nil
}

// RecordReader folds readerVersion into key's most recent entry's
// MaxReader, so a future reader can collect it as the entry's
// maximum_transaction_version.
func (s *Store) RecordReader(key []byte, readerVersion version.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target item
	found := false
	s.tree.Ascend(item{key: key, seq: ^uint64(0)}, func(it item) bool {
		if !bytes.Equal(it.key, key) {
			return false
		}
		target = it
		found = true
		return false
	})
	if !found {
		return
	}
	if !target.e.MaxReaderExists {
		target.e.MaxReader = readerVersion
		target.e.MaxReaderExists = true
		return
	}
	target.e.MaxReader = version.MergeMax(target.e.MaxReader, readerVersion)
}

// Snapshot returns an O(1) copy-on-write clone usable by a single
// transaction's reads without locking against concurrent writers.
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{tree: s.tree.Copy(), localIndex: s.localIndex}
}

