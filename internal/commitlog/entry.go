package commitlog

import "github.com/cloudtm/gmu/internal/version"

// entry is one link of the commit log's append-at-head-only chain. An
// entry is built once at commit time and never mutated afterward;
// prev is set exactly once, at construction.
type entry struct {
	version    version.Version
	subVersion uint64
	keys       [][]byte // nil means "all keys" (a ClearCommand)
	prev       *entry
}

// CommittedTransaction is the unit the Transaction Commit Manager hands
// to the commit log once a transaction's queue entry transitions to
// COMMITTED.
type CommittedTransaction struct {
	TxID            string
	CommitVersion   version.Version
	SubVersion      uint64
	Modifications   [][]byte // nil denotes a ClearCommand (all keys)
	ConcurrentClock uint64
}
