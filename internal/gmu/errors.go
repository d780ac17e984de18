package gmu

import "errors"

var (
	// ErrReadOldValue is raised by the read path inside a read-write
	// transaction when a key's visible entry is not the most recent one
	// stored for that key: a writer must always read the latest value,
	// so this is a serializability violation that forces a rollback.
	ErrReadOldValue = errors.New("gmu: read returned a stale value inside a read-write transaction, must roll back")
	// ErrReadWriteConflict is raised by Prepare's read-set validation
	// when a locally-owned key's current value no longer matches what
	// this transaction read.
	ErrReadWriteConflict = errors.New("gmu: read-set validation failed, a read key was modified concurrently")
	// ErrReadOnlyTransaction is returned by any write operation called
	// on a transaction opened read-only.
	ErrReadOnlyTransaction = errors.New("gmu: operation not permitted on a read-only transaction")
	// ErrNotPrepared is returned by Commit when called before Prepare.
	ErrNotPrepared = errors.New("gmu: transaction must be prepared before it can be committed")
)
