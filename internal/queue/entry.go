package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cloudtm/gmu/internal/version"
)

// TransactionEntry is a node in the SortedQueue. Its ordering fields
// (prepareVersion, concurrentClock) are only ever mutated by the
// owning SortedQueue under its mutex; state is an atomic so callers
// can read it without taking that lock. readyCh is a one-shot latch:
// it closes exactly once, when the entry becomes both READY_TO_COMMIT
// and the head of the queue, or when the entry is rolled back, so a
// burst of unrelated queue activity never wakes an entry whose turn
// has not come.
type TransactionEntry struct {
	TxID            string
	prepareVersion  version.Version
	concurrentClock uint64
	state           atomic.Int32
	readyCh         chan struct{}
	awoken          bool
	index           int // maintained by container/heap
}

func newEntry(txID string, prepareVersion version.Version, concurrentClock uint64) *TransactionEntry {
	e := &TransactionEntry{
		TxID:            txID,
		prepareVersion:  prepareVersion,
		concurrentClock: concurrentClock,
		readyCh:         make(chan struct{}),
	}
	e.state.Store(int32(Pending))
	return e
}

// State returns the entry's current state. Safe to call without
// holding the owning queue's lock.
func (e *TransactionEntry) State() State {
	return State(e.state.Load())
}

// PrepareVersion returns the vector this entry is currently ordered
// by. It changes only through SortedQueue.Reorder.
func (e *TransactionEntry) PrepareVersion() version.Version {
	return e.prepareVersion
}

// ConcurrentClock returns the monotonic local counter assigned at
// enqueue, used to tie-break entries sharing a prepare version.
func (e *TransactionEntry) ConcurrentClock() uint64 {
	return e.concurrentClock
}

// AwaitUntilReadyToCommit blocks until this entry is READY_TO_COMMIT
// and at the head of its queue (i.e. it is this transaction's turn to
// commit), or until timeout elapses, or ctx is cancelled, or the entry
// is rolled back while the caller waits. A negative timeout waits
// forever.
func (e *TransactionEntry) AwaitUntilReadyToCommit(ctx context.Context, timeout time.Duration) error {
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-e.readyCh:
		if e.State() == RolledBack {
			return ErrRolledBack
		}
		return nil
	case <-timeoutCh:
		return ErrTimeout
	case <-ctx.Done():
		return ErrInterrupted
	}
}
