package queue

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/cloudtm/gmu/internal/version"
)

// SortedQueue is the per-node ordering structure that sequences
// prepared transactions by prepare-version and releases them to
// commit in a globally consistent order. A single mutex guards
// ordering and every entry's state transition; each entry owns its
// own one-shot wait latch so waking one transaction never disturbs
// another's wait.
type SortedQueue struct {
	mu    sync.Mutex
	h     entryHeap
	byTx  map[string]*TransactionEntry
	clock atomic.Uint64
}

func New() *SortedQueue {
	q := &SortedQueue{byTx: make(map[string]*TransactionEntry)}
	heap.Init(&q.h)
	return q
}

// Enqueue inserts a new PENDING entry ordered by prepareVersion,
// assigning it the next concurrent-clock value. Re-enqueuing a tx_id
// that is already present returns the existing entry instead of
// inserting a duplicate, so a retried prepare RPC is idempotent.
func (q *SortedQueue) Enqueue(txID string, prepareVersion version.Version) *TransactionEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byTx[txID]; ok {
		return existing
	}

	e := newEntry(txID, prepareVersion, q.clock.Add(1))
	heap.Push(&q.h, e)
	q.byTx[txID] = e
	q.wakeHeadIfReadyLocked()
	return e
}

// MarkReadyToCommit transitions entry from PENDING to READY_TO_COMMIT.
// If entry is the head of the queue, its waiters are woken.
func (q *SortedQueue) MarkReadyToCommit(entry *TransactionEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.State() != Pending {
		return ErrWrongState
	}
	entry.state.Store(int32(ReadyToCommit))
	q.wakeHeadIfReadyLocked()
	return nil
}

// Get looks up the entry for txID, if the queue still holds one.
func (q *SortedQueue) Get(txID string) (*TransactionEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byTx[txID]
	return e, ok
}

// NextReady returns the head of the queue iff it is READY_TO_COMMIT.
func (q *SortedQueue) NextReady() (*TransactionEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.h) == 0 {
		return nil, false
	}
	head := q.h[0]
	if head.State() != ReadyToCommit {
		return nil, false
	}
	return head, true
}

// ReadyPrefix returns the contiguous READY_TO_COMMIT prefix starting
// at the head, in commit order.
func (q *SortedQueue) ReadyPrefix() []*TransactionEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	// heap order is not fully sorted beyond the head; peel the head
	// off a scratch copy to read entries in true commit order without
	// mutating the real queue.
	scratch := make(entryHeap, len(q.h))
	copy(scratch, q.h)
	heap.Init(&scratch)

	var prefix []*TransactionEntry
	for len(scratch) > 0 && scratch[0].State() == ReadyToCommit {
		prefix = append(prefix, heap.Pop(&scratch).(*TransactionEntry))
	}
	return prefix
}

// Reorder updates entry's prepare-version (used when a transaction's
// commit-version is computed and differs from its original
// prepare-version) and re-establishes heap order.
func (q *SortedQueue) Reorder(entry *TransactionEntry, newPrepareVersion version.Version) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.index < 0 || entry.index >= len(q.h) || q.h[entry.index] != entry {
		return ErrNotFound
	}
	entry.prepareVersion = newPrepareVersion
	heap.Fix(&q.h, entry.index)
	q.wakeHeadIfReadyLocked()
	return nil
}

// DrainCommitted removes entry, which must be the head and COMMITTED,
// from the queue, then wakes the new head if it is ready.
func (q *SortedQueue) DrainCommitted(entry *TransactionEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.h) == 0 || q.h[0] != entry {
		return ErrNotHead
	}
	if entry.State() != Committed {
		return ErrWrongState
	}
	heap.Pop(&q.h)
	delete(q.byTx, entry.TxID)
	q.wakeHeadIfReadyLocked()
	return nil
}

// MarkCommitted transitions entry to COMMITTED. Callers must do this
// before DrainCommitted.
func (q *SortedQueue) MarkCommitted(entry *TransactionEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry.state.Store(int32(Committed))
}

// Rollback removes entry regardless of its position in the queue and
// releases its latch, unblocking any caller in AwaitUntilReadyToCommit
// with ErrRolledBack.
func (q *SortedQueue) Rollback(entry *TransactionEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.index < 0 || entry.index >= len(q.h) || q.h[entry.index] != entry {
		return ErrNotFound
	}
	heap.Remove(&q.h, entry.index)
	delete(q.byTx, entry.TxID)
	entry.state.Store(int32(RolledBack))
	if !entry.awoken {
		entry.awoken = true
		close(entry.readyCh)
	}
	q.wakeHeadIfReadyLocked()
	return nil
}

// Len reports the number of entries currently queued.
func (q *SortedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

func (q *SortedQueue) wakeHeadIfReadyLocked() {
	if len(q.h) == 0 {
		return
	}
	head := q.h[0]
	if head.State() == ReadyToCommit && !head.awoken {
		head.awoken = true
		close(head.readyCh)
	}
}
