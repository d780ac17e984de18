package gmu

import (
	"sync"

	"github.com/cloudtm/gmu/internal/commitlog"
	"github.com/cloudtm/gmu/internal/commitmgr"
)

// Committer applies committed write-sets to the data container for a
// single Node. SortedQueue only wakes the latch of the entry currently
// at the head of the queue, and mu lets only one Transaction.Commit
// call run drain() at a time (a drain that removes the head can wake
// the next head's Commit, which then waits on mu); the running call is
// this batch's natural leader and is responsible for applying every other transaction
// already sitting in the contiguous READY_TO_COMMIT prefix behind it,
// not just its own. pending lets the leader look up those other
// transactions' actual write-sets by tx_id.
type Committer struct {
	mu      sync.Mutex
	mgr     *commitmgr.Manager
	data    DataContainer
	pending map[string]*Transaction
}

// NewCommitter builds a Committer bound to mgr's queue/log pair and
// the data container it applies writes to.
func NewCommitter(mgr *commitmgr.Manager, data DataContainer) *Committer {
	return &Committer{
		mgr:     mgr,
		data:    data,
		pending: make(map[string]*Transaction),
	}
}

// track registers tx so a later drain can find its write-set.
func (c *Committer) track(tx *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[tx.txID] = tx
}

// drain applies every transaction in the current READY_TO_COMMIT
// prefix, links them into the commit log as one batch, and forgets
// them. It is safe to call redundantly: a transaction already applied
// and drained from the queue is simply absent from the next prefix.
func (c *Committer) drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := c.mgr.GetTransactionsToCommit()
	if len(prefix) == 0 {
		return nil
	}

	batch := make([]commitlog.CommittedTransaction, 0, len(prefix))
	var nextSubVersion uint64
	for _, entry := range prefix {
		tx, ok := c.pending[entry.TxID]
		if !ok {
			continue
		}
		subVersion := nextSubVersion
		nextSubVersion++
		tx.applyWrites(subVersion)
		batch = append(batch, commitlog.CommittedTransaction{
			TxID:            tx.txID,
			CommitVersion:   tx.commitVersion,
			SubVersion:      subVersion,
			Modifications:   tx.modifiedKeys(),
			ConcurrentClock: entry.ConcurrentClock(),
		})
	}
	if len(batch) == 0 {
		return nil
	}

	if err := c.mgr.TransactionCommitted(batch); err != nil {
		return err
	}
	for _, ct := range batch {
		delete(c.pending, ct.TxID)
	}
	return nil
}
