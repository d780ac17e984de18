// Package commitmgr bridges the Sorted Transaction Queue and the
// Commit Log: it is the only component allowed to move a transaction
// from "prepared" to "linked into the commit log", which is what
// keeps the sequence of vectors handed to the log monotonic under the
// local projection.
package commitmgr

import (
	"github.com/cloudtm/gmu/internal/commitlog"
	"github.com/cloudtm/gmu/internal/queue"
	"github.com/cloudtm/gmu/internal/version"
)

// Manager bridges (C) Sorted Transaction Queue and (B) Commit Log.
type Manager struct {
	queue *queue.SortedQueue
	log   *commitlog.CommitLog
}

func New(q *queue.SortedQueue, log *commitlog.CommitLog) *Manager {
	return &Manager{queue: q, log: log}
}

// PrepareTransaction enqueues tx into the sorted queue at its
// prepare-version.
func (m *Manager) PrepareTransaction(txID string, prepareVersion version.Version) *queue.TransactionEntry {
	return m.queue.Enqueue(txID, prepareVersion)
}

// PrepareReadOnlyTransaction is a documented no-op: read-only
// transactions never need ordering against writers, so they skip the
// queue entirely and can never block on it.
func (m *Manager) PrepareReadOnlyTransaction(txID string) {}

// CommitTransaction re-anchors entry at commitVersion (reordering the
// queue) and transitions it to READY_TO_COMMIT. Callers must only call
// this once every write-owner's prepare vote has been merged into
// commitVersion.
func (m *Manager) CommitTransaction(entry *queue.TransactionEntry, commitVersion version.Version) error {
	if err := m.queue.Reorder(entry, commitVersion); err != nil {
		return err
	}
	return m.queue.MarkReadyToCommit(entry)
}

// GetTransactionsToCommit returns the contiguous READY_TO_COMMIT
// prefix at the head of the queue, in commit order.
func (m *Manager) GetTransactionsToCommit() []*queue.TransactionEntry {
	return m.queue.ReadyPrefix()
}

// TransactionCommitted links batch into the commit log and drains each
// corresponding queue entry. It is safe to call twice with overlapping
// batches: the commit log dedupes by tx_id, and entries already
// drained are silently skipped.
func (m *Manager) TransactionCommitted(batch []commitlog.CommittedTransaction) error {
	if err := m.log.InsertNewCommittedVersions(batch); err != nil {
		return err
	}
	for _, ct := range batch {
		entry, ok := m.queue.Get(ct.TxID)
		if !ok {
			continue
		}
		m.queue.MarkCommitted(entry)
		if err := m.queue.DrainCommitted(entry); err != nil {
			return err
		}
	}
	return nil
}

// RollbackTransaction removes tx's entry from the queue and releases
// any caller blocked in AwaitUntilReadyToCommit.
func (m *Manager) RollbackTransaction(entry *queue.TransactionEntry) error {
	return m.queue.Rollback(entry)
}
