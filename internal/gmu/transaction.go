// Package gmu implements the Entry-Wrapping Protocol: the per-transaction
// state machine that stamps reads with a snapshot vector, validates the
// read-set at prepare, merges per-owner commit votes, and applies
// committed writes to the data container. It is grounded on the
// teacher's pkg/txn.Txn (read/write-set workspace, Prepare/Commit/
// Rollback over an Oracle) generalized from a single HLC timestamp to
// the vector versions of internal/version, and from a single-node
// Oracle to the multi-node Commit Manager of internal/commitmgr.
package gmu

import (
	"context"
	"time"

	"github.com/cloudtm/gmu/internal/commitlog"
	"github.com/cloudtm/gmu/internal/commitmgr"
	"github.com/cloudtm/gmu/internal/queue"
	"github.com/cloudtm/gmu/internal/version"
)

type writeOp struct {
	value   []byte
	deleted bool
}

type readRecord struct {
	version    version.Version
	subVersion uint64
}

// Transaction is one in-flight unit of work: a read-only snapshot
// reader, or a read-write transaction that accumulates a write-set and
// goes through Prepare/Commit (or Rollback) exactly once.
type Transaction struct {
	txID     string
	readOnly bool
	self     string

	gen       *version.Generator
	log       *commitlog.CommitLog
	mgr       *commitmgr.Manager
	committer *Committer
	data      DataContainer
	dist      Distribution
	timeout   time.Duration

	snapshot        version.Version
	readVersion     version.ReadVersion
	haveReadVersion bool

	readSet  map[string]readRecord
	writeSet map[string]writeOp

	keysReadInCommand     [][]byte
	alreadyReadOnThisNode bool

	entry         *queue.TransactionEntry
	commitVersion version.Version
	prepared      bool
}

// New builds a transaction bound to self's collaborators. committer may
// be nil for a transaction that will never call Commit (e.g. a
// read-only transaction built outside a Node).
func New(
	txID string,
	readOnly bool,
	self string,
	gen *version.Generator,
	log *commitlog.CommitLog,
	mgr *commitmgr.Manager,
	committer *Committer,
	data DataContainer,
	dist Distribution,
	timeout time.Duration,
) *Transaction {
	return &Transaction{
		txID:      txID,
		readOnly:  readOnly,
		self:      self,
		gen:       gen,
		log:       log,
		mgr:       mgr,
		committer: committer,
		data:      data,
		dist:      dist,
		timeout:   timeout,
		snapshot:  gen.GenerateUnknown(),
		readSet:   make(map[string]readRecord),
		writeSet:  make(map[string]writeOp),
	}
}

// TxID returns the transaction's identifier.
func (tx *Transaction) TxID() string { return tx.txID }

// AlreadyReadOnThisNode reports whether any read in this transaction
// resolved to a key this node owns.
func (tx *Transaction) AlreadyReadOnThisNode() bool { return tx.alreadyReadOnThisNode }

// Get returns key's value visible to this transaction's snapshot. A
// read-write transaction first checks its own write-set.
func (tx *Transaction) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	tx.keysReadInCommand = tx.keysReadInCommand[:0]
	found, value, deleted, err := tx.readKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found || deleted {
		return nil, false, nil
	}
	return value, true, nil
}

// Put stages key=value in the write-set, after reading key's current
// value to enforce the read-old-value rule and collect its
// maximum_transaction_version.
func (tx *Transaction) Put(ctx context.Context, key []byte, value []byte) error {
	if tx.readOnly {
		return ErrReadOnlyTransaction
	}
	tx.keysReadInCommand = tx.keysReadInCommand[:0]
	if _, _, _, err := tx.readKey(ctx, key); err != nil {
		return err
	}
	tx.writeSet[string(key)] = writeOp{value: append([]byte(nil), value...)}
	return nil
}

// Remove stages a tombstone for key in the write-set.
func (tx *Transaction) Remove(ctx context.Context, key []byte) error {
	if tx.readOnly {
		return ErrReadOnlyTransaction
	}
	tx.keysReadInCommand = tx.keysReadInCommand[:0]
	if _, _, _, err := tx.readKey(ctx, key); err != nil {
		return err
	}
	tx.writeSet[string(key)] = writeOp{deleted: true}
	return nil
}

// Replace stages value in the write-set and returns the key's prior
// value, the way a compare-and-swap caller needs it.
func (tx *Transaction) Replace(ctx context.Context, key []byte, value []byte) ([]byte, bool, error) {
	if tx.readOnly {
		return nil, false, ErrReadOnlyTransaction
	}
	tx.keysReadInCommand = tx.keysReadInCommand[:0]
	found, prior, deleted, err := tx.readKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	tx.writeSet[string(key)] = writeOp{value: append([]byte(nil), value...)}
	if !found || deleted {
		return nil, false, nil
	}
	return prior, true, nil
}

// readKey is the shared read path behind Get/Put/Remove/Replace: it
// resolves the transaction's snapshot on first use, reads key under
// that snapshot (or the transaction's own uncommitted write), enforces
// the read-old-value rule, records the key in the read-set, and folds
// the entry's maximum_transaction_version into the snapshot. The
// read-old-value rule only looks at writes already staged before this
// call — len(tx.writeSet) — never the write this call is itself the
// read-before-write half of, since that write has not been staged yet.
func (tx *Transaction) readKey(ctx context.Context, key []byte) (found bool, value []byte, deleted bool, err error) {
	if !tx.readOnly {
		if op, ok := tx.writeSet[string(key)]; ok {
			return !op.deleted, op.value, op.deleted, nil
		}
	}

	if err := tx.ensureSnapshot(ctx); err != nil {
		return false, nil, false, err
	}

	entry, ok := tx.data.Get(key, tx.readVersion)
	if ok && !tx.readOnly && len(tx.writeSet) > 0 {
		mostRecent, hasMostRecent := tx.data.MostRecent(key)
		if hasMostRecent && !sameEntryVersion(mostRecent.CommitVersion, mostRecent.SubVersion, entry.CommitVersion, entry.SubVersion) {
			return false, nil, false, ErrReadOldValue
		}
	}

	tx.keysReadInCommand = append(tx.keysReadInCommand, key)

	var collected []version.Version
	if ok {
		collected = append(collected, tx.snapshot)
		if entry.MaxReaderExists {
			collected = append(collected, entry.MaxReader)
		}
	}

	if !tx.readOnly {
		if ok {
			tx.readSet[string(key)] = readRecord{version: entry.CommitVersion, subVersion: entry.SubVersion}
		}
		isOwner, distErr := tx.dist.IsLocalOwner(key, tx.self)
		if distErr == nil && isOwner {
			tx.alreadyReadOnThisNode = true
			if ok {
				tx.data.RecordReader(key, tx.snapshot)
			}
		}
	}

	if len(collected) > 0 {
		tx.snapshot = version.MergeMax(collected...)
	}

	if !ok {
		return false, nil, false, nil
	}
	if entry.Deleted {
		return true, nil, true, nil
	}
	return true, entry.Value, false, nil
}

// ensureSnapshot implements the snapshot-acquisition rule: the first
// read on this node resolves an unknown snapshot_version into a
// concrete, locally-anchored one and computes its ReadVersion; every
// later read just waits for that already-acquired snapshot to be
// installed before serving a key.
func (tx *Transaction) ensureSnapshot(ctx context.Context) error {
	if !tx.haveReadVersion {
		// The first read has no prior bound to walk the chain against:
		// it wants the node's current committed snapshot outright, the
		// same thing GetCurrentVersion returns.
		resolved, err := tx.log.GetAvailableVersionLessThan(nil)
		if err != nil {
			return err
		}
		rv, err := tx.log.GetReadVersion(&resolved)
		if err != nil {
			return err
		}
		tx.snapshot = resolved
		tx.readVersion = rv
		tx.haveReadVersion = true
		return nil
	}

	ok, err := tx.log.WaitForVersion(ctx, tx.snapshot, tx.timeout)
	if err != nil {
		return err
	}
	if !ok {
		return queue.ErrTimeout
	}
	return nil
}

func sameEntryVersion(av version.Version, asub uint64, bv version.Version, bsub uint64) bool {
	if asub != bsub {
		return false
	}
	order, err := version.Compare(av, bv)
	return err == nil && order == version.Equal
}

// Prepare validates the read-set against the data container's current
// state for every read key this node owns, then enqueues the
// transaction in the sorted queue at its (still merely local) prepare
// version. Read-only transactions skip the queue entirely (spec.md
// §4.E's "Transaction Commit Manager" rule for PrepareReadOnlyTransaction).
func (tx *Transaction) Prepare(ctx context.Context) error {
	if tx.readOnly {
		tx.mgr.PrepareReadOnlyTransaction(tx.txID)
		tx.prepared = true
		return nil
	}

	if err := tx.validateReadSet(); err != nil {
		return err
	}

	prepareVersion := tx.gen.UpdatedVersion(tx.snapshot)
	tx.entry = tx.mgr.PrepareTransaction(tx.txID, prepareVersion)
	tx.prepared = true
	return nil
}

// validateReadSet re-checks every read-set key this node owns against
// the data container's most recent entry: if either the version or the
// sub-version moved since the read, a concurrent writer beat this
// transaction to the key and it must abort (spec.md §4.E step 3,
// "Prepare").
func (tx *Transaction) validateReadSet() error {
	for k, rec := range tx.readSet {
		key := []byte(k)
		isOwner, err := tx.dist.IsLocalOwner(key, tx.self)
		if err != nil || !isOwner {
			continue
		}
		current, ok := tx.data.MostRecent(key)
		if !ok {
			continue
		}
		if !sameEntryVersion(current.CommitVersion, current.SubVersion, rec.version, rec.subVersion) {
			return ErrReadWriteConflict
		}
	}
	return nil
}

// Commit computes the transaction's final commit version from the
// merged write-owner votes, hands it to the Commit Manager, waits its
// turn at the head of the queue, and then drains every ready entry
// (itself and any transactions already waiting behind it) through the
// Committer. Read-only transactions have nothing to commit and return
// immediately.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.readOnly {
		return nil
	}
	if !tx.prepared {
		return ErrNotPrepared
	}
	if len(tx.writeSet) == 0 {
		return tx.mgr.RollbackTransaction(tx.entry)
	}

	owners, err := tx.writeOwners()
	if err != nil {
		return err
	}

	commitVersion, err := tx.calculateCommitVersion(owners)
	if err != nil {
		return err
	}
	tx.commitVersion = commitVersion

	if err := tx.mgr.CommitTransaction(tx.entry, commitVersion); err != nil {
		return err
	}

	tx.committer.track(tx)

	if err := tx.entry.AwaitUntilReadyToCommit(ctx, tx.timeout); err != nil {
		return err
	}

	return tx.committer.drain()
}

// Rollback withdraws the transaction from the queue, releasing any
// caller blocked waiting for it. It is a no-op for read-only
// transactions or transactions that never entered the queue.
func (tx *Transaction) Rollback() error {
	if tx.readOnly || tx.entry == nil {
		return nil
	}
	return tx.mgr.RollbackTransaction(tx.entry)
}

// writeOwners collects the distinct write owners across every key in
// the write-set.
func (tx *Transaction) writeOwners() ([]string, error) {
	seen := make(map[string]struct{})
	var owners []string
	for k := range tx.writeSet {
		ks, err := tx.dist.WriteOwners([]byte(k))
		if err != nil {
			return nil, err
		}
		for _, o := range ks {
			if _, dup := seen[o]; dup {
				continue
			}
			seen[o] = struct{}{}
			owners = append(owners, o)
		}
	}
	return owners, nil
}

// calculateCommitVersion advances each write-owner's coordinate one
// past the greater of its current commit-log position and this
// transaction's prepare vector. This module runs a single in-process
// node per Node value, so the local commit log's own head is exactly
// that owner's "current max" for any owner this node coordinates for;
// a real multi-node deployment would instead collect this per-owner
// value as a prepare vote returned over the wired transport.
func (tx *Transaction) calculateCommitVersion(owners []string) (version.Version, error) {
	snapshot := tx.gen.CurrentSnapshot()
	prepareVersion := tx.gen.UpdatedVersion(tx.snapshot)

	committed, err := tx.log.GetCurrentVersion()
	if err != nil {
		return version.Version{}, err
	}

	current := tx.gen.GenerateNew()
	for _, owner := range owners {
		idx := snapshot.IndexOf(owner)
		if idx < 0 {
			continue
		}
		cur := committed.Get(idx)
		prep := prepareVersion.Get(idx)
		next := cur
		if prep > next {
			next = prep
		}
		current = current.WithCoord(idx, next+1)
	}
	return tx.gen.MergeAndMax(prepareVersion, current), nil
}

// modifiedKeys returns the write-set's keys in the encoding the commit
// log stores (nil signals a ClearCommand over every key, never produced
// by this protocol).
func (tx *Transaction) modifiedKeys() [][]byte {
	keys := make([][]byte, 0, len(tx.writeSet))
	for k := range tx.writeSet {
		keys = append(keys, []byte(k))
	}
	return keys
}

// applyWrites installs this transaction's write-set into the data
// container under its final commit version, tie-broken by subVersion.
func (tx *Transaction) applyWrites(subVersion uint64) {
	wv := version.ConvertToWrite(tx.commitVersion, subVersion)
	for k, op := range tx.writeSet {
		key := []byte(k)
		if op.deleted {
			tx.data.Remove(key, wv)
			continue
		}
		tx.data.Put(key, op.value, wv)
	}
}
