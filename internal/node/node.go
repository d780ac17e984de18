// Package node wires every component of the core (version, commitlog,
// queue, commitmgr, store, cluster, transport, metrics) into a single
// runnable unit, generalizing the teacher's pkg/db.Db (Oracle +
// Executor + MvStore behind Update/View) to a cluster member whose
// collaborators are the GMU core's interfaces rather than concrete
// types.
package node

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cloudtm/gmu/internal/cluster"
	"github.com/cloudtm/gmu/internal/commitlog"
	"github.com/cloudtm/gmu/internal/commitmgr"
	"github.com/cloudtm/gmu/internal/gmu"
	"github.com/cloudtm/gmu/internal/metrics"
	"github.com/cloudtm/gmu/internal/queue"
	"github.com/cloudtm/gmu/internal/store"
	"github.com/cloudtm/gmu/internal/transport"
	"github.com/cloudtm/gmu/internal/version"
)

// DefaultTransactionTimeout mirrors the teacher's transaction-level
// timeout constant, generalized from a fixed duration applied to a
// single wait into the bound every AwaitUntilReadyToCommit call and
// every commit-log wait uses.
const DefaultTransactionTimeout = 5 * time.Second

// Node is one member of the in-process cluster: it owns the local
// Commit Log, Sorted Queue, Commit Manager, Data Container and
// Committer, and exposes Update/View the way the teacher's Db does,
// generalized to the vector-version protocol of internal/gmu.
type Node struct {
	id      string
	stopped atomic.Bool

	gen       *version.Generator
	log       *commitlog.CommitLog
	queue     *queue.SortedQueue
	mgr       *commitmgr.Manager
	data      *store.Store
	committer *gmu.Committer
	ring      *cluster.Ring
	endpoint  *transport.Endpoint
	metrics   *metrics.Metrics
	logger    *zap.Logger
	timeout   time.Duration
}

// New builds a Node for selfID within snapshot, placing keys with ring
// and addressing peers through bus. metrics and logger are this node's
// own isolated instances (see internal/metrics.New's doc comment on why
// every node gets its own Prometheus registry).
func New(selfID string, snapshot *version.ClusterSnapshot, ring *cluster.Ring, bus *transport.Bus, m *metrics.Metrics, logger *zap.Logger) *Node {
	gen := version.NewGenerator(snapshot)
	log := commitlog.New(gen, selfID)
	q := queue.New()
	mgr := commitmgr.New(q, log)
	data := store.New(snapshot.IndexOf(selfID))
	committer := gmu.NewCommitter(mgr, data)

	return &Node{
		id:        selfID,
		gen:       gen,
		log:       log,
		queue:     q,
		mgr:       mgr,
		data:      data,
		committer: committer,
		ring:      ring,
		endpoint:  bus.Register(selfID),
		metrics:   m,
		logger:    logger,
		timeout:   DefaultTransactionTimeout,
	}
}

// ID returns this node's cluster identifier.
func (n *Node) ID() string { return n.id }

// Endpoint exposes the node's transport endpoint, e.g. for a caller
// that wants to drive a manual Prepare/Commit/Rollback message
// exchange across nodes instead of going through Update/View.
func (n *Node) Endpoint() *transport.Endpoint { return n.endpoint }

// Begin opens a new transaction against this node's collaborators.
func (n *Node) Begin(txID string, readOnly bool) *gmu.Transaction {
	return gmu.New(txID, readOnly, n.id, n.gen, n.log, n.mgr, n.committer, n.data, n.ring, n.timeout)
}

// Update runs fn inside a read-write transaction, committing on
// success and rolling back on any error fn or Prepare returns. An
// error from Commit is returned without a rollback.
func (n *Node) Update(ctx context.Context, txID string, fn func(tx *gmu.Transaction) error) error {
	if n.stopped.Load() {
		return ErrStopped
	}

	tx := n.Begin(txID, false)
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return errors.Trace(err)
	}
	if err := tx.Prepare(ctx); err != nil {
		n.metrics.RecordAbort("prepare_failed")
		_ = tx.Rollback()
		return errors.Annotate(err, "prepare")
	}
	if err := tx.Commit(ctx); err != nil {
		n.metrics.RecordAbort("commit_failed")
		return errors.Annotate(err, "commit")
	}
	n.metrics.CommitsApplied.Inc()
	return nil
}

// View runs fn inside a read-only transaction. There is nothing to
// commit or roll back: a read-only transaction never enters the queue.
func (n *Node) View(ctx context.Context, txID string, fn func(tx *gmu.Transaction) error) error {
	if n.stopped.Load() {
		return ErrStopped
	}
	tx := n.Begin(txID, true)
	return fn(tx)
}

// CommitLogSnapshot returns the node's current committed version, for
// diagnostics and tests.
func (n *Node) CommitLogSnapshot() (version.Version, error) {
	return n.log.GetCurrentVersion()
}

// DumpCommitLog writes this node's commit log chain to w, newest entry
// first. Diagnostic only.
func (n *Node) DumpCommitLog(w io.Writer) error {
	return n.log.DumpTo(w)
}

// Stop disables the node's commit log: Update and View return
// ErrStopped from then on, and a transaction still in flight gets the
// commit log's ErrIllegalState the next time it consults the commit
// log (a snapshot read or its commit), so no new version becomes
// visible.
func (n *Node) Stop() {
	if n.stopped.CompareAndSwap(false, true) {
		n.log.Stop()
		n.logger.Info("node stopped", zap.String("node_id", n.id))
	}
}
