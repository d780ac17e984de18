package gmu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudtm/gmu/internal/cluster"
	"github.com/cloudtm/gmu/internal/commitlog"
	"github.com/cloudtm/gmu/internal/commitmgr"
	"github.com/cloudtm/gmu/internal/queue"
	"github.com/cloudtm/gmu/internal/store"
	"github.com/cloudtm/gmu/internal/version"
)

type harness struct {
	self      string
	gen       *version.Generator
	log       *commitlog.CommitLog
	mgr       *commitmgr.Manager
	data      *store.Store
	dist      *cluster.Ring
	committer *Committer
}

func newHarness(nodes []string, self string) *harness {
	snap := version.NewClusterSnapshot(1, nodes)
	gen := version.NewGenerator(snap)
	log := commitlog.New(gen, self)
	q := queue.New()
	mgr := commitmgr.New(q, log)
	data := store.New(snap.IndexOf(self))

	ring := cluster.NewRing(len(nodes))
	for _, n := range nodes {
		ring.AddNode(n)
	}

	return &harness{
		self:      self,
		gen:       gen,
		log:       log,
		mgr:       mgr,
		data:      data,
		dist:      ring,
		committer: NewCommitter(mgr, data),
	}
}

func (h *harness) begin(txID string, readOnly bool) *Transaction {
	return New(txID, readOnly, h.self, h.gen, h.log, h.mgr, h.committer, h.data, h.dist, time.Second)
}

func TestSingleWriterCommitIsVisibleAfterward(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx := h.begin("tx1", false)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, tx.Prepare(ctx))
	require.NoError(t, tx.Commit(ctx))

	reader := h.begin("tx2", true)
	val, ok, err := reader.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), val)
}

func TestReadOnlyTransactionCannotWrite(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	ro := h.begin("tx1", true)
	err := ro.Put(ctx, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrReadOnlyTransaction)

	err = ro.Remove(ctx, []byte("k"))
	assert.ErrorIs(t, err, ErrReadOnlyTransaction)

	_, _, err = ro.Replace(ctx, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrReadOnlyTransaction)
}

func TestCommitWithEmptyWriteSetRollsBack(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx := h.begin("tx1", false)
	_, _, err := tx.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.NoError(t, tx.Prepare(ctx))
	require.NoError(t, tx.Commit(ctx))

	assert.Empty(t, h.mgr.GetTransactionsToCommit())
}

func TestReadWriteConflictAbortsPrepare(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx1 := h.begin("tx1", false)
	require.NoError(t, tx1.Put(ctx, []byte("k"), []byte("v0")))
	require.NoError(t, tx1.Prepare(ctx))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := h.begin("tx2", false)
	_, _, err := tx2.Get(ctx, []byte("k"))
	require.NoError(t, err)

	tx3 := h.begin("tx3", false)
	require.NoError(t, tx3.Put(ctx, []byte("k"), []byte("v2")))
	require.NoError(t, tx3.Prepare(ctx))
	require.NoError(t, tx3.Commit(ctx))

	require.NoError(t, tx2.Put(ctx, []byte("k"), []byte("v1")))
	err = tx2.Prepare(ctx)
	assert.ErrorIs(t, err, ErrReadWriteConflict)
}

func TestConcurrentWritersBothCommitInOrder(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx1 := h.begin("tx1", false)
	require.NoError(t, tx1.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx1.Prepare(ctx))

	tx2 := h.begin("tx2", false)
	require.NoError(t, tx2.Put(ctx, []byte("b"), []byte("2")))
	require.NoError(t, tx2.Prepare(ctx))

	done := make(chan error, 2)
	go func() { done <- tx1.Commit(ctx) }()
	go func() { done <- tx2.Commit(ctx) }()

	require.NoError(t, <-done)
	require.NoError(t, <-done)

	reader := h.begin("tx3", true)
	va, ok, err := reader.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), va)

	vb, ok, err := reader.Get(ctx, []byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), vb)
}

func TestRollbackReleasesQueueEntry(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx := h.begin("tx1", false)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("v")))
	require.NoError(t, tx.Prepare(ctx))
	require.NoError(t, tx.Rollback())

	assert.Empty(t, h.mgr.GetTransactionsToCommit())

	tx2 := h.begin("tx2", false)
	require.NoError(t, tx2.Put(ctx, []byte("k"), []byte("v2")))
	require.NoError(t, tx2.Prepare(ctx))
	require.NoError(t, tx2.Commit(ctx))
}

func TestReplaceReturnsPriorValue(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx1 := h.begin("tx1", false)
	require.NoError(t, tx1.Put(ctx, []byte("k"), []byte("old")))
	require.NoError(t, tx1.Prepare(ctx))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := h.begin("tx2", false)
	prior, found, err := tx2.Replace(ctx, []byte("k"), []byte("new"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("old"), prior)
	require.NoError(t, tx2.Prepare(ctx))
	require.NoError(t, tx2.Commit(ctx))

	tx3 := h.begin("tx3", true)
	v, ok, err := tx3.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), v)
}

func TestRemoveMakesKeyInvisible(t *testing.T) {
	h := newHarness([]string{"n0"}, "n0")
	ctx := context.Background()

	tx1 := h.begin("tx1", false)
	require.NoError(t, tx1.Put(ctx, []byte("k"), []byte("v")))
	require.NoError(t, tx1.Prepare(ctx))
	require.NoError(t, tx1.Commit(ctx))

	tx2 := h.begin("tx2", false)
	require.NoError(t, tx2.Remove(ctx, []byte("k")))
	require.NoError(t, tx2.Prepare(ctx))
	require.NoError(t, tx2.Commit(ctx))

	tx3 := h.begin("tx3", true)
	_, ok, err := tx3.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}
