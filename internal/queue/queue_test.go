package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudtm/gmu/internal/version"
)

func gen() *version.Generator {
	return version.NewGenerator(version.NewClusterSnapshot(1, []string{"A"}))
}

func vec(g *version.Generator, n int64) version.Version {
	return g.GenerateNew().WithCoord(0, n)
}

func TestEnqueueIsIdempotentByTxID(t *testing.T) {
	g := gen()
	q := New()

	e1 := q.Enqueue("tx1", vec(g, 1))
	e2 := q.Enqueue("tx1", vec(g, 2))
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, q.Len())
}

func TestNextReadyOnlyWhenHeadIsReady(t *testing.T) {
	g := gen()
	q := New()

	e := q.Enqueue("tx1", vec(g, 1))
	_, ok := q.NextReady()
	assert.False(t, ok)

	require.NoError(t, q.MarkReadyToCommit(e))
	head, ok := q.NextReady()
	assert.True(t, ok)
	assert.Same(t, e, head)
}

func TestAwaitUntilReadyToCommitBlocksUntilHeadsTurn(t *testing.T) {
	g := gen()
	q := New()

	first := q.Enqueue("first", vec(g, 1))
	second := q.Enqueue("second", vec(g, 2))
	require.NoError(t, q.MarkReadyToCommit(second))

	done := make(chan error, 1)
	go func() {
		done <- second.AwaitUntilReadyToCommit(context.Background(), -1)
	}()

	select {
	case <-done:
		t.Fatal("second became ready before first drained, but it is not the head")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, q.MarkReadyToCommit(first))
	require.NoError(t, first.AwaitUntilReadyToCommit(context.Background(), -1))
	q.MarkCommitted(first)
	require.NoError(t, q.DrainCommitted(first))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second never became ready after first drained")
	}
}

func TestReorderOnCommitVersionChangesOrder(t *testing.T) {
	g := gen()
	q := New()

	tp := q.Enqueue("Tp", vec(g, 4))
	tq := q.Enqueue("Tq", vec(g, 5))

	require.NoError(t, q.Reorder(tp, vec(g, 6)))

	prefix := q.ReadyPrefix()
	assert.Empty(t, prefix, "neither entry is ready yet")

	require.NoError(t, q.MarkReadyToCommit(tq))
	require.NoError(t, q.MarkReadyToCommit(tp))

	prefix = q.ReadyPrefix()
	require.Len(t, prefix, 2)
	assert.Equal(t, "Tq", prefix[0].TxID)
	assert.Equal(t, "Tp", prefix[1].TxID)
}

func TestRollbackReleasesLatchAndRemovesEntry(t *testing.T) {
	g := gen()
	q := New()

	e := q.Enqueue("tx1", vec(g, 1))

	done := make(chan error, 1)
	go func() {
		done <- e.AwaitUntilReadyToCommit(context.Background(), -1)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Rollback(e))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRolledBack)
	case <-time.After(time.Second):
		t.Fatal("rollback did not release the latch")
	}
	assert.Equal(t, 0, q.Len())
}

func TestAwaitUntilReadyToCommitTimesOut(t *testing.T) {
	g := gen()
	q := New()
	e := q.Enqueue("tx1", vec(g, 1))

	err := e.AwaitUntilReadyToCommit(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDrainCommittedRequiresHeadAndCommittedState(t *testing.T) {
	g := gen()
	q := New()
	e := q.Enqueue("tx1", vec(g, 1))

	err := q.DrainCommitted(e)
	assert.ErrorIs(t, err, ErrWrongState)

	q.MarkCommitted(e)
	require.NoError(t, q.DrainCommitted(e))
}
