package commitlog

import (
	"context"
	"sync"
	"time"

	"github.com/cloudtm/gmu/internal/version"
)

// CommitLog is the append-only chain of committed versions. It answers
// "what snapshot can a transaction read?" and "has version V been
// installed locally yet?".
//
// All mutating operations and the chain-head snapshot read execute
// under mu; chain walks beyond the head proceed lock-free over the
// immutable linked entries once the head has been captured. Waiters
// block on notifyCh, which is closed and replaced on every insert —
// a channel-based stand-in for a condition variable that composes
// naturally with context cancellation and timeouts. Per-transaction
// waits use their own one-shot latches (see package queue) rather than
// this primitive, so a burst of queue activity never wakes every
// commit-log reader.
type CommitLog struct {
	mu sync.Mutex

	localIndex int
	generator  *version.Generator

	current        *entry
	mostRecent     version.Version
	enabled        bool
	notifyCh       chan struct{}
	seenCommitTxns map[string]struct{}
}

// New builds an enabled commit log bound to localNode's coordinate in
// generator's cluster snapshot. There is no dynamic enable step: the
// log is usable the instant it is constructed.
func New(generator *version.Generator, localNode string) *CommitLog {
	localIndex := generator.CurrentSnapshot().IndexOf(localNode)
	zero := generator.GenerateNew()
	return &CommitLog{
		localIndex:     localIndex,
		generator:      generator,
		current:        &entry{version: zero},
		mostRecent:     zero,
		enabled:        true,
		notifyCh:       make(chan struct{}),
		seenCommitTxns: make(map[string]struct{}),
	}
}

// Stop disables the commit log; every subsequent operation returns
// ErrIllegalState, and a wait already in flight is woken and returns
// ErrIllegalState too.
func (c *CommitLog) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.enabled = false
	close(c.notifyCh)
}

// GetCurrentVersion returns the generator-reprojected most recent
// version (the merge-max of every version inserted so far) as a
// single atomic snapshot.
func (c *CommitLog) GetCurrentVersion() (version.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return version.Version{}, ErrIllegalState
	}
	return c.generator.UpdatedVersion(c.mostRecent), nil
}

// GetAvailableVersionLessThan returns other unchanged if its local
// coordinate is already defined; otherwise it walks the chain
// collecting every entry whose version is <= other and returns their
// merge-max, which is guaranteed to have a defined local coordinate.
// A nil other is equivalent to GetCurrentVersion.
func (c *CommitLog) GetAvailableVersionLessThan(other *version.Version) (version.Version, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return version.Version{}, ErrIllegalState
	}
	if other == nil {
		cur := c.generator.UpdatedVersion(c.mostRecent)
		c.mu.Unlock()
		return cur, nil
	}
	if other.Get(c.localIndex) != version.NonExisting {
		c.mu.Unlock()
		return *other, nil
	}
	head := c.current
	c.mu.Unlock()

	collected := make([]version.Version, 0)
	for e := head; e != nil; e = e.prev {
		if version.LessOrEqual(e.version, *other) {
			collected = append(collected, e.version)
		}
	}
	if len(collected) == 0 {
		return c.generator.GenerateNew(), nil
	}
	return version.MergeMax(collected...), nil
}

// GetReadVersion computes a ReadVersion for other (or the current
// version if other is nil): entries that sit at or below other's local
// coordinate but are not actually <= other contribute their
// (local coordinate, sub-version) pair to the not-visible set, so
// readers skip locally-installed but globally-incomparable commits.
//
// Two entries can commit with an identical full vector when they land
// in the same batch (they are coincident rather than causally ordered);
// sub_version is their only distinguishing tiebreak. A reader at
// exactly that vector only sees sub_version 0 of it — every other
// sub_version sharing the vector is, by the batch's own commit-order
// convention, not yet visible.
func (c *CommitLog) GetReadVersion(other *version.Version) (version.ReadVersion, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return version.ReadVersion{}, ErrIllegalState
	}
	base := c.generator.UpdatedVersion(c.mostRecent)
	if other != nil {
		base = *other
	}
	head := c.current
	c.mu.Unlock()

	rv := version.ConvertToRead(base)
	for e := head; e != nil; e = e.prev {
		local := e.version.Get(c.localIndex)
		if local == version.NonExisting || local > base.Get(c.localIndex) {
			continue
		}
		order, err := version.Compare(e.version, base)
		notVisible := err != nil || !order.LessOrEqual()
		if !notVisible && order == version.Equal && e.subVersion > 0 {
			notVisible = true
		}
		if notVisible {
			rv.MarkNotVisible(local, e.subVersion)
		}
	}
	return rv, nil
}

// InsertNewCommittedVersions links batch into the chain in order and
// wakes every waiter. Re-inserting a batch whose tx ids were already
// linked is a no-op for those entries (idempotent commit).
func (c *CommitLog) InsertNewCommittedVersions(batch []CommittedTransaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return ErrIllegalState
	}

	inserted := false
	for _, ct := range batch {
		if _, dup := c.seenCommitTxns[ct.TxID]; dup {
			continue
		}
		c.seenCommitTxns[ct.TxID] = struct{}{}
		c.current = &entry{
			version:    ct.CommitVersion,
			subVersion: ct.SubVersion,
			keys:       ct.Modifications,
			prev:       c.current,
		}
		c.mostRecent = version.MergeMax(c.mostRecent, ct.CommitVersion)
		inserted = true
	}

	if inserted {
		close(c.notifyCh)
		c.notifyCh = make(chan struct{})
	}
	return nil
}

// WaitForVersion blocks until the local coordinate of the chain head
// is >= v's local coordinate, or until timeout elapses. A negative
// timeout waits forever. It returns whether the condition held when
// the call returned.
func (c *CommitLog) WaitForVersion(ctx context.Context, v version.Version, timeout time.Duration) (bool, error) {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		c.mu.Lock()
		if !c.enabled {
			c.mu.Unlock()
			return false, ErrIllegalState
		}
		if c.current.version.Get(c.localIndex) >= v.Get(c.localIndex) {
			c.mu.Unlock()
			return true, nil
		}
		wait := c.notifyCh
		c.mu.Unlock()

		select {
		case <-wait:
			continue
		case <-timeoutCh:
			c.mu.Lock()
			holds := c.current.version.Get(c.localIndex) >= v.Get(c.localIndex)
			c.mu.Unlock()
			return holds, nil
		case <-ctx.Done():
			return false, ErrInterrupted
		}
	}
}
