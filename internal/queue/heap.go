package queue

import "github.com/cloudtm/gmu/internal/version"

// entryHeap orders TransactionEntry by (prepareVersion, concurrentClock, TxID).
// Versions that are BEFORE/EQUAL/AFTER under the vector order sort
// accordingly; versions that come back CONCURRENT (or EQUAL) fall
// through to the clock/TxID tie-break, which turns the partial order
// into the strict weak ordering container/heap requires.
type entryHeap []*TransactionEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	order, err := version.Compare(a.prepareVersion, b.prepareVersion)
	if err == nil {
		switch order {
		case version.Before, version.BeforeOrEqual:
			return true
		case version.After, version.AfterOrEqual:
			return false
		}
	}
	if a.concurrentClock != b.concurrentClock {
		return a.concurrentClock < b.concurrentClock
	}
	return a.TxID < b.TxID
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*TransactionEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	e.index = -1
	return e
}
