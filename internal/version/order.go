package version

// Order is the result of comparing two versions under the vector
// partial order.
type Order int

const (
	// Before means a <= b on every coordinate defined in both and
	// a < b on at least one, with no coordinate defined only in a.
	Before Order = iota
	// BeforeOrEqual means a and b agree on every coordinate a
	// defines, but b defines additional coordinates a does not.
	BeforeOrEqual
	// Equal means a and b define exactly the same coordinates, with
	// the same values.
	Equal
	// After is the mirror of Before.
	After
	// AfterOrEqual is the mirror of BeforeOrEqual.
	AfterOrEqual
	// Concurrent means neither version is <= the other.
	Concurrent
)

func (o Order) String() string {
	switch o {
	case Before:
		return "BEFORE"
	case BeforeOrEqual:
		return "BEFORE_OR_EQUAL"
	case Equal:
		return "EQUAL"
	case After:
		return "AFTER"
	case AfterOrEqual:
		return "AFTER_OR_EQUAL"
	case Concurrent:
		return "CONCURRENT"
	default:
		return "UNKNOWN"
	}
}

// LessOrEqual reports whether o represents a <= b (Before,
// BeforeOrEqual or Equal).
func (o Order) LessOrEqual() bool {
	return o == Before || o == BeforeOrEqual || o == Equal
}

// Compare returns the vector-order relation of a to b. a and b must
// have been generated against the same cluster snapshot (by ID);
// otherwise Compare returns ErrCrossSnapshot and the zero Order. Use
// Version.ProjectOnto to compare versions from different snapshots.
func Compare(a, b Version) (Order, error) {
	if !sameSnapshot(a, b) {
		return 0, ErrCrossSnapshot
	}

	n := a.Size()
	if b.Size() > n {
		n = b.Size()
	}

	var sharedLess, sharedGreater, aOnly, bOnly bool

	for i := 0; i < n; i++ {
		av, bv := a.Get(i), b.Get(i)
		switch {
		case av == NonExisting && bv == NonExisting:
			// neither side carries this node; contributes nothing.
		case av == NonExisting:
			bOnly = true
		case bv == NonExisting:
			aOnly = true
		case av < bv:
			sharedLess = true
		case av > bv:
			sharedGreater = true
		}
	}

	switch {
	case !sharedLess && !sharedGreater && !aOnly && !bOnly:
		return Equal, nil
	case !sharedLess && !sharedGreater && bOnly && !aOnly:
		return BeforeOrEqual, nil
	case !sharedLess && !sharedGreater && aOnly && !bOnly:
		return AfterOrEqual, nil
	case sharedLess && !sharedGreater && !aOnly:
		return Before, nil
	case sharedGreater && !sharedLess && !bOnly:
		return After, nil
	default:
		return Concurrent, nil
	}
}

func sameSnapshot(a, b Version) bool {
	if a.snapshot == nil || b.snapshot == nil {
		return a.snapshot == b.snapshot
	}
	return a.snapshot.sameAs(b.snapshot)
}

// LessOrEqual reports whether a <= b under the vector order, treating
// a cross-snapshot comparison as false (callers that must distinguish
// the error case should call Compare directly).
func LessOrEqual(a, b Version) bool {
	order, err := Compare(a, b)
	if err != nil {
		return false
	}
	return order.LessOrEqual()
}
