package transport

import "github.com/cloudtm/gmu/internal/version"

// Kind identifies the role a Message plays in the replication protocol
// between a transaction's coordinator and a key's write owners.
type Kind int

const (
	Prepare Kind = iota
	PrepareAck
	Commit
	CommitAck
	Rollback
	RollbackAck
)

func (k Kind) String() string {
	switch k {
	case Prepare:
		return "PREPARE"
	case PrepareAck:
		return "PREPARE_ACK"
	case Commit:
		return "COMMIT"
	case CommitAck:
		return "COMMIT_ACK"
	case Rollback:
		return "ROLLBACK"
	case RollbackAck:
		return "ROLLBACK_ACK"
	default:
		return "UNKNOWN"
	}
}

// Message is the unit the Bus moves between nodes. A coordinator sends
// Prepare/Commit/Rollback to a key's write owners; each owner replies
// with the matching *Ack kind addressed back to From. Delivering the
// same Prepare or Commit twice for the same TxID is safe: the Sorted
// Transaction Queue and Commit Manager resolve duplicates by TxID
// (§4.C, §4.D), so the transport itself carries no dedup logic.
type Message struct {
	Kind           Kind
	TxID           string
	From           string
	To             string
	PrepareVersion version.Version
	CommitVersion  version.Version
	Modifications  [][]byte
	Err            string
}
