package load

type State int

const (
	StateCommitted State = iota
	StateRolledBack
	StatePartiallyUnresolved
)

func (s State) String() string {
	switch s {
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	case StatePartiallyUnresolved:
		return "PARTIALLY_UNRESOLVED"
	default:
		return "UNKNOWN"
	}
}

// PieceKey identifies one dispatched piece: the source file, its target
// replica set and the dispatch sequence number within the transaction.
type PieceKey struct {
	File         string
	ReplicaSetID int
	Seq          int
}

// Result is the outcome of one load operation. Failure maps carry enough
// detail for an operator to retry the whole load or resend commands to
// replica sets left unresolved; commands are idempotent, so resending is
// safe.
type Result struct {
	TxID    string
	Success bool
	State   State

	SplitError     error
	Phase1Failures map[PieceKey]error
	Phase2Failures map[int]error
}
