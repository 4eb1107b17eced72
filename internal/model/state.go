package model

// TransferState tracks where an item is in its lifecycle.
//
// The legal transitions are:
//
//	Pending  → InProgress
//	InProgress → Completed | Skipped | Deferred | Failed
//	Deferred → InProgress            (trailing retry pass)
//	Skipped  → InProgress            (only for ledger-bound skip reasons)
//
// Everything else is a programming error and is rejected by the stats
// recorder.
type TransferState int

const (
	StatePending TransferState = iota
	StateInProgress
	StateCompleted
	StateSkipped
	StateDeferred
	StateFailed
)

func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in progress"
	case StateCompleted:
		return "completed"
	case StateSkipped:
		return "skipped"
	case StateDeferred:
		return "deferred"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateForResult maps a terminal outcome result to its transfer state.
func StateForResult(r Result) TransferState {
	switch r {
	case ResultCompleted:
		return StateCompleted
	case ResultSkipped:
		return StateSkipped
	case ResultDeferred:
		return StateDeferred
	case ResultFailed:
		return StateFailed
	default:
		return StatePending
	}
}

// CanStart reports whether an item in state s may begin (or re-begin) a
// transfer attempt. Ledger-bound skips may restart because the trailing pass
// owes them one attempt.
func (s TransferState) CanStart(last Outcome) bool {
	switch s {
	case StatePending, StateDeferred:
		return true
	case StateSkipped:
		return last.LedgerBound()
	default:
		return false
	}
}

// CanFinish reports whether an item in state s may record a terminal outcome.
func (s TransferState) CanFinish() bool {
	return s == StateInProgress
}
