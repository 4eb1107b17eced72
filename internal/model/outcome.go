package model

// Result is the terminal classification of one item transfer.
type Result int

const (
	// ResultCompleted means the final artifact was fully written and promoted.
	ResultCompleted Result = iota + 1

	// ResultSkipped means the transfer was deliberately not performed.
	ResultSkipped

	// ResultDeferred means the item is owed exactly one further attempt in
	// the trailing retry pass. Deferred is not a final bucket in the run
	// summary: the trailing pass resolves it to Completed or Failed.
	ResultDeferred

	// ResultFailed means the item exhausted its whole retry budget.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultSkipped:
		return "skipped"
	case ResultDeferred:
		return "deferred"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason qualifies a Result.
type Reason int

const (
	// ReasonNone is used for results that need no qualification.
	ReasonNone Reason = iota

	// ReasonAlreadyExists: the final artifact is already on disk.
	ReasonAlreadyExists

	// ReasonIgnoreFilter: the filename matched an exclude pattern.
	ReasonIgnoreFilter

	// ReasonIncludeFilter: the filename matched no required include pattern.
	ReasonIncludeFilter

	// ReasonHostOffline: the owning host was flagged offline before the
	// transfer started.
	ReasonHostOffline

	// ReasonServiceUnavailable: the host went down mid-run while this item
	// was being attempted.
	ReasonServiceUnavailable

	// ReasonRetriesExhausted: the whole retry budget, trailing pass
	// included, was consumed without success.
	ReasonRetriesExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonAlreadyExists:
		return "already exists"
	case ReasonIgnoreFilter:
		return "ignore filter"
	case ReasonIncludeFilter:
		return "include filter"
	case ReasonHostOffline:
		return "host offline"
	case ReasonServiceUnavailable:
		return "service unavailable"
	case ReasonRetriesExhausted:
		return "retries exhausted"
	default:
		return "unknown"
	}
}

// Outcome pairs a Result with its Reason.
type Outcome struct {
	Result Result
	Reason Reason
}

func (o Outcome) String() string {
	if o.Reason == ReasonNone {
		return o.Result.String()
	}
	return o.Result.String() + " (" + o.Reason.String() + ")"
}

// Completed reports whether the outcome is a successful transfer.
func (o Outcome) Completed() bool { return o.Result == ResultCompleted }

// Resolved reports whether the outcome settles a ledger entry: a completed
// transfer, or a skip because the final artifact already exists.
func (o Outcome) Resolved() bool {
	return o.Result == ResultCompleted ||
		(o.Result == ResultSkipped && o.Reason == ReasonAlreadyExists)
}

// LedgerBound reports whether the outcome leaves the item owed a future
// attempt through the retry ledger.
func (o Outcome) LedgerBound() bool {
	if o.Result == ResultDeferred {
		return true
	}
	return o.Result == ResultSkipped &&
		(o.Reason == ReasonHostOffline || o.Reason == ReasonServiceUnavailable)
}
