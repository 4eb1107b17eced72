// Package stats aggregates per-item terminal outcomes into live counts and
// an end-of-run breakdown.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/bunkr-downloader/internal/model"
)

// Summary is a point-in-time view of a run's outcomes.
type Summary struct {
	// Counts holds the number of items per (result, reason). Deferred is
	// never a key: the trailing pass resolves every deferral to Completed
	// or Failed before the final summary.
	Counts map[model.Result]map[model.Reason]int

	// Totals aggregates Counts per result.
	Totals map[model.Result]int

	// Deferred is the live count of items currently owed a trailing
	// retry attempt.
	Deferred int

	// Elapsed is the time since the recorder was created.
	Elapsed time.Duration

	// BytesReceived is the total number of content bytes written so far.
	BytesReceived int64
}

// Total returns the number of items with a terminal result.
func (s *Summary) Total() int {
	n := 0
	for _, count := range s.Totals {
		n += count
	}
	return n
}

type itemEntry struct {
	state   model.TransferState
	outcome model.Outcome
}

// Recorder tracks per-item transfer states and aggregates terminal outcomes.
//
// Recorder enforces the transfer-state machine: Start and Record reject
// out-of-order updates (returning false and logging) instead of corrupting
// the counts. An item whose ledger-bound outcome is superseded by the
// trailing retry pass is moved between buckets, so each item lands in
// exactly one final bucket.
type Recorder struct {
	mu       sync.Mutex
	items    map[string]*itemEntry // keyed by source link
	counts   map[model.Result]map[model.Reason]int
	deferred int
	started  time.Time
	bytes    atomic.Int64
	log      zerolog.Logger
}

// NewRecorder creates a recorder; elapsed time is measured from this call.
func NewRecorder(log zerolog.Logger) *Recorder {
	return &Recorder{
		items:   make(map[string]*itemEntry),
		counts:  make(map[model.Result]map[model.Reason]int),
		started: time.Now(),
		log:     log,
	}
}

// Start marks an item as in progress. Returns false and logs when the item
// is not in a startable state.
func (r *Recorder) Start(item *model.Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[item.Link]
	if !ok {
		entry = &itemEntry{state: model.StatePending}
		r.items[item.Link] = entry
	}

	if !entry.state.CanStart(entry.outcome) {
		r.log.Warn().
			Int("ordinal", item.Ordinal).
			Str("state", entry.state.String()).
			Msg("illegal transfer start rejected")
		return false
	}

	entry.state = model.StateInProgress
	return true
}

// Record applies an item's terminal outcome. Must be called exactly once per
// attempt cycle, after Start. Returns false and logs on an out-of-order
// update, which is never applied.
func (r *Recorder) Record(item *model.Item, outcome model.Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[item.Link]
	if !ok || !entry.state.CanFinish() {
		state := model.StatePending
		if ok {
			state = entry.state
		}
		r.log.Warn().
			Int("ordinal", item.Ordinal).
			Str("state", state.String()).
			Str("outcome", outcome.String()).
			Msg("out-of-order outcome rejected")
		return false
	}

	// A trailing-pass result supersedes the main pass's ledger-bound
	// outcome; the item must not stay counted in its old bucket.
	if entry.outcome.Result == model.ResultSkipped && entry.outcome.LedgerBound() {
		r.uncount(entry.outcome)
	}

	entry.state = model.StateForResult(outcome.Result)
	entry.outcome = outcome

	if outcome.Result != model.ResultDeferred {
		r.count(outcome)
	}
	return true
}

// AddBytes accumulates received content bytes.
func (r *Recorder) AddBytes(n int64) {
	r.bytes.Add(n)
}

// AddDeferred adjusts the live deferred gauge.
func (r *Recorder) AddDeferred(delta int) {
	r.mu.Lock()
	r.deferred += delta
	if r.deferred < 0 {
		r.deferred = 0
	}
	r.mu.Unlock()
}

// SetDeferred pins the deferred gauge, used when the trailing pass loads the
// ledger and the gauge must reflect the authoritative entry count.
func (r *Recorder) SetDeferred(n int) {
	r.mu.Lock()
	r.deferred = n
	r.mu.Unlock()
}

// DeferredCount returns the current deferred gauge value.
func (r *Recorder) DeferredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

// Count returns the number of items recorded with the given result and
// reason.
func (r *Recorder) Count(result model.Result, reason model.Reason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[result][reason]
}

// Summary returns a copy of the current aggregates.
func (r *Recorder) Summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[model.Result]map[model.Reason]int, len(r.counts))
	totals := make(map[model.Result]int, len(r.counts))
	for result, reasons := range r.counts {
		counts[result] = make(map[model.Reason]int, len(reasons))
		for reason, n := range reasons {
			counts[result][reason] = n
			totals[result] += n
		}
	}

	return &Summary{
		Counts:        counts,
		Totals:        totals,
		Deferred:      r.deferred,
		Elapsed:       time.Since(r.started),
		BytesReceived: r.bytes.Load(),
	}
}

// count and uncount mutate the aggregate buckets. Callers hold the mutex.
func (r *Recorder) count(o model.Outcome) {
	if r.counts[o.Result] == nil {
		r.counts[o.Result] = make(map[model.Reason]int)
	}
	r.counts[o.Result][o.Reason]++
}

func (r *Recorder) uncount(o model.Outcome) {
	if reasons := r.counts[o.Result]; reasons != nil && reasons[o.Reason] > 0 {
		reasons[o.Reason]--
	}
}
