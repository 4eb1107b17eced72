// Package download provides the transfer engine for fetching album files
// from the hosting service.
//
// # Scheduler and Executor
//
// The Scheduler drives a run in two phases. The main pass attempts every
// item of the album exactly once under a bounded worker pool; items that
// exhaust their retry budget or hit a host outage are written to the retry
// ledger instead of failing. After a full barrier, the trailing pass
// attempts each ledger entry once more, removes the entries that resolve,
// and leaves the rest for the next run.
//
// The Executor owns a single transfer: the skip checks, the Range-based
// resume of partial files, chunked streaming, error classification, and
// the retry/backoff loop.
//
// # Basic Usage
//
//	scheduler := download.NewScheduler(settings, tracker, ledger, recorder,
//	    func(event download.Event) {
//	        fmt.Println(event.Message)
//	    }, logger)
//
//	summary, err := scheduler.Run(ctx, album)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Outcomes
//
// Every item reaches exactly one terminal outcome: Completed, Skipped with
// a reason, or Failed. Deferral is an intermediate result that the trailing
// pass (of this run or a later one) resolves. Transport errors never
// escape the package; they are classified into outcomes.
//
// # Retry Logic
//
// Rate limits and transport faults are retried in process with exponential
// backoff (settings.MaxRetries attempts, settings.RetryBackoffBase
// exponent). Host outages short-circuit the budget: the host is flagged
// offline for the rest of the run and every one of its remaining files is
// deferred without being attempted.
package download
