package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/bunkr-downloader/internal/config"
	"github.com/handiism/bunkr-downloader/internal/hoststatus"
	"github.com/handiism/bunkr-downloader/internal/http"
	ioutils "github.com/handiism/bunkr-downloader/internal/io"
	"github.com/handiism/bunkr-downloader/internal/ledger"
	"github.com/handiism/bunkr-downloader/internal/model"
	"github.com/handiism/bunkr-downloader/internal/stats"
)

// Executor performs the transfer of a single item and maps every possible
// failure to a terminal outcome. Download never returns an error: transport
// faults, rate limits, and host outages are classified internally, and the
// caller only sees the resulting Outcome.
type Executor struct {
	settings   *config.Settings
	client     *http.Client
	hosts      *hoststatus.Tracker
	ledger     *ledger.Ledger
	stats      *stats.Recorder
	onProgress func(Event)
	log        zerolog.Logger
}

// NewExecutor creates an executor sharing the run-scoped tracker, ledger,
// and recorder with its scheduler.
func NewExecutor(settings *config.Settings, client *http.Client, hosts *hoststatus.Tracker, led *ledger.Ledger, rec *stats.Recorder, onProgress func(Event), log zerolog.Logger) *Executor {
	return &Executor{
		settings:   settings,
		client:     client,
		hosts:      hosts,
		ledger:     led,
		stats:      rec,
		onProgress: onProgress,
		log:        log,
	}
}

// Download transfers one item, spending at most maxAttempts in-process
// attempts, and returns its terminal outcome.
//
// maxAttempts > 1 is a main-pass invocation: exhausting the budget or
// hitting a host outage defers the item to the ledger instead of failing
// it. maxAttempts == 1 is a trailing-pass invocation: the same exhaustion
// paths produce Failed(RetriesExhausted) and the ledger entry is left for
// the next run.
func (e *Executor) Download(ctx context.Context, item *model.Item, maxAttempts int) model.Outcome {
	if !e.stats.Start(item) {
		return model.Outcome{}
	}

	outcome := e.run(ctx, item, maxAttempts)
	e.stats.Record(item, outcome)
	e.report(item, outcome)
	return outcome
}

func (e *Executor) run(ctx context.Context, item *model.Item, maxAttempts int) model.Outcome {
	mainPass := maxAttempts > 1

	// Precondition checks, cheapest first. An item deferred by a previous
	// run is not re-attempted in the main pass; the trailing pass owns it.
	if mainPass && e.ledger.Contains(item.Link) {
		e.stats.AddDeferred(1)
		return model.Outcome{Result: model.ResultDeferred}
	}
	if ioutils.FileExists(item.Path) {
		return model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonAlreadyExists}
	}
	if matchesFilter(item.Filename, e.settings.Ignore) {
		return model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonIgnoreFilter}
	}
	if len(e.settings.Include) > 0 && !matchesFilter(item.Filename, e.settings.Include) {
		return model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonIncludeFilter}
	}
	if e.hosts.IsOffline(item.Link) {
		if !mainPass {
			return model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}
		}
		e.deferItem(item)
		return model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonHostOffline}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := e.attempt(ctx, item)
		if err == nil {
			return model.Outcome{Result: model.ResultCompleted}
		}

		if ctx.Err() != nil {
			// Interrupted: the partial stays on disk and the item goes
			// to the ledger so the next run resumes it.
			if mainPass {
				e.deferItem(item)
			}
			return model.Outcome{Result: model.ResultDeferred}
		}

		var herr *http.Error
		if !errors.As(err, &herr) {
			// Local failure (disk full, permissions). Retrying won't help.
			e.log.Error().Err(err).Str("link", item.Link).Msg("transfer failed")
			return model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}
		}

		switch herr.Kind {
		case http.KindRateLimited, http.KindTransport, http.KindIncomplete:
			e.log.Debug().Err(herr).Str("link", item.Link).Int("attempt", attempt+1).Msg("attempt failed")
			if attempt+1 < maxAttempts {
				e.backoff(ctx, attempt)
			}
		case http.KindHostDown:
			key := e.hosts.MarkOffline(item.Link)
			e.progress(Event{Message: fmt.Sprintf("Host %s is down, deferring its files", key), Level: LevelWarning})
			if !mainPass {
				return model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}
			}
			e.deferItem(item)
			return model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonServiceUnavailable}
		default:
			// Definitive client-side rejection (404, 403, 502).
			e.log.Warn().Err(herr).Str("link", item.Link).Msg("server rejected download")
			return model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}
		}
	}

	if mainPass {
		e.deferItem(item)
		return model.Outcome{Result: model.ResultDeferred}
	}
	return model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}
}

// attempt performs one transfer attempt, resuming from whatever partial
// bytes survive from earlier attempts or runs. On success the staging file
// has been promoted to the final path.
func (e *Executor) attempt(ctx context.Context, item *model.Item) error {
	partial := item.PartialPath()
	offset := ioutils.PartialSize(partial)

	resp, err := e.client.FetchRange(ctx, item.Link, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if offset > 0 && !resp.Resumed {
		// The server ignored the Range request and is sending the full
		// entity. The partial bytes no longer line up with the stream.
		if err := ioutils.DiscardPartial(partial); err != nil {
			return err
		}
		offset = 0
	}

	if err := ioutils.EnsureDir(item.Album.Path); err != nil {
		return err
	}
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	written, copyErr := e.copyBody(ctx, f, resp.Body, item.Link, resp.TotalSize)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}

	size := offset + written
	if resp.TotalSize < 0 {
		// Without a declared total there is no way to tell a clean end of
		// stream from a truncated one. Keep the partial and report the
		// transfer as incomplete.
		return &http.Error{
			Kind: http.KindIncomplete,
			URL:  item.Link,
			Err:  fmt.Errorf("got %d bytes of unknown total", size),
		}
	}
	if size != resp.TotalSize {
		if size > resp.TotalSize {
			// Oversized partials cannot be resumed from.
			_ = ioutils.DiscardPartial(partial)
		}
		return &http.Error{
			Kind: http.KindIncomplete,
			URL:  item.Link,
			Err:  fmt.Errorf("got %d of %d bytes", size, resp.TotalSize),
		}
	}

	return ioutils.PromotePartial(partial, item.Path)
}

// copyBody streams the response body to the staging file in chunks sized
// for the declared total, checking for cancellation between writes.
func (e *Executor) copyBody(ctx context.Context, dst *os.File, src io.Reader, link string, totalSize int64) (int64, error) {
	buf := make([]byte, ChunkSize(totalSize))
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			e.stats.AddBytes(int64(n))
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &http.Error{Kind: http.KindTransport, URL: link, Err: readErr}
		}
	}
}

// backoff sleeps for base^(attempt+1) seconds plus uniform jitter, or until
// the context is cancelled.
func (e *Executor) backoff(ctx context.Context, attempt int) {
	base := e.settings.RetryBackoffBase
	delay := math.Pow(base, float64(attempt+1))
	jitter := base/3 + rand.Float64()*(base-base/3)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration((delay + jitter) * float64(time.Second))):
	}
}

// deferItem records the item in the ledger for the trailing retry pass.
// Ledger failures degrade to a log line; they never abort a transfer.
func (e *Executor) deferItem(item *model.Item) {
	if err := e.ledger.Append(item.Link); err != nil {
		e.log.Warn().Err(err).Str("link", item.Link).Msg("ledger append failed")
	}
	e.stats.AddDeferred(1)
}

func (e *Executor) report(item *model.Item, outcome model.Outcome) {
	name := item.Filename
	switch {
	case outcome.Result == model.ResultCompleted:
		e.progress(Event{Message: fmt.Sprintf("Downloaded %s (%d/%d)", name, item.Ordinal, len(item.Album.Items)), Level: LevelSuccess})
	case outcome.Result == model.ResultSkipped && outcome.Reason == model.ReasonAlreadyExists:
		e.progress(Event{Message: fmt.Sprintf("Skipping existing: %s", name), Level: LevelVerbose})
	case outcome.Result == model.ResultSkipped && (outcome.Reason == model.ReasonIgnoreFilter || outcome.Reason == model.ReasonIncludeFilter):
		e.progress(Event{Message: fmt.Sprintf("Filtered out: %s", name), Level: LevelVerbose})
	case outcome.Result == model.ResultSkipped:
		e.progress(Event{Message: fmt.Sprintf("Host unavailable, deferred: %s", name), Level: LevelWarning})
	case outcome.Result == model.ResultDeferred:
		e.progress(Event{Message: fmt.Sprintf("Deferred for retry: %s", name), Level: LevelWarning})
	case outcome.Result == model.ResultFailed:
		e.progress(Event{Message: fmt.Sprintf("Failed: %s", name), Level: LevelError})
	}
}

func (e *Executor) progress(event Event) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}

// matchesFilter reports whether name contains any of the patterns,
// case-insensitively.
func matchesFilter(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
