package download

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/bunkr-downloader/internal/config"
	"github.com/handiism/bunkr-downloader/internal/hoststatus"
	"github.com/handiism/bunkr-downloader/internal/http"
	ioutils "github.com/handiism/bunkr-downloader/internal/io"
	"github.com/handiism/bunkr-downloader/internal/ledger"
	"github.com/handiism/bunkr-downloader/internal/model"
	"github.com/handiism/bunkr-downloader/internal/stats"
)

// Scheduler drives an album download: a bounded-concurrency main pass over
// every item, a full barrier, then one trailing retry pass over whatever
// the ledger holds.
type Scheduler struct {
	settings   *config.Settings
	executor   *Executor
	hosts      *hoststatus.Tracker
	ledger     *ledger.Ledger
	stats      *stats.Recorder
	onProgress func(Event)
	log        zerolog.Logger
}

// NewScheduler creates a scheduler and its executor. The tracker, ledger,
// and recorder are shared across both passes and may be shared with other
// consumers (the status seed, the TUI).
func NewScheduler(settings *config.Settings, hosts *hoststatus.Tracker, led *ledger.Ledger, rec *stats.Recorder, onProgress func(Event), log zerolog.Logger) *Scheduler {
	client := http.NewClient(settings.Timeout(), settings.UserAgent, settings.Referer)
	return &Scheduler{
		settings:   settings,
		executor:   NewExecutor(settings, client, hosts, led, rec, onProgress, log),
		hosts:      hosts,
		ledger:     led,
		stats:      rec,
		onProgress: onProgress,
		log:        log,
	}
}

// Run downloads every item of the album and returns the final summary.
//
// Each of the album's items is attempted exactly once in the main pass,
// under the configured worker limit. A failing item never aborts its
// siblings; the only error Run itself can return is a failure to create
// the album directory. After the barrier, the trailing pass attempts each
// ledger entry once more and rewrites the ledger to the still-failing set.
func (s *Scheduler) Run(ctx context.Context, album *model.Album) (*stats.Summary, error) {
	if err := ioutils.EnsureDir(album.Path); err != nil {
		return nil, fmt.Errorf("create album directory: %w", err)
	}

	s.progress(Event{Message: fmt.Sprintf("Downloading %s (%d files)", album.Name, len(album.Items)), Level: LevelInfo})
	s.log.Info().Str("album", album.Name).Int("items", len(album.Items)).Int("workers", s.settings.MaxWorkers).Msg("starting run")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.MaxWorkers)
	for _, item := range album.Items {
		item := item
		g.Go(func() error {
			s.executor.Download(gctx, item, s.settings.MaxRetries)
			return nil
		})
	}
	// Workers never return errors, so this is purely the phase barrier.
	_ = g.Wait()

	s.runRetryPass(ctx, album)

	summary := s.stats.Summary()
	s.progress(Event{
		Message: fmt.Sprintf("Finished %s: %d downloaded, %d skipped, %d failed",
			album.Name,
			summary.Totals[model.ResultCompleted],
			summary.Totals[model.ResultSkipped],
			summary.Totals[model.ResultFailed]),
		Level: LevelInfo,
	})
	return summary, nil
}

// runRetryPass attempts every ledger entry exactly once with no in-process
// retry budget. Entries that resolve are removed as they complete so a
// crash mid-pass loses no state; the final rewrite compacts the file and
// deletes it when nothing is left.
func (s *Scheduler) runRetryPass(ctx context.Context, album *model.Album) {
	entries, err := s.ledger.Entries()
	if err != nil {
		s.log.Warn().Err(err).Msg("ledger unreadable, skipping retry pass")
		return
	}
	if len(entries) == 0 {
		s.stats.SetDeferred(0)
		return
	}

	s.stats.SetDeferred(len(entries))
	s.progress(Event{Message: fmt.Sprintf("Retrying %d deferred file(s)", len(entries)), Level: LevelInfo})

	var (
		mu        sync.Mutex
		remaining []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.MaxWorkers)
	for i, link := range entries {
		item := album.ItemByLink(link)
		if item == nil {
			// Entry from a previous run; its descriptor is gone, so the
			// filename comes from the link itself.
			item = model.NewLedgerItem(album, len(album.Items)+i+1, link)
		}
		g.Go(func() error {
			outcome := s.executor.Download(gctx, item, 1)
			if outcome.Resolved() {
				if err := s.ledger.Remove(item.Link); err != nil {
					s.log.Warn().Err(err).Str("link", item.Link).Msg("ledger remove failed")
				}
				s.stats.AddDeferred(-1)
				return nil
			}
			mu.Lock()
			remaining = append(remaining, item.Link)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := s.ledger.Rewrite(remaining); err != nil {
		s.log.Warn().Err(err).Msg("ledger rewrite failed")
	}

	recovered := len(entries) - len(remaining)
	level := LevelSuccess
	if len(remaining) > 0 {
		level = LevelWarning
	}
	s.progress(Event{
		Message: fmt.Sprintf("Retry pass finished: %d recovered, %d still failing", recovered, len(remaining)),
		Level:   level,
	})
}

func (s *Scheduler) progress(event Event) {
	if s.onProgress != nil {
		s.onProgress(event)
	}
}
